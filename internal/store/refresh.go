// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/portcullisproject/portcullis/internal/models"
)

// CreateRefreshToken inserts a refresh token record without touching any
// existing ones. Most callers want RotateRefreshToken instead.
func (s *Store) CreateRefreshToken(ctx context.Context, rec *models.RefreshTokenRecord) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sys_refresh_token
			(user_id, username, refresh_token, expire_time, device_info, ip_address, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Username, rec.Token, rec.ExpireTime,
		rec.DeviceInfo, rec.IPAddress, models.RefreshTokenActive,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// RotateRefreshToken atomically replaces every refresh token record for the
// user with the given one. After commit exactly one active record exists for
// the user. A stolen older token therefore dies the moment a newer login or
// refresh lands.
func (s *Store) RotateRefreshToken(ctx context.Context, rec *models.RefreshTokenRecord) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotation: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sys_refresh_token WHERE user_id = ?`, rec.UserID,
	); err != nil {
		return fmt.Errorf("delete old refresh tokens: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sys_refresh_token
			(user_id, username, refresh_token, expire_time, device_info, ip_address, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Username, rec.Token, rec.ExpireTime,
		rec.DeviceInfo, rec.IPAddress, models.RefreshTokenActive,
	); err != nil {
		return fmt.Errorf("insert rotated refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotation: %w", err)
	}
	return nil
}

// ValidateRefreshToken checks that the exact token string has a live record.
// Returns nil when usable, otherwise one of ErrRefreshTokenNotFound,
// ErrRefreshTokenRevoked or ErrRefreshTokenExpired. Expiry is strict: a
// record expiring at the current instant fails.
func (s *Store) ValidateRefreshToken(ctx context.Context, token string) error {
	var status string
	var expireTime time.Time

	err := s.conn.QueryRowContext(ctx,
		`SELECT status, expire_time FROM sys_refresh_token WHERE refresh_token = ?`,
		token,
	).Scan(&status, &expireTime)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRefreshTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("query refresh token: %w", err)
	}

	if status != models.RefreshTokenActive {
		return ErrRefreshTokenRevoked
	}
	if !expireTime.After(time.Now()) {
		return ErrRefreshTokenExpired
	}
	return nil
}

// DisableRefreshTokensForUser flips every record for the user to disabled
// without deleting them, keeping history for audit. Returns the number of
// records touched.
func (s *Store) DisableRefreshTokensForUser(ctx context.Context, userID int64) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE sys_refresh_token SET status = ?, update_time = CURRENT_TIMESTAMP WHERE user_id = ?`,
		models.RefreshTokenDisabled, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("disable refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // count is advisory
	}
	return n, nil
}

// DeleteRefreshToken removes a single record by token string.
// Unknown tokens are a no-op.
func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	if _, err := s.conn.ExecContext(ctx,
		`DELETE FROM sys_refresh_token WHERE refresh_token = ?`, token,
	); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens removes records past their expiry and returns
// the count deleted. Called by the background sweeper.
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM sys_refresh_token WHERE expire_time <= CURRENT_TIMESTAMP`,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // count is advisory
	}
	return n, nil
}

// GetRefreshTokenByUser returns the user's current record, active or not.
// Returns ErrRefreshTokenNotFound when the user has none.
func (s *Store) GetRefreshTokenByUser(ctx context.Context, userID int64) (*models.RefreshTokenRecord, error) {
	rec := &models.RefreshTokenRecord{}
	var updateTime sql.NullTime

	err := s.conn.QueryRowContext(ctx,
		`SELECT token_id, user_id, username, refresh_token, expire_time,
		        device_info, ip_address, status, create_time, update_time
		 FROM sys_refresh_token WHERE user_id = ?
		 ORDER BY create_time DESC LIMIT 1`,
		userID,
	).Scan(
		&rec.TokenID, &rec.UserID, &rec.Username, &rec.Token, &rec.ExpireTime,
		&rec.DeviceInfo, &rec.IPAddress, &rec.Status, &rec.CreatedAt, &updateTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query refresh token by user: %w", err)
	}

	if updateTime.Valid {
		rec.UpdatedAt = updateTime.Time
	}
	return rec, nil
}

// CountRefreshTokensForUser returns the number of records for a user.
func (s *Store) CountRefreshTokensForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sys_refresh_token WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count refresh tokens: %w", err)
	}
	return count, nil
}
