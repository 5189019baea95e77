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

// scanUserRow scans a user row, handling nullable columns.
func scanUserRow(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.User, error) {
	u := &models.User{}
	var loginDate, updateTime sql.NullTime

	err := scanner.Scan(
		&u.UserID, &u.DeptID, &u.Username, &u.Nickname, &u.UserType,
		&u.Email, &u.Password, &u.Status, &u.DelFlag,
		&u.LoginIP, &loginDate, &u.CreatedAt, &updateTime,
	)
	if err != nil {
		return nil, err
	}

	if loginDate.Valid {
		u.LoginDate = loginDate.Time
	}
	if updateTime.Valid {
		u.UpdatedAt = updateTime.Time
	}
	return u, nil
}

const userColumns = `user_id, dept_id, user_name, nick_name, user_type,
		email, password, status, del_flag, login_ip, login_date, create_time, update_time`

// GetUserByID fetches a user by primary key, soft-deleted rows included so
// callers can distinguish "deleted" from "never existed".
func (s *Store) GetUserByID(ctx context.Context, userID int64) (*models.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM sys_user WHERE user_id = ?`, userID)

	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	return u, nil
}

// GetUserByUsername fetches a user by login name, soft-deleted rows included.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM sys_user WHERE user_name = ?`, username)

	u, err := scanUserRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by username: %w", err)
	}
	return u, nil
}

// CreateUserWithRole inserts a user and its role grant inside one
// transaction and returns the generated user id. Either both rows land or
// neither does.
func (s *Store) CreateUserWithRole(ctx context.Context, u *models.User, roleID int64) (int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin user create: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var userID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO sys_user (dept_id, user_name, nick_name, user_type, email, password, status, del_flag, login_ip)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING user_id`,
		u.DeptID, u.Username, u.Nickname, u.UserType, u.Email, u.Password,
		models.StatusNormal, models.DelFlagNormal, u.LoginIP,
	).Scan(&userID)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sys_user_role (user_id, role_id) VALUES (?, ?)`,
		userID, roleID,
	); err != nil {
		return 0, fmt.Errorf("insert user role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit user create: %w", err)
	}
	return userID, nil
}

// UpdateLoginInfo records the client address and time of a successful login.
func (s *Store) UpdateLoginInfo(ctx context.Context, userID int64, ip string, when time.Time) error {
	if _, err := s.conn.ExecContext(ctx,
		`UPDATE sys_user SET login_ip = ?, login_date = ?, update_time = CURRENT_TIMESTAMP WHERE user_id = ?`,
		ip, when, userID,
	); err != nil {
		return fmt.Errorf("update login info: %w", err)
	}
	return nil
}

// GetRoleByKey fetches a role by its stable key regardless of status, so
// callers can report disabled and deleted roles distinctly.
func (s *Store) GetRoleByKey(ctx context.Context, roleKey string) (*models.Role, error) {
	r := &models.Role{}
	err := s.conn.QueryRowContext(ctx,
		`SELECT role_id, role_name, role_key, role_sort, status, del_flag, create_time
		 FROM sys_role WHERE role_key = ?`, roleKey,
	).Scan(&r.RoleID, &r.RoleName, &r.RoleKey, &r.RoleSort, &r.Status, &r.DelFlag, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query role by key: %w", err)
	}
	return r, nil
}

// RoleKeysForUser returns the usable role keys granted to the user.
// Disabled and soft-deleted roles are filtered out.
func (s *Store) RoleKeysForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT r.role_key
		 FROM sys_role r
		 JOIN sys_user_role ur ON ur.role_id = r.role_id
		 WHERE ur.user_id = ? AND r.status = ? AND r.del_flag != ?
		 ORDER BY r.role_sort`,
		userID, models.StatusNormal, models.DelFlagDeleted,
	)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan role key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// PermissionsForUser returns the user's permission strings. Superusers get
// the wildcard grant instead of an enumerated set.
func (s *Store) PermissionsForUser(ctx context.Context, userID int64) ([]string, error) {
	roles, err := s.RoleKeysForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r == models.AdminRoleKey {
			return []string{models.AllPermissions}, nil
		}
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT DISTINCT m.perms
		 FROM sys_menu m
		 JOIN sys_role_menu rm ON rm.menu_id = m.menu_id
		 JOIN sys_user_role ur ON ur.role_id = rm.role_id
		 JOIN sys_role r ON r.role_id = ur.role_id
		 WHERE ur.user_id = ? AND m.perms != '' AND m.status = ?
		   AND r.status = ? AND r.del_flag != ?`,
		userID, models.StatusNormal, models.StatusNormal, models.DelFlagDeleted,
	)
	if err != nil {
		return nil, fmt.Errorf("query user permissions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
