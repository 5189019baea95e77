// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package store

import (
	"context"
	"fmt"

	"github.com/portcullisproject/portcullis/internal/models"
)

// InsertLoginLog records a login/logout audit row. Written by the audit
// subscriber, never on the request path.
func (s *Store) InsertLoginLog(ctx context.Context, entry *models.LoginLog) error {
	if _, err := s.conn.ExecContext(ctx,
		`INSERT INTO sys_login_log (user_name, ipaddr, device, status, msg, login_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Username, entry.IPAddress, entry.Device,
		entry.Status, entry.Message, entry.LoginTime,
	); err != nil {
		return fmt.Errorf("insert login log: %w", err)
	}
	return nil
}

// RecentLoginLogs returns the newest audit rows up to limit.
func (s *Store) RecentLoginLogs(ctx context.Context, limit int) ([]models.LoginLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT info_id, user_name, ipaddr, device, status, msg, login_time
		 FROM sys_login_log ORDER BY login_time DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query login logs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var logs []models.LoginLog
	for rows.Next() {
		var l models.LoginLog
		if err := rows.Scan(&l.InfoID, &l.Username, &l.IPAddress, &l.Device, &l.Status, &l.Message, &l.LoginTime); err != nil {
			return nil, fmt.Errorf("scan login log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
