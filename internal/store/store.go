// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Package store persists accounts, roles, menus, refresh tokens and the
// login audit trail in DuckDB.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // duckdb driver
	"golang.org/x/crypto/bcrypt"

	"github.com/portcullisproject/portcullis/internal/config"
	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/models"
)

// Store-level errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrRoleNotFound = errors.New("role not found")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenRevoked  = errors.New("refresh token revoked")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
)

// Store wraps the DuckDB connection.
type Store struct {
	conn *sql.DB
}

// Open opens the DuckDB database, applies the schema and seeds baseline
// roles on first run.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for the database file
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(1 * time.Hour)

	s := &Store{conn: conn}
	if err := s.initialize(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// NewWithConn wraps an existing connection, applying the schema.
// Used by tests with in-memory databases.
func NewWithConn(conn *sql.DB) (*Store, error) {
	s := &Store{conn: conn}
	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// initialize applies the schema and seeds baseline data.
func (s *Store) initialize() error {
	for _, ddl := range schemaStatements {
		if _, err := s.conn.Exec(ddl); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return s.seed()
}

var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_user_id START 100`,
	`CREATE SEQUENCE IF NOT EXISTS seq_role_id START 100`,
	`CREATE SEQUENCE IF NOT EXISTS seq_menu_id START 1000`,
	`CREATE SEQUENCE IF NOT EXISTS seq_refresh_token_id START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_login_log_id START 1`,

	`CREATE TABLE IF NOT EXISTS sys_user (
		user_id     BIGINT PRIMARY KEY DEFAULT nextval('seq_user_id'),
		dept_id     BIGINT DEFAULT 0,
		user_name   VARCHAR NOT NULL UNIQUE,
		nick_name   VARCHAR NOT NULL,
		user_type   VARCHAR DEFAULT '00',
		email       VARCHAR DEFAULT '',
		password    VARCHAR NOT NULL,
		status      VARCHAR DEFAULT '0',
		del_flag    VARCHAR DEFAULT '0',
		login_ip    VARCHAR DEFAULT '',
		login_date  TIMESTAMP,
		create_time TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		update_time TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS sys_role (
		role_id     BIGINT PRIMARY KEY DEFAULT nextval('seq_role_id'),
		role_name   VARCHAR NOT NULL,
		role_key    VARCHAR NOT NULL UNIQUE,
		role_sort   INTEGER DEFAULT 0,
		status      VARCHAR DEFAULT '0',
		del_flag    VARCHAR DEFAULT '0',
		create_time TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS sys_user_role (
		user_id BIGINT NOT NULL,
		role_id BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sys_menu (
		menu_id   BIGINT PRIMARY KEY DEFAULT nextval('seq_menu_id'),
		parent_id BIGINT DEFAULT 0,
		menu_name VARCHAR NOT NULL,
		path      VARCHAR DEFAULT '',
		component VARCHAR DEFAULT '',
		perms     VARCHAR DEFAULT '',
		menu_type VARCHAR DEFAULT 'C',
		visible   VARCHAR DEFAULT '0',
		status    VARCHAR DEFAULT '0',
		icon      VARCHAR DEFAULT '',
		order_num INTEGER DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS sys_role_menu (
		role_id BIGINT NOT NULL,
		menu_id BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sys_refresh_token (
		token_id      BIGINT PRIMARY KEY DEFAULT nextval('seq_refresh_token_id'),
		user_id       BIGINT NOT NULL,
		username      VARCHAR NOT NULL,
		refresh_token VARCHAR NOT NULL,
		expire_time   TIMESTAMP NOT NULL,
		device_info   VARCHAR DEFAULT '',
		ip_address    VARCHAR DEFAULT '',
		status        VARCHAR DEFAULT '0',
		create_time   TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		update_time   TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS sys_login_log (
		info_id    BIGINT PRIMARY KEY DEFAULT nextval('seq_login_log_id'),
		user_name  VARCHAR NOT NULL,
		ipaddr     VARCHAR DEFAULT '',
		device     VARCHAR DEFAULT '',
		status     VARCHAR DEFAULT '0',
		msg        VARCHAR DEFAULT '',
		login_time TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
}

// seed inserts the baseline role set and a default admin account on an empty
// database. Existing databases are left untouched.
func (s *Store) seed() error {
	var count int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM sys_role`).Scan(&count); err != nil {
		return fmt.Errorf("count roles: %w", err)
	}
	if count > 0 {
		return nil
	}

	roles := []struct {
		name string
		key  string
		sort int
	}{
		{"Administrator", "admin", 1},
		{"Common User", "common", 2},
		{"Guest", "guest", 3},
	}
	for _, r := range roles {
		if _, err := s.conn.Exec(
			`INSERT INTO sys_role (role_name, role_key, role_sort) VALUES (?, ?, ?)`,
			r.name, r.key, r.sort,
		); err != nil {
			return fmt.Errorf("seed role %s: %w", r.key, err)
		}
	}

	// Default admin account. The generated password is logged once so
	// fresh installs are reachable; operators should change it.
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}
	var adminID int64
	if err := s.conn.QueryRow(
		`INSERT INTO sys_user (user_name, nick_name, password) VALUES (?, ?, ?) RETURNING user_id`,
		"admin", "Administrator", string(hash),
	).Scan(&adminID); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}

	var adminRoleID int64
	if err := s.conn.QueryRow(
		`SELECT role_id FROM sys_role WHERE role_key = ?`, models.AdminRoleKey,
	).Scan(&adminRoleID); err != nil {
		return fmt.Errorf("lookup admin role: %w", err)
	}
	if _, err := s.conn.Exec(
		`INSERT INTO sys_user_role (user_id, role_id) VALUES (?, ?)`,
		adminID, adminRoleID,
	); err != nil {
		return fmt.Errorf("seed admin role grant: %w", err)
	}

	logging.Info().Str("username", "admin").Msg("Seeded default admin account")
	return nil
}
