// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package services

import (
	"context"
	"time"

	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/metrics"
	"github.com/portcullisproject/portcullis/internal/session"
	"github.com/portcullisproject/portcullis/internal/store"
)

// SessionSweeperService periodically removes expired sessions from the
// session store. Expired sessions are already unusable; sweeping only
// reclaims storage.
type SessionSweeperService struct {
	store    session.Store
	interval time.Duration
}

// NewSessionSweeperService creates the session sweeper.
func NewSessionSweeperService(st session.Store, interval time.Duration) *SessionSweeperService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SessionSweeperService{store: st, interval: interval}
}

// Serve implements suture.Service.
func (s *SessionSweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.store.CleanupExpired(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("Session sweep failed")
				continue
			}
			if removed > 0 {
				for i := 0; i < removed; i++ {
					metrics.RecordSessionRevoked("expired")
				}
				logging.Debug().Int("removed", removed).Msg("Swept expired sessions")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *SessionSweeperService) String() string {
	return "session-sweeper"
}

// RefreshSweeperService periodically deletes expired refresh token rows.
type RefreshSweeperService struct {
	db       *store.Store
	interval time.Duration
}

// NewRefreshSweeperService creates the refresh token sweeper.
func NewRefreshSweeperService(db *store.Store, interval time.Duration) *RefreshSweeperService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RefreshSweeperService{db: db, interval: interval}
}

// Serve implements suture.Service.
func (s *RefreshSweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := s.db.DeleteExpiredRefreshTokens(ctx)
			if err != nil {
				logging.Warn().Err(err).Msg("Refresh token sweep failed")
				continue
			}
			if removed > 0 {
				logging.Debug().Int64("removed", removed).Msg("Swept expired refresh tokens")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *RefreshSweeperService) String() string {
	return "refresh-sweeper"
}

// BadgerGCService periodically runs Badger value log garbage collection.
// Only mounted when the Badger session backend is selected.
type BadgerGCService struct {
	store    *session.BadgerStore
	interval time.Duration
}

// NewBadgerGCService creates the Badger GC service.
func NewBadgerGCService(st *session.BadgerStore, interval time.Duration) *BadgerGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &BadgerGCService{store: st, interval: interval}
}

// Serve implements suture.Service.
func (s *BadgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.store.RunGC(0.5); err != nil {
				// Badger returns an error when there was nothing to collect.
				logging.Debug().Err(err).Msg("Badger GC pass finished")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *BadgerGCService) String() string {
	return "badger-gc"
}
