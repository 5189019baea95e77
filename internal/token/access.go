// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package token

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/portcullisproject/portcullis/internal/session"
)

// AccessManager issues and resolves opaque access tokens.
//
// An access token is a random UUID with no embedded claims. All state lives
// in the session store, so deleting the session revokes the token with
// immediate effect. Nothing about the token string is verifiable offline.
type AccessManager struct {
	store session.Store
	ttl   time.Duration
}

// NewAccessManager creates an access token manager over the given session
// store. ttlMinutes is the access token lifetime.
func NewAccessManager(store session.Store, ttlMinutes int) *AccessManager {
	return &AccessManager{
		store: store,
		ttl:   time.Duration(ttlMinutes) * time.Minute,
	}
}

// TTL returns the configured access token lifetime.
func (m *AccessManager) TTL() time.Duration {
	return m.ttl
}

// Issue mints a new access token for the identity and persists the session.
// The passed session's Token, LoginTime and ExpiresAt fields are set here.
func (m *AccessManager) Issue(ctx context.Context, s *session.Session) (string, error) {
	now := time.Now()
	s.Token = newTokenID()
	s.LoginTime = now
	s.ExpiresAt = now.Add(m.ttl)

	if err := m.store.Create(ctx, s); err != nil {
		return "", err
	}
	return s.Token, nil
}

// Resolve maps an access token to its live session.
// Returns session.ErrSessionNotFound for unknown tokens and
// session.ErrSessionExpired for known but expired ones.
func (m *AccessManager) Resolve(ctx context.Context, token string) (*session.Session, error) {
	return m.store.Get(ctx, token)
}

// Revoke deletes the session behind the token. Unknown tokens are a no-op.
func (m *AccessManager) Revoke(ctx context.Context, token string) error {
	return m.store.Delete(ctx, token)
}

// RevokeUser deletes every session belonging to the user and returns the
// count of sessions removed.
func (m *AccessManager) RevokeUser(ctx context.Context, userID int64) (int, error) {
	return m.store.DeleteByUserID(ctx, userID)
}

// newTokenID generates an opaque token identifier.
// UUIDs are stripped of dashes to match the compact historical format.
func newTokenID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
