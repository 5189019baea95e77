// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Package session stores the server-side state behind opaque access tokens.
// A token is valid exactly as long as its session exists and has not expired,
// so deleting a session revokes the token instantly.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Session-related errors
var (
	// ErrSessionNotFound is returned when a session is not found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when trying to access an expired session.
	ErrSessionExpired = errors.New("session expired")
)

// Session is the authenticated state keyed by an opaque access token.
// It carries everything permission checks need so no database access happens
// on the request path.
type Session struct {
	// Token is the opaque access token string (also the store key).
	Token string

	// UserID is the authenticated user's unique identifier.
	UserID int64

	// Username is the authenticated user's login name.
	Username string

	// DeptID is the user's department, zero when unset.
	DeptID int64

	// Roles are the user's role keys.
	Roles []string

	// Permissions are the user's permission strings.
	Permissions []string

	// IPAddress is the client address recorded at login.
	IPAddress string

	// LoginTime is when the session was created.
	LoginTime time.Time

	// ExpiresAt is when the session expires.
	ExpiresAt time.Time
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Store defines the interface for session storage backends.
type Store interface {
	// Create stores a new session keyed by its token.
	Create(ctx context.Context, session *Session) error

	// Get retrieves a session by token.
	// Returns ErrSessionNotFound if not found.
	// Returns ErrSessionExpired if the session exists but is expired.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete removes a session by token.
	// Does not return an error if the session doesn't exist.
	Delete(ctx context.Context, token string) error

	// DeleteByUserID removes all sessions for a user.
	// Returns the count of deleted sessions.
	DeleteByUserID(ctx context.Context, userID int64) (int, error)

	// CleanupExpired removes all expired sessions.
	// Returns the count of deleted sessions.
	CleanupExpired(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. For production, use BadgerStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Create stores a new session.
func (s *MemoryStore) Create(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Deep copy to prevent external modifications
	s.sessions[session.Token] = copySession(session)
	return nil
}

// Get retrieves a session by token.
func (s *MemoryStore) Get(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		return nil, ErrSessionExpired
	}

	return copySession(session), nil
}

// Delete removes a session by token.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// DeleteByUserID removes all sessions for a user.
func (s *MemoryStore) DeleteByUserID(_ context.Context, userID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for token, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, token)
			count++
		}
	}
	return count, nil
}

// CleanupExpired removes all expired sessions.
func (s *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for token, session := range s.sessions {
		if session.IsExpired() {
			delete(s.sessions, token)
			count++
		}
	}
	return count, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// copySession creates a deep copy of a session.
func copySession(session *Session) *Session {
	copied := &Session{
		Token:     session.Token,
		UserID:    session.UserID,
		Username:  session.Username,
		DeptID:    session.DeptID,
		IPAddress: session.IPAddress,
		LoginTime: session.LoginTime,
		ExpiresAt: session.ExpiresAt,
	}

	if session.Roles != nil {
		copied.Roles = make([]string, len(session.Roles))
		copy(copied.Roles, session.Roles)
	}
	if session.Permissions != nil {
		copied.Permissions = make([]string, len(session.Permissions))
		copy(copied.Permissions, session.Permissions)
	}

	return copied
}
