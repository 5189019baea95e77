// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package token

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/portcullisproject/portcullis/internal/session"
)

func newTestAccessManager(t *testing.T) *AccessManager {
	t.Helper()
	return NewAccessManager(session.NewMemoryStore(), 30)
}

func TestAccessManager_IssueAndResolve(t *testing.T) {
	m := newTestAccessManager(t)
	ctx := context.Background()

	sess := &session.Session{
		UserID:      7,
		Username:    "alice",
		Roles:       []string{"common"},
		Permissions: []string{"system:user:list"},
		IPAddress:   "10.0.0.1",
	}
	tokenString, err := m.Issue(ctx, sess)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// Opaque tokens are 32 hex characters with no separators and no claims.
	if len(tokenString) != 32 {
		t.Errorf("token length = %d, want 32", len(tokenString))
	}
	if strings.Contains(tokenString, "-") || strings.Contains(tokenString, ".") {
		t.Errorf("token %q contains separators, want opaque hex", tokenString)
	}

	resolved, err := m.Resolve(ctx, tokenString)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.UserID != 7 || resolved.Username != "alice" {
		t.Errorf("resolved identity = %d/%q, want 7/alice", resolved.UserID, resolved.Username)
	}
	if resolved.ExpiresAt.Before(resolved.LoginTime) {
		t.Error("ExpiresAt before LoginTime")
	}
}

func TestAccessManager_TokensAreUnique(t *testing.T) {
	m := newTestAccessManager(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := m.Issue(ctx, &session.Session{UserID: 1, Username: "a"})
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token issued: %q", tok)
		}
		seen[tok] = true
	}
}

func TestAccessManager_Revoke(t *testing.T) {
	m := newTestAccessManager(t)
	ctx := context.Background()

	tok, err := m.Issue(ctx, &session.Session{UserID: 3, Username: "bob"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := m.Revoke(ctx, tok); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := m.Resolve(ctx, tok); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Resolve() after revoke error = %v, want ErrSessionNotFound", err)
	}
}

func TestAccessManager_RevokeUser(t *testing.T) {
	m := newTestAccessManager(t)
	ctx := context.Background()

	var tokens []string
	for i := 0; i < 3; i++ {
		tok, err := m.Issue(ctx, &session.Session{UserID: 5, Username: "carol"})
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		tokens = append(tokens, tok)
	}
	other, err := m.Issue(ctx, &session.Session{UserID: 6, Username: "dave"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	removed, err := m.RevokeUser(ctx, 5)
	if err != nil {
		t.Fatalf("RevokeUser() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("RevokeUser() removed = %d, want 3", removed)
	}
	for _, tok := range tokens {
		if _, err := m.Resolve(ctx, tok); err == nil {
			t.Errorf("Resolve(%q) after RevokeUser succeeded, want error", tok)
		}
	}
	if _, err := m.Resolve(ctx, other); err != nil {
		t.Errorf("Resolve() for untouched user error = %v, want nil", err)
	}
}

func TestAccessManager_ResolveUnknown(t *testing.T) {
	m := newTestAccessManager(t)

	_, err := m.Resolve(context.Background(), "feedfacefeedfacefeedfacefeedface")
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Resolve() error = %v, want ErrSessionNotFound", err)
	}
}
