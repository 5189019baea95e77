// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/portcullisproject/portcullis/internal/session"
	"github.com/portcullisproject/portcullis/internal/token"
)

// newTestChecker returns a local checker backed by an in-memory session
// store, plus a live access token for a user with the given roles and
// permissions.
func newTestChecker(t *testing.T, roles, perms []string) (*LocalChecker, string) {
	t.Helper()

	access := token.NewAccessManager(session.NewMemoryStore(), 30)
	sess := &session.Session{
		UserID:      42,
		Username:    "operator",
		Roles:       roles,
		Permissions: perms,
	}
	accessToken, err := access.Issue(context.Background(), sess)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return NewLocalChecker(access), accessToken
}

func TestLocalChecker_TokenValidityOnly(t *testing.T) {
	checker, accessToken := newTestChecker(t, []string{"common"}, nil)

	if err := checker.Check(context.Background(), accessToken, ""); err != nil {
		t.Errorf("Check() with empty expression error = %v, want nil", err)
	}
}

func TestLocalChecker_NoToken(t *testing.T) {
	checker, _ := newTestChecker(t, nil, nil)

	err := checker.Check(context.Background(), "", "")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Check() error = %v, want ErrNoToken", err)
	}
}

func TestLocalChecker_UnknownToken(t *testing.T) {
	checker, _ := newTestChecker(t, nil, nil)

	err := checker.Check(context.Background(), "no-such-token", "")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Check() error = %v, want ErrTokenInvalid", err)
	}
}

func TestLocalChecker_Expression(t *testing.T) {
	checker, accessToken := newTestChecker(t,
		[]string{"common"},
		[]string{"system:user:list"},
	)

	tests := []struct {
		name       string
		expression string
		wantErr    error
	}{
		{"permission granted", "@ss.hasPermi('system:user:list')", nil},
		{"permission denied", "@ss.hasPermi('system:user:remove')", ErrPermissionDenied},
		{"role granted", "@ss.hasRole('common')", nil},
		{"role denied", "@ss.hasRole('admin')", ErrPermissionDenied},
		{"any role granted", "@ss.hasAnyRoles('admin,common')", nil},
		{"malformed expression", "@ss.bogus('x')", ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checker.Check(context.Background(), accessToken, tt.expression)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Check(%q) error = %v, want %v", tt.expression, err, tt.wantErr)
			}
		})
	}
}

func TestLocalChecker_Subject(t *testing.T) {
	checker, accessToken := newTestChecker(t, []string{"common"}, []string{"system:user:list"})

	sess, err := checker.Subject(context.Background(), accessToken)
	if err != nil {
		t.Fatalf("Subject() error = %v", err)
	}
	if sess.UserID != 42 {
		t.Errorf("Subject() UserID = %d, want 42", sess.UserID)
	}
	if sess.Username != "operator" {
		t.Errorf("Subject() Username = %q, want %q", sess.Username, "operator")
	}
}

func TestLocalChecker_SubjectErrors(t *testing.T) {
	checker, _ := newTestChecker(t, nil, nil)

	if _, err := checker.Subject(context.Background(), ""); !errors.Is(err, ErrNoToken) {
		t.Errorf("Subject(\"\") error = %v, want ErrNoToken", err)
	}
	if _, err := checker.Subject(context.Background(), "gone"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Subject(unknown) error = %v, want ErrTokenInvalid", err)
	}
}
