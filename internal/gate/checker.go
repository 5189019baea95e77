// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Package gate enforces route access policies on incoming requests.
//
// Every request passes the same decision sequence: resolve the route, apply
// its declared policy, and on any failure reply with HTTP 403 and the
// uniform denial envelope. There is no fail-open path: unknown errors,
// remote outages and panics all deny.
package gate

import (
	"context"
	"errors"

	"github.com/portcullisproject/portcullis/internal/permit"
	"github.com/portcullisproject/portcullis/internal/session"
	"github.com/portcullisproject/portcullis/internal/token"
)

// Denial errors. The gate maps all of them to the same 403 envelope; the
// distinction exists for logging and metrics.
var (
	ErrNoToken          = errors.New("request carries no access token")
	ErrTokenInvalid     = errors.New("access token is invalid or expired")
	ErrPermissionDenied = errors.New("subject lacks the required permission")
	ErrNoPolicy         = errors.New("no access policy configured for route")
	ErrCheckUnavailable = errors.New("permission check unavailable")
)

// PermissionChecker decides whether the holder of an access token satisfies
// a permission expression. An empty expression asks only for token validity.
type PermissionChecker interface {
	Check(ctx context.Context, accessToken, expression string) error
}

// LocalChecker evaluates permissions against the in-process session store.
// This is the authority behind the service-to-service validate endpoint.
type LocalChecker struct {
	access *token.AccessManager
}

// NewLocalChecker creates a checker over the access token manager.
func NewLocalChecker(access *token.AccessManager) *LocalChecker {
	return &LocalChecker{access: access}
}

// Check resolves the token to a session and evaluates the expression.
func (c *LocalChecker) Check(ctx context.Context, accessToken, expression string) error {
	if accessToken == "" {
		return ErrNoToken
	}

	sess, err := c.access.Resolve(ctx, accessToken)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
			return ErrTokenInvalid
		}
		return err
	}

	// Token-validity-only check
	if expression == "" {
		return nil
	}

	subject := &permit.Subject{
		UserID:      sess.UserID,
		Username:    sess.Username,
		Roles:       sess.Roles,
		Permissions: sess.Permissions,
	}
	if !permit.Evaluate(expression, subject) {
		return ErrPermissionDenied
	}
	return nil
}

// Subject resolves a token to the subject behind it, for handlers that need
// the identity rather than a yes/no decision.
func (c *LocalChecker) Subject(ctx context.Context, accessToken string) (*session.Session, error) {
	if accessToken == "" {
		return nil, ErrNoToken
	}
	sess, err := c.access.Resolve(ctx, accessToken)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}
	return sess, nil
}
