// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Package token issues and inspects the two credential kinds: signed JWT
// refresh tokens and opaque access tokens backed by the session store.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TypeRefresh is the claim value marking a token as a refresh token.
// Access tokens are opaque and never carry claims, so any JWT presented
// for refresh must declare this type.
const TypeRefresh = "refresh"

// RefreshStatus classifies the outcome of inspecting a refresh token.
type RefreshStatus int

const (
	// RefreshValid means the signature verified, the type matched and the
	// token has not expired.
	RefreshValid RefreshStatus = iota

	// RefreshMalformed means the token failed to parse or its signature
	// did not verify.
	RefreshMalformed

	// RefreshExpired means the token parsed and verified but is past its
	// expiry.
	RefreshExpired

	// RefreshWrongType means the token verified but its type claim is not
	// "refresh" (for example an access credential presented for rotation).
	RefreshWrongType

	// RefreshBadClaims means the token verified but required identity
	// claims are missing.
	RefreshBadClaims
)

// RefreshClaims is the result of inspecting a refresh token. Identity fields
// are only meaningful when Status is RefreshValid.
type RefreshClaims struct {
	Status    RefreshStatus
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

// refreshClaims is the wire shape of refresh token claims.
type refreshClaims struct {
	Type     string `json:"type"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RefreshManager creates and inspects refresh tokens.
//
// Refresh tokens are HMAC-SHA512 signed JWTs. Signature verification alone
// does not make a token usable: callers must also confirm a live server-side
// record via the refresh-token store, which is what makes revocation work.
type RefreshManager struct {
	secret []byte
	ttl    time.Duration
}

// NewRefreshManager creates a refresh token manager. ttlMinutes is the token
// lifetime; the secret must be non-empty.
func NewRefreshManager(secret string, ttlMinutes int) (*RefreshManager, error) {
	if secret == "" {
		return nil, fmt.Errorf("refresh token secret is required but was empty")
	}
	if ttlMinutes <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive, got %d", ttlMinutes)
	}

	return &RefreshManager{
		secret: []byte(secret),
		ttl:    time.Duration(ttlMinutes) * time.Minute,
	}, nil
}

// TTL returns the configured refresh token lifetime.
func (m *RefreshManager) TTL() time.Duration {
	return m.ttl
}

// Generate creates a signed refresh token for the user and returns the token
// string together with its expiry instant.
func (m *RefreshManager) Generate(userID int64, username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)

	claims := &refreshClaims{
		Type:     TypeRefresh,
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return signed, expiresAt, nil
}

// Inspect parses and verifies a refresh token and classifies the result.
// It never returns an error: every failure maps to a status so callers can
// produce distinct messages for expired, malformed and wrong-type tokens.
//
// Claims validation is disabled during parsing so an expired token with a
// good signature is reported as RefreshExpired rather than folded into the
// generic parse failure.
func (m *RefreshManager) Inspect(tokenString string) RefreshClaims {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := &refreshClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})

	if err != nil || !token.Valid {
		return RefreshClaims{Status: RefreshMalformed}
	}

	if claims.Type != TypeRefresh {
		return RefreshClaims{Status: RefreshWrongType}
	}

	if claims.ExpiresAt == nil {
		return RefreshClaims{Status: RefreshBadClaims}
	}
	if !claims.ExpiresAt.Time.After(time.Now()) {
		return RefreshClaims{Status: RefreshExpired}
	}

	if claims.UserID == 0 || claims.Username == "" {
		return RefreshClaims{Status: RefreshBadClaims}
	}

	return RefreshClaims{
		Status:    RefreshValid,
		UserID:    claims.UserID,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time,
	}
}
