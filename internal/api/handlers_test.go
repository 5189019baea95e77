// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package api

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/portcullisproject/portcullis/internal/audit"
	"github.com/portcullisproject/portcullis/internal/config"
	"github.com/portcullisproject/portcullis/internal/guest"
	"github.com/portcullisproject/portcullis/internal/models"
	"github.com/portcullisproject/portcullis/internal/session"
	"github.com/portcullisproject/portcullis/internal/store"
	"github.com/portcullisproject/portcullis/internal/token"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef0123456789abcdef"

// testHandler bundles the handler with the live pieces tests poke at
// directly.
type testHandler struct {
	handler  *Handler
	conn     *sql.DB
	db       *store.Store
	sessions session.Store
	access   *token.AccessManager
	refresh  *token.RefreshManager
}

// newTestHandler builds a handler over an in-memory DuckDB store with the
// seeded admin account and an in-memory session store. The login limiter
// is disabled; tests that exercise it set Security.LoginRateLimit
// themselves.
func newTestHandler(t *testing.T) *testHandler {
	t.Helper()

	conn, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db, err := store.NewWithConn(conn)
	if err != nil {
		t.Fatalf("store.NewWithConn() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sessions := session.NewMemoryStore()
	access := token.NewAccessManager(sessions, 30)
	refresh, err := token.NewRefreshManager(testJWTSecret, 60)
	if err != nil {
		t.Fatalf("token.NewRefreshManager() error = %v", err)
	}

	cfg := &config.Config{}
	cfg.Security.JWTSecret = testJWTSecret
	cfg.Security.AccessTokenTTL = 30
	cfg.Security.RefreshTokenTTL = 60
	cfg.Security.GuestRoleKey = "guest"

	h := NewHandler(cfg, db, access, refresh, guest.New(db, "guest"), audit.NewBus(false, 1))
	return &testHandler{
		handler:  h,
		conn:     conn,
		db:       db,
		sessions: sessions,
		access:   access,
		refresh:  refresh,
	}
}

// postJSON performs a request with a JSON body against the given handler
// func and decodes the response envelope.
func postJSON(t *testing.T, fn http.HandlerFunc, target string, body any) (*httptest.ResponseRecorder, models.Envelope) {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal request body: %v", err)
	}
	r := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	r.RemoteAddr = "203.0.113.10:54321"

	rec := httptest.NewRecorder()
	fn(rec, r)

	var env models.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Unmarshal envelope: %v (body %q)", err, rec.Body.String())
	}
	return rec, env
}

// loginResult re-decodes an envelope's data field into the login payload.
func loginResult(t *testing.T, env models.Envelope) *models.LoginResult {
	t.Helper()

	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("Marshal envelope data: %v", err)
	}
	var result models.LoginResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("Unmarshal login result: %v", err)
	}
	return &result
}

// seedUser inserts a user with a bcrypt-hashed password and a role grant.
// mutate may adjust status flags before insertion.
func seedUser(t *testing.T, th *testHandler, username, password, roleKey string, mutate func(*models.User)) int64 {
	t.Helper()
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	user := &models.User{
		Username: username,
		Nickname: username,
		Password: string(hash),
		Status:   models.StatusNormal,
		DelFlag:  models.DelFlagNormal,
	}
	if mutate != nil {
		mutate(user)
	}

	role, err := th.db.GetRoleByKey(ctx, roleKey)
	if err != nil {
		t.Fatalf("GetRoleByKey(%q) error = %v", roleKey, err)
	}
	id, err := th.db.CreateUserWithRole(ctx, user, role.RoleID)
	if err != nil {
		t.Fatalf("CreateUserWithRole() error = %v", err)
	}
	return id
}

// signedTestToken hand-signs a JWT with the test secret, for exercising
// the wrong-type rejection path.
func signedTestToken(t *testing.T, typ string, userID int64, username string) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"type":     typ,
		"userId":   userID,
		"username": username,
		"exp":      now.Add(time.Hour).Unix(),
		"iat":      now.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

// adminLogin logs the seeded admin in and returns the token pair.
func adminLogin(t *testing.T, th *testHandler) *models.LoginResult {
	t.Helper()

	_, env := postJSON(t, th.handler.Login, "/auth/login", models.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if env.Code != models.CodeSuccess {
		t.Fatalf("login code = %d, msg = %q", env.Code, env.Msg)
	}
	return loginResult(t, env)
}
