// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package api

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/portcullisproject/portcullis/internal/models"
)

func TestLogin_Success(t *testing.T) {
	th := newTestHandler(t)

	result := adminLogin(t, th)

	if result.AccessToken == "" {
		t.Error("AccessToken is empty")
	}
	if result.RefreshToken == "" {
		t.Error("RefreshToken is empty")
	}
	if result.ExpiresIn != 30*60 {
		t.Errorf("ExpiresIn = %d, want %d", result.ExpiresIn, 30*60)
	}
	if result.User == nil {
		t.Fatal("User payload missing")
	}
	if result.User.Username != "admin" {
		t.Errorf("User.Username = %q, want %q", result.User.Username, "admin")
	}
	if len(result.User.Roles) != 1 || result.User.Roles[0] != "admin" {
		t.Errorf("User.Roles = %v, want [admin]", result.User.Roles)
	}
	if len(result.User.Permissions) != 1 || result.User.Permissions[0] != models.AllPermissions {
		t.Errorf("User.Permissions = %v, want [%s]", result.User.Permissions, models.AllPermissions)
	}

	// The access token resolves to a live session.
	sess, err := th.access.Resolve(context.Background(), result.AccessToken)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if sess.Username != "admin" {
		t.Errorf("session Username = %q, want %q", sess.Username, "admin")
	}

	// Exactly one refresh record persisted.
	n, err := th.db.CountRefreshTokensForUser(context.Background(), sess.UserID)
	if err != nil {
		t.Fatalf("CountRefreshTokensForUser() error = %v", err)
	}
	if n != 1 {
		t.Errorf("refresh record count = %d, want 1", n)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	th := newTestHandler(t)

	_, env := postJSON(t, th.handler.Login, "/auth/login", models.LoginRequest{
		Username: "admin",
		Password: "not-the-password",
	})

	if env.Code != models.CodeError {
		t.Errorf("code = %d, want %d", env.Code, models.CodeError)
	}
	if env.Msg != "incorrect username or password" {
		t.Errorf("msg = %q, want %q", env.Msg, "incorrect username or password")
	}
}

func TestLogin_UnknownUserSameMessage(t *testing.T) {
	th := newTestHandler(t)

	_, env := postJSON(t, th.handler.Login, "/auth/login", models.LoginRequest{
		Username: "nobody",
		Password: "whatever123",
	})

	if env.Msg != "incorrect username or password" {
		t.Errorf("msg = %q, want %q", env.Msg, "incorrect username or password")
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	th := newTestHandler(t)
	seedUser(t, th, "locked", "Password1", "common", func(u *models.User) {
		u.Status = models.StatusDisabled
	})

	_, env := postJSON(t, th.handler.Login, "/auth/login", models.LoginRequest{
		Username: "locked",
		Password: "Password1",
	})

	if env.Msg != "account is disabled" {
		t.Errorf("msg = %q, want %q", env.Msg, "account is disabled")
	}
}

func TestLogin_DeletedAccount(t *testing.T) {
	th := newTestHandler(t)
	seedUser(t, th, "ghost", "Password1", "common", func(u *models.User) {
		u.DelFlag = models.DelFlagDeleted
	})

	_, env := postJSON(t, th.handler.Login, "/auth/login", models.LoginRequest{
		Username: "ghost",
		Password: "Password1",
	})

	if env.Msg != "account has been deleted" {
		t.Errorf("msg = %q, want %q", env.Msg, "account has been deleted")
	}
}

func TestLogin_ValidationFailure(t *testing.T) {
	th := newTestHandler(t)

	_, env := postJSON(t, th.handler.Login, "/auth/login", models.LoginRequest{
		Username: "a", // below the minimum length
		Password: "admin123",
	})

	if env.Code != models.CodeError {
		t.Errorf("code = %d, want %d", env.Code, models.CodeError)
	}
}

func TestLogin_RateLimited(t *testing.T) {
	th := newTestHandler(t)
	th.handler.config.Security.LoginRateLimit = 0.0001

	// The limiter carries a burst of 3; the fourth rapid attempt is cut off.
	var env models.Envelope
	for i := 0; i < 4; i++ {
		_, env = postJSON(t, th.handler.Login, "/auth/login", models.LoginRequest{
			Username: "admin",
			Password: "wrong-password",
		})
	}

	if env.Msg != "too many login attempts, try again later" {
		t.Errorf("msg = %q, want rate limit message", env.Msg)
	}
}

func TestGuestLogin_DisabledByDefault(t *testing.T) {
	th := newTestHandler(t)

	_, env := postJSON(t, th.handler.GuestLogin, "/auth/guest", models.GuestLoginRequest{
		GuestID: "abc123",
	})

	if env.Msg != "guest login is not enabled" {
		t.Errorf("msg = %q, want %q", env.Msg, "guest login is not enabled")
	}
}

func TestGuestLogin_ProvisionsAndReuses(t *testing.T) {
	th := newTestHandler(t)
	th.handler.config.Security.GuestLoginEnabled = true

	_, env := postJSON(t, th.handler.GuestLogin, "/auth/guest", models.GuestLoginRequest{
		GuestID: "abc123",
	})
	if env.Code != models.CodeSuccess {
		t.Fatalf("guest login code = %d, msg = %q", env.Code, env.Msg)
	}
	first := loginResult(t, env)
	if first.User.Username != "guest_abc123" {
		t.Errorf("Username = %q, want %q", first.User.Username, "guest_abc123")
	}
	if len(first.User.Roles) != 1 || first.User.Roles[0] != "guest" {
		t.Errorf("Roles = %v, want [guest]", first.User.Roles)
	}

	// Same identifier maps to the same account.
	_, env = postJSON(t, th.handler.GuestLogin, "/auth/guest", models.GuestLoginRequest{
		GuestID: "abc123",
	})
	second := loginResult(t, env)
	if second.User.UserID != first.User.UserID {
		t.Errorf("UserID changed across guest logins: %d then %d", first.User.UserID, second.User.UserID)
	}
}

func TestGuestLogin_RecordsLoginInfo(t *testing.T) {
	th := newTestHandler(t)
	th.handler.config.Security.GuestLoginEnabled = true

	for i := 0; i < 2; i++ {
		_, env := postJSON(t, th.handler.GuestLogin, "/auth/guest", models.GuestLoginRequest{
			GuestID: "meta42",
		})
		if env.Code != models.CodeSuccess {
			t.Fatalf("guest login %d code = %d, msg = %q", i, env.Code, env.Msg)
		}
	}

	var (
		loginIP   sql.NullString
		loginDate sql.NullTime
	)
	row := th.conn.QueryRow(`SELECT login_ip, login_date FROM sys_user WHERE user_name = 'guest_meta42'`)
	if err := row.Scan(&loginIP, &loginDate); err != nil {
		t.Fatalf("Scan login info: %v", err)
	}
	if !loginIP.Valid || loginIP.String != "203.0.113.10" {
		t.Errorf("login_ip = %v, want 203.0.113.10", loginIP)
	}
	if !loginDate.Valid {
		t.Error("login_date not recorded")
	}
}

func TestRefresh_RotatesTokens(t *testing.T) {
	th := newTestHandler(t)
	first := adminLogin(t, th)

	_, env := postJSON(t, th.handler.Refresh, "/auth/refresh", models.RefreshRequest{
		RefreshToken: first.RefreshToken,
	})
	if env.Code != models.CodeSuccess {
		t.Fatalf("refresh code = %d, msg = %q", env.Code, env.Msg)
	}
	second := loginResult(t, env)

	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token not rotated")
	}
	if second.AccessToken == first.AccessToken {
		t.Error("access token not reissued")
	}

	// The old refresh token was replaced and no longer works.
	_, env = postJSON(t, th.handler.Refresh, "/auth/refresh", models.RefreshRequest{
		RefreshToken: first.RefreshToken,
	})
	if env.Code != models.CodeUnauthorized {
		t.Errorf("reused token code = %d, want %d", env.Code, models.CodeUnauthorized)
	}
	if env.Msg != "refresh token is no longer valid" {
		t.Errorf("reused token msg = %q, want %q", env.Msg, "refresh token is no longer valid")
	}
}

func TestRefresh_RenamedAccountRejected(t *testing.T) {
	th := newTestHandler(t)
	first := adminLogin(t, th)

	if _, err := th.conn.Exec(`UPDATE sys_user SET user_name = 'root' WHERE user_name = 'admin'`); err != nil {
		t.Fatalf("rename user: %v", err)
	}

	_, env := postJSON(t, th.handler.Refresh, "/auth/refresh", models.RefreshRequest{
		RefreshToken: first.RefreshToken,
	})

	if env.Code != models.CodeUnauthorized {
		t.Errorf("code = %d, want %d", env.Code, models.CodeUnauthorized)
	}
	if env.Msg != "refresh token does not match this account" {
		t.Errorf("msg = %q, want %q", env.Msg, "refresh token does not match this account")
	}
}

func TestRefresh_MalformedToken(t *testing.T) {
	th := newTestHandler(t)

	_, env := postJSON(t, th.handler.Refresh, "/auth/refresh", models.RefreshRequest{
		RefreshToken: "not-a-jwt",
	})

	if env.Code != models.CodeUnauthorized {
		t.Errorf("code = %d, want %d", env.Code, models.CodeUnauthorized)
	}
	if env.Msg != "refresh token is invalid" {
		t.Errorf("msg = %q, want %q", env.Msg, "refresh token is invalid")
	}
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	th := newTestHandler(t)

	// A structurally valid JWT of the wrong type must not refresh.
	wrongType := signedTestToken(t, "access", 99, "admin")
	_, env := postJSON(t, th.handler.Refresh, "/auth/refresh", models.RefreshRequest{
		RefreshToken: wrongType,
	})

	if env.Code != models.CodeUnauthorized {
		t.Errorf("code = %d, want %d", env.Code, models.CodeUnauthorized)
	}
	if env.Msg != "token is not a refresh token" {
		t.Errorf("msg = %q, want %q", env.Msg, "token is not a refresh token")
	}
}

func TestLogout_AlwaysSucceeds(t *testing.T) {
	th := newTestHandler(t)

	// Without a token.
	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.RemoteAddr = "203.0.113.10:54321"
	rec := httptest.NewRecorder()
	th.handler.Logout(rec, r)

	var env models.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	if env.Code != models.CodeSuccess || env.Msg != "logout success" {
		t.Errorf("envelope = %d/%q, want 200/logout success", env.Code, env.Msg)
	}
}

func TestLogout_RevokesRefreshTokenFromBody(t *testing.T) {
	th := newTestHandler(t)
	result := adminLogin(t, th)

	// No access token, only a refresh token in the body.
	_, env := postJSON(t, th.handler.Logout, "/auth/logout", map[string]string{
		"refreshToken": result.RefreshToken,
	})
	if env.Msg != "logout success" {
		t.Fatalf("msg = %q, want %q", env.Msg, "logout success")
	}

	_, env = postJSON(t, th.handler.Refresh, "/auth/refresh", models.RefreshRequest{
		RefreshToken: result.RefreshToken,
	})
	if env.Code != models.CodeUnauthorized {
		t.Errorf("refresh after logout code = %d, want %d", env.Code, models.CodeUnauthorized)
	}
}

func TestLogout_RevokesSessionAndRefreshTokens(t *testing.T) {
	th := newTestHandler(t)
	result := adminLogin(t, th)
	ctx := context.Background()

	sess, err := th.access.Resolve(ctx, result.AccessToken)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	userID := sess.UserID

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer "+result.AccessToken)
	r.RemoteAddr = "203.0.113.10:54321"
	rec := httptest.NewRecorder()
	th.handler.Logout(rec, r)

	if _, err := th.access.Resolve(ctx, result.AccessToken); err == nil {
		t.Error("access token still resolves after logout")
	}

	// The refresh record is disabled, so the token cannot be replayed.
	_, env := postJSON(t, th.handler.Refresh, "/auth/refresh", models.RefreshRequest{
		RefreshToken: result.RefreshToken,
	})
	if env.Msg != "refresh token has been revoked" {
		t.Errorf("refresh after logout msg = %q, want %q", env.Msg, "refresh token has been revoked")
	}

	rec2, err := th.db.GetRefreshTokenByUser(ctx, userID)
	if err == nil && rec2.IsActive(time.Now()) {
		t.Error("refresh record still active after logout")
	}
}
