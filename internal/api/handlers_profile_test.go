// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/portcullisproject/portcullis/internal/models"
)

func getWithToken(t *testing.T, fn http.HandlerFunc, target, accessToken string) (*httptest.ResponseRecorder, models.Envelope) {
	t.Helper()

	r := httptest.NewRequest(http.MethodGet, target, nil)
	if accessToken != "" {
		r.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rec := httptest.NewRecorder()
	fn(rec, r)

	var env models.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Unmarshal envelope: %v (body %q)", err, rec.Body.String())
	}
	return rec, env
}

func TestMe_ReturnsIdentity(t *testing.T) {
	th := newTestHandler(t)
	result := adminLogin(t, th)

	_, env := getWithToken(t, th.handler.Me, "/auth/me", result.AccessToken)
	if env.Code != models.CodeSuccess {
		t.Fatalf("code = %d, msg = %q", env.Code, env.Msg)
	}

	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("Marshal envelope data: %v", err)
	}
	var profile models.Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		t.Fatalf("Unmarshal profile: %v", err)
	}
	if profile.Username != "admin" {
		t.Errorf("Username = %q, want %q", profile.Username, "admin")
	}
	if len(profile.Roles) != 1 || profile.Roles[0] != "admin" {
		t.Errorf("Roles = %v, want [admin]", profile.Roles)
	}
}

func TestMe_UnknownToken(t *testing.T) {
	th := newTestHandler(t)

	_, env := getWithToken(t, th.handler.Me, "/auth/me", "deadbeef")
	if env.Code != models.CodeUnauthorized {
		t.Errorf("code = %d, want %d", env.Code, models.CodeUnauthorized)
	}
	if env.Msg != "session not found" {
		t.Errorf("msg = %q, want %q", env.Msg, "session not found")
	}
}

func TestRouters_AdminSeesMenuTree(t *testing.T) {
	th := newTestHandler(t)
	seedMenu(t, th)
	result := adminLogin(t, th)

	_, env := getWithToken(t, th.handler.Routers, "/auth/routers", result.AccessToken)
	if env.Code != models.CodeSuccess {
		t.Fatalf("code = %d, msg = %q", env.Code, env.Msg)
	}

	raw, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("Marshal envelope data: %v", err)
	}
	var routers []models.Router
	if err := json.Unmarshal(raw, &routers); err != nil {
		t.Fatalf("Unmarshal routers: %v", err)
	}
	if len(routers) != 1 {
		t.Fatalf("router count = %d, want 1", len(routers))
	}
	if len(routers[0].Children) != 1 {
		t.Errorf("child count = %d, want 1", len(routers[0].Children))
	}
}

// seedMenu inserts a minimal directory/menu pair.
func seedMenu(t *testing.T, th *testHandler) {
	t.Helper()

	if _, err := th.conn.Exec(
		`INSERT INTO sys_menu (menu_id, parent_id, menu_name, path, component, menu_type, order_num)
		 VALUES (1, 0, 'System', 'system', '', 'M', 1),
		        (2, 1, 'Users', 'user', 'system/user/index', 'C', 1)`,
	); err != nil {
		t.Fatalf("seed menus: %v", err)
	}
}
