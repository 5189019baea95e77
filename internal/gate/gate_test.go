// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/portcullisproject/portcullis/internal/models"
	"github.com/portcullisproject/portcullis/internal/routecache"
	"github.com/portcullisproject/portcullis/internal/session"
	"github.com/portcullisproject/portcullis/internal/token"
)

func testRoutes() []routecache.Route {
	return []routecache.Route{
		{Method: http.MethodPost, Pattern: "/auth/login", Policy: routecache.Anonymous()},
		{Method: http.MethodPost, Pattern: "/auth/logout", Policy: routecache.AuthOnly()},
		{Method: http.MethodGet, Pattern: "/system/user/list", Policy: routecache.Expression("@ss.hasPermi('system:user:list')")},
	}
}

// newTestGate builds a gate over an in-memory session store and returns it
// together with a live access token for a user holding system:user:list.
func newTestGate(t *testing.T, internalSecret string) (*Gate, string) {
	t.Helper()

	access := token.NewAccessManager(session.NewMemoryStore(), 30)
	sess := &session.Session{
		UserID:      7,
		Username:    "operator",
		Roles:       []string{"common"},
		Permissions: []string{"system:user:list"},
	}
	accessToken, err := access.Issue(context.Background(), sess)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	resolver := routecache.NewResolver(testRoutes())
	return New(resolver, NewLocalChecker(access), internalSecret), accessToken
}

// serveThrough runs a request through the gate middleware in front of a
// handler that records whether it was reached.
func serveThrough(g *Gate, r *http.Request) (rec *httptest.ResponseRecorder, reached bool) {
	rec = httptest.NewRecorder()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})
	g.Middleware(next).ServeHTTP(rec, r)
	return rec, reached
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) models.Envelope {
	t.Helper()
	var env models.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("Unmarshal envelope: %v", err)
	}
	return env
}

func TestGate_UndeclaredRoutePassesThrough(t *testing.T) {
	g, _ := newTestGate(t, "")

	r := httptest.NewRequest(http.MethodGet, "/totally/unknown", nil)
	rec, reached := serveThrough(g, r)

	if !reached {
		t.Fatal("handler not reached for undeclared route")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestGate_UndeclaredPolicyDenies(t *testing.T) {
	access := token.NewAccessManager(session.NewMemoryStore(), 30)
	routes := []routecache.Route{
		{Method: http.MethodGet, Pattern: "/misconfigured"},
	}
	g := New(routecache.NewResolver(routes), NewLocalChecker(access), "")

	r := httptest.NewRequest(http.MethodGet, "/misconfigured", nil)
	rec, reached := serveThrough(g, r)

	if reached {
		t.Fatal("handler reached on a route without a declared policy")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	env := decodeEnvelope(t, rec)
	if env.Msg != "no access policy configured" {
		t.Errorf("envelope msg = %q, want %q", env.Msg, "no access policy configured")
	}
}

func TestGate_AnonymousRouteAdmits(t *testing.T) {
	g, _ := newTestGate(t, "")

	r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	if _, reached := serveThrough(g, r); !reached {
		t.Fatal("handler not reached for anonymous route")
	}
}

func TestGate_AuthOnlyWithoutToken(t *testing.T) {
	g, _ := newTestGate(t, "")

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec, reached := serveThrough(g, r)

	if reached {
		t.Fatal("handler reached without a token")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	env := decodeEnvelope(t, rec)
	if env.Code != models.CodeForbidden {
		t.Errorf("envelope code = %d, want %d", env.Code, models.CodeForbidden)
	}
	if env.Msg != "authentication token not provided" {
		t.Errorf("envelope msg = %q, want %q", env.Msg, "authentication token not provided")
	}
	if env.Data != nil {
		t.Errorf("envelope data = %v, want nil", env.Data)
	}
}

func TestGate_AuthOnlyWithBearerToken(t *testing.T) {
	g, accessToken := newTestGate(t, "")

	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.Header.Set("Authorization", "Bearer "+accessToken)
	if _, reached := serveThrough(g, r); !reached {
		t.Fatal("handler not reached with valid bearer token")
	}
}

func TestGate_TokenQueryParameter(t *testing.T) {
	g, accessToken := newTestGate(t, "")

	r := httptest.NewRequest(http.MethodPost, "/auth/logout?token="+accessToken, nil)
	if _, reached := serveThrough(g, r); !reached {
		t.Fatal("handler not reached with query parameter token")
	}
}

func TestGate_ExpressionPolicy(t *testing.T) {
	g, accessToken := newTestGate(t, "")

	// Granted permission admits.
	r := httptest.NewRequest(http.MethodGet, "/system/user/list", nil)
	r.Header.Set("Authorization", "Bearer "+accessToken)
	if _, reached := serveThrough(g, r); !reached {
		t.Fatal("handler not reached with granted permission")
	}

	// Unknown token denies, with the permission message rather than the
	// missing-credential one.
	r = httptest.NewRequest(http.MethodGet, "/system/user/list", nil)
	r.Header.Set("Authorization", "Bearer deadbeef")
	rec, reached := serveThrough(g, r)
	if reached {
		t.Fatal("handler reached with invalid token")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if env := decodeEnvelope(t, rec); env.Msg != "no permission to access" {
		t.Errorf("envelope msg = %q, want %q", env.Msg, "no permission to access")
	}
}

func TestGate_InternalSecret(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantAdmit  bool
		wantMsg    string
	}{
		{"matching secret admits", "s3cret", "s3cret", true, ""},
		{"wrong secret denies", "s3cret", "nope", false, "invalid internal credential"},
		{"unconfigured channel ignores header", "", "s3cret", false, "authentication token not provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGate(t, tt.configured)

			r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
			r.Header.Set(InternalSecretHeader, tt.header)
			rec, reached := serveThrough(g, r)

			if reached != tt.wantAdmit {
				t.Fatalf("reached = %v, want %v", reached, tt.wantAdmit)
			}
			if !tt.wantAdmit {
				if rec.Code != http.StatusForbidden {
					t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
				}
				env := decodeEnvelope(t, rec)
				if env.Msg != tt.wantMsg {
					t.Errorf("envelope msg = %q, want %q", env.Msg, tt.wantMsg)
				}
			}
		})
	}
}

func TestGate_UnconfiguredChannelFallsThroughToToken(t *testing.T) {
	g, accessToken := newTestGate(t, "")

	// With no secret configured the header is ignored and the token wins.
	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.Header.Set(InternalSecretHeader, "whatever")
	r.Header.Set("Authorization", "Bearer "+accessToken)
	if _, reached := serveThrough(g, r); !reached {
		t.Fatal("handler not reached via token with internal channel disabled")
	}
}

func TestGate_WrongInternalSecretDoesNotFallThroughToToken(t *testing.T) {
	g, accessToken := newTestGate(t, "s3cret")

	// A valid token does not rescue a present-but-wrong internal header.
	r := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	r.Header.Set(InternalSecretHeader, "nope")
	r.Header.Set("Authorization", "Bearer "+accessToken)
	if _, reached := serveThrough(g, r); reached {
		t.Fatal("handler reached despite wrong internal secret")
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"bearer header", "Bearer abc123", "", "abc123"},
		{"lowercase scheme", "bearer abc123", "", "abc123"},
		{"query parameter", "", "qtok", "qtok"},
		{"header wins over query", "Bearer htok", "qtok", "htok"},
		{"wrong scheme falls back to query", "Basic abc123", "qtok", "qtok"},
		{"empty bearer falls back to query", "Bearer ", "qtok", "qtok"},
		{"nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/x"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			r := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := ExtractToken(r); got != tt.want {
				t.Errorf("ExtractToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
