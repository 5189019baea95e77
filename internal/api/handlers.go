// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/portcullisproject/portcullis/internal/audit"
	"github.com/portcullisproject/portcullis/internal/config"
	"github.com/portcullisproject/portcullis/internal/guest"
	"github.com/portcullisproject/portcullis/internal/metrics"
	"github.com/portcullisproject/portcullis/internal/models"
	"github.com/portcullisproject/portcullis/internal/session"
	"github.com/portcullisproject/portcullis/internal/store"
	"github.com/portcullisproject/portcullis/internal/token"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	config    *config.Config
	db        *store.Store
	access    *token.AccessManager
	refresh   *token.RefreshManager
	guests    *guest.Provisioner
	audit     *audit.Bus
	validate  *validator.Validate
	startTime time.Time

	// loginLimiters throttles credential logins per client IP, on top of
	// the router-level httprate window. Entries are pruned lazily.
	loginLimiters   map[string]*loginLimiterEntry
	loginLimitersMu sync.Mutex
}

type loginLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewHandler creates the API handler set.
func NewHandler(
	cfg *config.Config,
	db *store.Store,
	access *token.AccessManager,
	refresh *token.RefreshManager,
	guests *guest.Provisioner,
	auditBus *audit.Bus,
) *Handler {
	return &Handler{
		config:        cfg,
		db:            db,
		access:        access,
		refresh:       refresh,
		guests:        guests,
		audit:         auditBus,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		startTime:     time.Now(),
		loginLimiters: make(map[string]*loginLimiterEntry),
	}
}

// clientIP extracts the client address. chi middleware.RealIP has already
// rewritten RemoteAddr from X-Forwarded-For where applicable.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// allowLogin reports whether this IP may attempt another credential login.
func (h *Handler) allowLogin(ip string) bool {
	limit := h.config.Security.LoginRateLimit
	if limit <= 0 {
		return true
	}

	h.loginLimitersMu.Lock()
	defer h.loginLimitersMu.Unlock()

	now := time.Now()
	entry, ok := h.loginLimiters[ip]
	if !ok {
		entry = &loginLimiterEntry{
			limiter: rate.NewLimiter(rate.Limit(limit), 3),
		}
		h.loginLimiters[ip] = entry
	}
	entry.lastSeen = now

	// Prune stale entries occasionally so the map stays bounded.
	if len(h.loginLimiters) > 1024 {
		for key, e := range h.loginLimiters {
			if now.Sub(e.lastSeen) > 10*time.Minute {
				delete(h.loginLimiters, key)
			}
		}
	}

	return entry.limiter.Allow()
}

// issueTokens builds a session for the user, mints an access token, signs
// a refresh token and rotates the persisted refresh record so the user
// ends up with exactly one active record.
func (h *Handler) issueTokens(ctx context.Context, user *models.User, ip, flow string) (*models.LoginResult, error) {
	roles, err := h.db.RoleKeysForUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	perms, err := h.db.PermissionsForUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}

	sess := &session.Session{
		UserID:      user.UserID,
		Username:    user.Username,
		DeptID:      user.DeptID,
		Roles:       roles,
		Permissions: perms,
		IPAddress:   ip,
	}
	accessToken, err := h.access.Issue(ctx, sess)
	if err != nil {
		return nil, err
	}

	refreshToken, expiresAt, err := h.refresh.Generate(user.UserID, user.Username)
	if err != nil {
		return nil, err
	}
	record := &models.RefreshTokenRecord{
		UserID:     user.UserID,
		Username:   user.Username,
		Token:      refreshToken,
		ExpireTime: expiresAt,
		IPAddress:  ip,
		Status:     models.RefreshTokenActive,
	}
	if err := h.db.RotateRefreshToken(ctx, record); err != nil {
		// The session is already live; revoke it rather than hand out an
		// access token whose refresh chain was never persisted.
		_ = h.access.Revoke(ctx, accessToken)
		return nil, err
	}

	metrics.RecordTokenIssued("access", flow)
	metrics.RecordTokenIssued("refresh", flow)

	return &models.LoginResult{
		TokenPair: models.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    int64(h.access.TTL().Seconds()),
		},
		User: &models.Profile{
			UserID:      user.UserID,
			Username:    user.Username,
			Nickname:    user.Nickname,
			Roles:       roles,
			Permissions: perms,
		},
	}, nil
}

// publishAudit emits an authentication audit event.
func (h *Handler) publishAudit(action, username, ip, status, message string) {
	if h.audit == nil {
		return
	}
	h.audit.Publish(audit.Event{
		Action:    action,
		Username:  username,
		IPAddress: ip,
		Device:    "web",
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	})
}
