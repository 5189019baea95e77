// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/portcullisproject/portcullis/internal/audit"
	"github.com/portcullisproject/portcullis/internal/gate"
	"github.com/portcullisproject/portcullis/internal/guest"
	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/metrics"
	"github.com/portcullisproject/portcullis/internal/models"
	"github.com/portcullisproject/portcullis/internal/store"
	"github.com/portcullisproject/portcullis/internal/token"
)

// Login authenticates username/password credentials and returns an access
// and refresh token pair. Wrong username and wrong password produce the
// same client-facing message.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondFail(w, models.CodeError, err.Error())
		return
	}

	ip := clientIP(r)
	if !h.allowLogin(ip) {
		h.publishAudit(audit.ActionLogin, req.Username, ip, audit.StatusFailure, "too many login attempts")
		respondFail(w, models.CodeError, "too many login attempts, try again later")
		return
	}

	user, err := h.db.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			h.publishAudit(audit.ActionLogin, req.Username, ip, audit.StatusFailure, "user does not exist")
			respondFail(w, models.CodeError, "incorrect username or password")
			return
		}
		logging.Error().Err(err).Str("username", req.Username).Msg("Login lookup failed")
		respondFail(w, models.CodeError, "login failed")
		return
	}

	if user.IsDeleted() {
		h.publishAudit(audit.ActionLogin, req.Username, ip, audit.StatusFailure, "account deleted")
		respondFail(w, models.CodeError, "account has been deleted")
		return
	}
	if !user.IsEnabled() {
		h.publishAudit(audit.ActionLogin, req.Username, ip, audit.StatusFailure, "account disabled")
		respondFail(w, models.CodeError, "account is disabled")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		h.publishAudit(audit.ActionLogin, req.Username, ip, audit.StatusFailure, "wrong password")
		respondFail(w, models.CodeError, "incorrect username or password")
		return
	}

	result, err := h.issueTokens(r.Context(), user, ip, "login")
	if err != nil {
		logging.Error().Err(err).Str("username", user.Username).Msg("Token issuance failed")
		respondFail(w, models.CodeError, "login failed")
		return
	}

	if err := h.db.UpdateLoginInfo(r.Context(), user.UserID, ip, time.Now()); err != nil {
		logging.Warn().Err(err).Int64("user_id", user.UserID).Msg("Failed to record login info")
	}

	h.publishAudit(audit.ActionLogin, user.Username, ip, audit.StatusSuccess, "login success")
	respondOK(w, result)
}

// GuestLogin provisions (or reuses) a guest account derived from a
// client-generated identifier and returns a token pair for it. The
// endpoint is disabled unless explicitly enabled in configuration.
func (h *Handler) GuestLogin(w http.ResponseWriter, r *http.Request) {
	if !h.config.Security.GuestLoginEnabled {
		respondFail(w, models.CodeError, "guest login is not enabled")
		return
	}

	var req models.GuestLoginRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondFail(w, models.CodeError, err.Error())
		return
	}

	ip := clientIP(r)
	username := guest.Username(req.GuestID)

	user, err := h.guests.Provision(r.Context(), req.GuestID, ip)
	if err != nil {
		msg := guestErrorMessage(err)
		h.publishAudit(audit.ActionGuestLogin, username, ip, audit.StatusFailure, msg)
		if msg == "guest login failed" {
			logging.Error().Err(err).Str("username", username).Msg("Guest provisioning failed")
		}
		respondFail(w, models.CodeError, msg)
		return
	}

	result, err := h.issueTokens(r.Context(), user, ip, "guest")
	if err != nil {
		logging.Error().Err(err).Str("username", user.Username).Msg("Token issuance failed")
		respondFail(w, models.CodeError, "guest login failed")
		return
	}

	if err := h.db.UpdateLoginInfo(r.Context(), user.UserID, ip, time.Now()); err != nil {
		logging.Warn().Err(err).Int64("user_id", user.UserID).Msg("Failed to record login info")
	}

	h.publishAudit(audit.ActionGuestLogin, user.Username, ip, audit.StatusSuccess, "guest login success")
	respondOK(w, result)
}

func guestErrorMessage(err error) string {
	switch {
	case errors.Is(err, guest.ErrAccountDeleted):
		return "guest account has been deleted"
	case errors.Is(err, guest.ErrAccountDisabled):
		return "guest account is disabled"
	case errors.Is(err, guest.ErrRoleMissing):
		return "guest role is not configured"
	case errors.Is(err, guest.ErrRoleDeleted):
		return "guest role has been deleted"
	case errors.Is(err, guest.ErrRoleDisabled):
		return "guest role is disabled"
	default:
		return "guest login failed"
	}
}

// Refresh exchanges a valid refresh token for a fresh token pair. The old
// refresh record is replaced, so a refresh token is single-use.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondFail(w, models.CodeError, err.Error())
		return
	}

	ip := clientIP(r)

	claims := h.refresh.Inspect(req.RefreshToken)
	switch claims.Status {
	case token.RefreshValid:
	case token.RefreshExpired:
		metrics.RecordRefreshRotation("expired")
		respondFail(w, models.CodeUnauthorized, "refresh token has expired")
		return
	case token.RefreshWrongType:
		metrics.RecordRefreshRotation("rejected")
		respondFail(w, models.CodeUnauthorized, "token is not a refresh token")
		return
	default:
		metrics.RecordRefreshRotation("malformed")
		respondFail(w, models.CodeUnauthorized, "refresh token is invalid")
		return
	}

	// Signature and expiry are fine; now the token must also match the
	// persisted record, which is how revocation and single-use rotation
	// are enforced.
	if err := h.db.ValidateRefreshToken(r.Context(), req.RefreshToken); err != nil {
		switch {
		case errors.Is(err, store.ErrRefreshTokenExpired):
			metrics.RecordRefreshRotation("expired")
			respondFail(w, models.CodeUnauthorized, "refresh token has expired")
		case errors.Is(err, store.ErrRefreshTokenRevoked):
			metrics.RecordRefreshRotation("revoked")
			respondFail(w, models.CodeUnauthorized, "refresh token has been revoked")
		case errors.Is(err, store.ErrRefreshTokenNotFound):
			metrics.RecordRefreshRotation("revoked")
			respondFail(w, models.CodeUnauthorized, "refresh token is no longer valid")
		default:
			logging.Error().Err(err).Msg("Refresh token validation failed")
			respondFail(w, models.CodeError, "refresh failed")
		}
		return
	}

	user, err := h.db.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		metrics.RecordRefreshRotation("rejected")
		respondFail(w, models.CodeUnauthorized, "refresh token is no longer valid")
		return
	}
	if user.IsDeleted() || !user.IsEnabled() {
		metrics.RecordRefreshRotation("rejected")
		respondFail(w, models.CodeUnauthorized, "account is disabled")
		return
	}
	if user.Username != claims.Username {
		// The account was renamed since the token was minted.
		metrics.RecordRefreshRotation("rejected")
		respondFail(w, models.CodeUnauthorized, "refresh token does not match this account")
		return
	}

	result, err := h.issueTokens(r.Context(), user, ip, "refresh")
	if err != nil {
		logging.Error().Err(err).Int64("user_id", user.UserID).Msg("Token issuance failed")
		respondFail(w, models.CodeError, "refresh failed")
		return
	}

	metrics.RecordRefreshRotation("success")
	h.publishAudit(audit.ActionRefresh, user.Username, ip, audit.StatusSuccess, "token refreshed")
	respondOK(w, result)
}

// Logout revokes the caller's session and disables their refresh tokens.
// The body may carry a refresh token to revoke explicitly. It is
// best-effort and always reports success so clients can clear local state
// unconditionally.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes)).Decode(&req)
	if req.RefreshToken != "" {
		if err := h.db.DeleteRefreshToken(r.Context(), req.RefreshToken); err != nil {
			logging.Warn().Err(err).Msg("Failed to delete refresh token on logout")
		}
	}

	accessToken := gate.ExtractToken(r)
	if accessToken == "" {
		respondMsg(w, "logout success")
		return
	}

	sess, err := h.access.Resolve(r.Context(), accessToken)
	if err == nil {
		if _, err := h.db.DisableRefreshTokensForUser(r.Context(), sess.UserID); err != nil {
			logging.Warn().Err(err).Int64("user_id", sess.UserID).Msg("Failed to disable refresh tokens on logout")
		}
		h.publishAudit(audit.ActionLogout, sess.Username, ip, audit.StatusSuccess, "logout success")
	}

	if err := h.access.Revoke(r.Context(), accessToken); err != nil {
		logging.Warn().Err(err).Msg("Failed to revoke session on logout")
	} else {
		metrics.RecordSessionRevoked("logout")
	}

	respondMsg(w, "logout success")
}
