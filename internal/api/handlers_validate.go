// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package api

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/portcullisproject/portcullis/internal/gate"
	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/models"
)

// ValidateHandler serves the service-to-service permission check endpoint.
// It lives apart from Handler because it needs the local checker directly
// and is only mounted when this instance owns the session store.
type ValidateHandler struct {
	handler *Handler
	checker *gate.LocalChecker
	secret  string
}

// NewValidateHandler creates the validation endpoint handler. secret is
// the shared internal credential; when empty the header check is skipped
// and any caller may validate tokens.
func NewValidateHandler(h *Handler, checker *gate.LocalChecker, secret string) *ValidateHandler {
	return &ValidateHandler{handler: h, checker: checker, secret: secret}
}

// Validate checks an access token, optionally against a permission
// expression, on behalf of another service. When an internal secret is
// configured, callers must present it; without one the endpoint is open,
// since the token itself is the thing being judged.
func (v *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if !v.authorized(r) {
		respondJSON(w, http.StatusForbidden, models.Forbidden("invalid internal credential"))
		return
	}

	var req models.ValidateRequest
	if err := v.handler.decodeJSON(r, &req); err != nil {
		respondFail(w, models.CodeError, err.Error())
		return
	}

	if err := v.checker.Check(r.Context(), req.Token, req.Expression); err != nil {
		respondJSON(w, http.StatusForbidden, models.Forbidden(validateDenialMessage(err)))
		return
	}

	// Admission also returns the subject so the caller can attach identity
	// without a second round trip.
	sess, err := v.checker.Subject(r.Context(), req.Token)
	if err != nil {
		logging.Warn().Err(err).Msg("Subject lookup failed after successful check")
		respondOK(w, nil)
		return
	}

	respondOK(w, &models.Profile{
		UserID:      sess.UserID,
		Username:    sess.Username,
		Roles:       sess.Roles,
		Permissions: sess.Permissions,
	})
}

func (v *ValidateHandler) authorized(r *http.Request) bool {
	if v.secret == "" {
		return true
	}
	provided := r.Header.Get(gate.InternalSecretHeader)
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(v.secret)) == 1
}

func validateDenialMessage(err error) string {
	switch {
	case errors.Is(err, gate.ErrNoToken), errors.Is(err, gate.ErrTokenInvalid):
		return "token is invalid or expired"
	case errors.Is(err, gate.ErrPermissionDenied):
		return "no permission to access"
	default:
		return "permission check failed"
	}
}
