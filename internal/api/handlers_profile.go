// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package api

import (
	"net/http"

	"github.com/portcullisproject/portcullis/internal/gate"
	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/models"
)

// Me returns the authenticated identity with its roles and permissions.
// The gate has already admitted the request; the session lookup here only
// materializes the subject for the payload.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess, err := h.access.Resolve(r.Context(), gate.ExtractToken(r))
	if err != nil {
		respondFail(w, models.CodeUnauthorized, "session not found")
		return
	}

	respondOK(w, &models.Profile{
		UserID:      sess.UserID,
		Username:    sess.Username,
		Roles:       sess.Roles,
		Permissions: sess.Permissions,
	})
}

// Routers returns the caller's navigation tree built from the menus their
// roles grant. Admins see everything.
func (h *Handler) Routers(w http.ResponseWriter, r *http.Request) {
	sess, err := h.access.Resolve(r.Context(), gate.ExtractToken(r))
	if err != nil {
		respondFail(w, models.CodeUnauthorized, "session not found")
		return
	}

	routers, err := h.db.RoutersForUser(r.Context(), sess.UserID)
	if err != nil {
		logging.Error().Err(err).Int64("user_id", sess.UserID).Msg("Failed to build router tree")
		respondFail(w, models.CodeError, "failed to load routers")
		return
	}

	respondOK(w, routers)
}
