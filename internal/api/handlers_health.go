// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package api

import (
	"net/http"
	"time"

	"github.com/portcullisproject/portcullis/internal/models"
)

// Health reports overall service health: process uptime plus database
// connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	respondOK(w, map[string]interface{}{
		"status":            status,
		"databaseConnected": dbConnected,
		"uptime":            time.Since(h.startTime).Seconds(),
	})
}

// HealthLive is the liveness probe. It returns 200 whenever the process is
// up, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady is the readiness probe. It returns 503 until the database is
// reachable so load balancers hold traffic during startup.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil || h.db.Ping(r.Context()) != nil {
		respondJSON(w, http.StatusServiceUnavailable, models.Fail(models.CodeError, "database not ready"))
		return
	}
	respondOK(w, map[string]interface{}{"ready": true})
}
