// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Package api provides the HTTP surface: Chi routing, request decoding and
// the handlers for login, token rotation, guest provisioning and the
// service-to-service validation endpoint.
package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/models"
)

// maxBodyBytes caps request bodies. All request payloads here are small
// credential or token objects.
const maxBodyBytes = 1 << 16

// respondJSON writes an envelope with the given HTTP status.
func respondJSON(w http.ResponseWriter, status int, envelope models.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		logging.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondOK writes a success envelope with HTTP 200.
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, models.OK(data))
}

// respondMsg writes a success envelope carrying only a message.
func respondMsg(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusOK, models.OKMsg(msg))
}

// respondFail writes an error envelope. The HTTP status mirrors the
// envelope code so both code paths agree.
func respondFail(w http.ResponseWriter, code int, msg string) {
	status := http.StatusOK
	switch code {
	case models.CodeUnauthorized:
		status = http.StatusUnauthorized
	case models.CodeForbidden:
		status = http.StatusForbidden
	case models.CodeError:
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, models.Fail(code, msg))
}

// decodeJSON decodes and validates a request body into dst.
// Returns a client-facing error message when decoding or validation fails.
func (h *Handler) decodeJSON(r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New("invalid field: " + verrs[0].Field())
		}
		return errors.New("invalid request body")
	}
	return nil
}
