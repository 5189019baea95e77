// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package gate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/portcullisproject/portcullis/internal/config"
	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/models"
)

// RemoteChecker delegates permission checks to a separate authorization
// service over HTTP, protected by a circuit breaker. Multi-service
// deployments point every edge service here while one instance owns the
// session store.
//
// Failure semantics are strictly closed: transport errors, non-200 HTTP
// statuses, malformed envelopes and an open breaker all deny.
type RemoteChecker struct {
	url     string
	secret  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*models.Envelope]
}

// NewRemoteChecker creates a remote checker for the configured validate
// endpoint. internalSecret, when non-empty, is attached to outbound
// requests so the remote gate admits them over the trusted channel.
func NewRemoteChecker(cfg *config.RemoteConfig, internalSecret string) *RemoteChecker {
	settings := gobreaker.Settings{
		Name:        "remote-permission-check",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Permission check breaker state changed")
		},
	}

	return &RemoteChecker{
		url:     cfg.URL,
		secret:  internalSecret,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*models.Envelope](settings),
	}
}

// Check posts the token and expression to the remote validate endpoint.
func (c *RemoteChecker) Check(ctx context.Context, accessToken, expression string) error {
	if accessToken == "" {
		return ErrNoToken
	}

	envelope, err := c.breaker.Execute(func() (*models.Envelope, error) {
		return c.post(ctx, accessToken, expression)
	})
	if err != nil {
		// Breaker open or transport failure: deny, never fail open
		logging.Warn().Err(err).Msg("Remote permission check unavailable")
		return ErrCheckUnavailable
	}

	switch envelope.Code {
	case models.CodeSuccess:
		return nil
	case models.CodeForbidden:
		return ErrPermissionDenied
	default:
		return fmt.Errorf("%w: remote replied with code %d", ErrCheckUnavailable, envelope.Code)
	}
}

func (c *RemoteChecker) post(ctx context.Context, accessToken, expression string) (*models.Envelope, error) {
	body, err := json.Marshal(models.ValidateRequest{
		Token:      accessToken,
		Expression: expression,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal validate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(InternalSecretHeader, c.secret)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote validate call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	observeRemoteCheck(time.Since(start))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusForbidden {
		return nil, fmt.Errorf("remote validate returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("read validate response: %w", err)
	}

	envelope := &models.Envelope{}
	if err := json.Unmarshal(data, envelope); err != nil {
		return nil, fmt.Errorf("decode validate response: %w", err)
	}
	return envelope, nil
}
