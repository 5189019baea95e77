// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

package audit

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/portcullisproject/portcullis/internal/logging"
	"github.com/portcullisproject/portcullis/internal/models"
)

// LogWriter persists audit rows. Satisfied by the DuckDB store.
type LogWriter interface {
	InsertLoginLog(ctx context.Context, entry *models.LoginLog) error
}

// Subscriber drains the audit topic into the login log table.
// It runs as a supervised service.
type Subscriber struct {
	bus    *Bus
	writer LogWriter
}

// NewSubscriber creates an audit subscriber.
func NewSubscriber(bus *Bus, writer LogWriter) *Subscriber {
	return &Subscriber{bus: bus, writer: writer}
}

// Serve consumes events until the context is canceled. Individual write
// failures are logged and acked so a bad row cannot wedge the stream.
func (s *Subscriber) Serve(ctx context.Context) error {
	messages, err := s.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload)
			msg.Ack()
		}
	}
}

// String identifies the service in supervisor logs.
func (s *Subscriber) String() string {
	return "audit-subscriber"
}

func (s *Subscriber) handle(ctx context.Context, payload []byte) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		logging.Warn().Err(err).Msg("Discarding malformed audit event")
		return
	}

	entry := &models.LoginLog{
		Username:  event.Username,
		IPAddress: event.IPAddress,
		Device:    event.Device,
		Status:    event.Status,
		Message:   event.Message,
		LoginTime: event.Timestamp,
	}
	if err := s.writer.InsertLoginLog(ctx, entry); err != nil {
		logging.Warn().Err(err).Str("username", event.Username).Msg("Failed to persist audit event")
	}
}
