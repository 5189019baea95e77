// Portcullis - Admin Console Authorization and Token Lifecycle
// Copyright 2026 Portcullis Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullisproject/portcullis

// Package audit records login, logout and guest-provisioning events.
// Events are published fire-and-forget onto an in-process Watermill channel
// and persisted by a background subscriber, keeping the request path free of
// audit I/O.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/portcullisproject/portcullis/internal/logging"
)

// TopicLogin is the topic carrying authentication audit events.
const TopicLogin = "auth.login"

// Event action names.
const (
	ActionLogin      = "login"
	ActionLogout     = "logout"
	ActionGuestLogin = "guest_login"
	ActionRefresh    = "refresh"
)

// Event statuses; the values land in the sys_login_log status column.
const (
	StatusSuccess = "0"
	StatusFailure = "1"
)

// Event is an authentication audit event.
type Event struct {
	Action    string    `json:"action"`
	Username  string    `json:"username"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Device    string    `json:"device,omitempty"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus publishes audit events over an in-process Watermill Pub/Sub.
type Bus struct {
	pubsub  *gochannel.GoChannel
	enabled bool
}

// NewBus creates the audit bus. When disabled, Publish becomes a no-op and
// Subscribe still works for tests.
func NewBus(enabled bool, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(bufferSize)},
		watermill.NewStdLogger(false, false),
	)
	return &Bus{pubsub: pubsub, enabled: enabled}
}

// Publish emits an event. Failures are logged and swallowed: audit must
// never fail a login.
func (b *Bus) Publish(event Event) {
	if !b.enabled {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logging.Warn().Err(err).Str("action", event.Action).Msg("Failed to marshal audit event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(TopicLogin, msg); err != nil {
		logging.Warn().Err(err).Str("action", event.Action).Msg("Failed to publish audit event")
	}
}

// Subscribe returns the raw message stream for the audit topic.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	ch, err := b.pubsub.Subscribe(ctx, TopicLogin)
	if err != nil {
		return nil, fmt.Errorf("subscribe audit topic: %w", err)
	}
	return ch, nil
}

// Close shuts the Pub/Sub down, terminating subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
