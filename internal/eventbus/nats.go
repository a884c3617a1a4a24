/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus mirrors in-process session events onto NATS subjects so
// external display surfaces can follow now-playing state. Publishing is best
// effort; the engine never depends on delivery.
package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_radio/internal/events"
)

const subjectPrefix = "munin.events."

// natsMessage is the wire envelope for mirrored events.
type natsMessage struct {
	EventType events.EventType `json:"event_type"`
	Payload   events.Payload   `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
	NodeID    string           `json:"node_id"`
	MessageID string           `json:"message_id"`
}

// NATSMirror republishes selected bus events to NATS.
type NATSMirror struct {
	conn   *nats.Conn
	logger zerolog.Logger
	nodeID string

	cancel context.CancelFunc
}

// NewNATSMirror connects to NATS. An empty URL or failed connection yields a
// disabled mirror; the caller keeps working without fan-out.
func NewNATSMirror(url string, logger zerolog.Logger) *NATSMirror {
	m := &NATSMirror{
		logger: logger.With().Str("component", "eventbus").Logger(),
		nodeID: uuid.NewString(),
	}

	if url == "" {
		m.logger.Debug().Msg("NATS fan-out not configured")
		return m
	}

	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		m.logger.Warn().Err(err).Str("url", url).Msg("NATS unavailable, status fan-out disabled")
		return m
	}

	m.conn = conn
	m.logger.Info().Str("url", url).Msg("NATS status fan-out connected")
	return m
}

// Mirror forwards the given event types from bus to NATS until Close.
func (m *NATSMirror) Mirror(bus *events.Bus, types ...events.EventType) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	for _, eventType := range types {
		sub := bus.Subscribe(eventType)
		go m.forward(ctx, eventType, sub)
	}
}

func (m *NATSMirror) forward(ctx context.Context, eventType events.EventType, sub events.Subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			m.publish(eventType, payload)
		}
	}
}

func (m *NATSMirror) publish(eventType events.EventType, payload events.Payload) {
	if m.conn == nil {
		return
	}

	msg := natsMessage{
		EventType: eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		NodeID:    m.nodeID,
		MessageID: uuid.NewString(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Debug().Err(err).Msg("marshal event failed")
		return
	}

	// Best effort: a failed publish is logged at debug and dropped.
	if err := m.conn.Publish(subjectPrefix+string(eventType), data); err != nil {
		m.logger.Debug().Err(err).Str("event_type", string(eventType)).Msg("NATS publish failed")
	}
}

// Close stops forwarding and drains the connection.
func (m *NATSMirror) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.conn != nil {
		if err := m.conn.Drain(); err != nil {
			m.logger.Debug().Err(err).Msg("NATS drain failed")
		}
	}
}
