/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package transport is the boundary to the audio playback layer. The session
// engine hands finished artifacts to a Conn and learns about completion
// through playback idle events on the bus.
package transport

import "context"

// Conn is one live playback connection to a channel.
type Conn interface {
	// Play starts playback of the artifact and returns immediately. When
	// playback finishes the transport publishes a playback idle event for the
	// channel.
	Play(ctx context.Context, artifactPath string) error

	// Stop interrupts the current artifact, forcing an idle event.
	Stop() error

	// Disconnect tears the connection down. Failures never propagate.
	Disconnect()
}

// Transport connects to channels.
type Transport interface {
	Connect(ctx context.Context, channelID string) (Conn, error)
}
