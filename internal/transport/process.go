/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package transport

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_radio/internal/events"
)

// ProcessTransport plays artifacts through a local player binary, one process
// per artifact. Useful for single-host deployments and development.
type ProcessTransport struct {
	playerBin string
	bus       *events.Bus
	logger    zerolog.Logger

	mu    sync.Mutex
	conns map[string]*processConn
}

// NewProcessTransport creates a transport using playerBin (ffplay compatible
// flags are assumed).
func NewProcessTransport(playerBin string, bus *events.Bus, logger zerolog.Logger) *ProcessTransport {
	return &ProcessTransport{
		playerBin: playerBin,
		bus:       bus,
		logger:    logger.With().Str("component", "transport").Logger(),
		conns:     make(map[string]*processConn),
	}
}

// Connect returns the connection for a channel, creating it on first use.
func (t *ProcessTransport) Connect(ctx context.Context, channelID string) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if conn, ok := t.conns[channelID]; ok && !conn.closed {
		return conn, nil
	}

	conn := &processConn{
		channelID: channelID,
		playerBin: t.playerBin,
		bus:       t.bus,
		logger:    t.logger.With().Str("channel", channelID).Logger(),
		release: func() {
			t.mu.Lock()
			delete(t.conns, channelID)
			t.mu.Unlock()
		},
	}
	t.conns[channelID] = conn
	return conn, nil
}

type processConn struct {
	channelID string
	playerBin string
	bus       *events.Bus
	logger    zerolog.Logger
	release   func()

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	stopped bool // current play was interrupted or the conn closed
	closed  bool
}

// Play launches the player process and watches for exit.
func (c *processConn) Play(ctx context.Context, artifactPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}

	if c.cmd != nil && c.done != nil {
		select {
		case <-c.done:
		default:
			return fmt.Errorf("playback already running")
		}
	}

	cmd := exec.CommandContext(ctx, c.playerBin,
		"-nodisp", "-autoexit", "-loglevel", "quiet", artifactPath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}

	c.cmd = cmd
	c.stopped = false
	c.done = make(chan struct{})

	go func(done chan struct{}, proc *exec.Cmd) {
		err := proc.Wait()
		close(done)

		c.mu.Lock()
		interrupted := c.stopped
		closed := c.closed
		c.mu.Unlock()

		if err != nil && !interrupted {
			c.logger.Debug().Err(err).Str("artifact", artifactPath).Msg("player exited with error")
		}
		if closed {
			return
		}
		c.bus.Publish(events.EventPlaybackIdle, events.Payload{
			"channel_id":  c.channelID,
			"artifact":    artifactPath,
			"interrupted": interrupted,
		})
	}(c.done, cmd)

	c.logger.Debug().Str("artifact", artifactPath).Msg("playback started")
	return nil
}

// Stop kills the current player process. The exit watcher still emits the
// idle event so the controller picks up the next item.
func (c *processConn) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd == nil || c.done == nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	default:
	}

	c.stopped = true
	if err := c.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill player: %w", err)
	}
	return nil
}

// Disconnect closes the connection. Safe to call twice; never propagates
// failure.
func (c *processConn) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopped = true
	cmd := c.cmd
	done := c.done
	c.mu.Unlock()

	if cmd != nil && done != nil {
		select {
		case <-done:
		default:
			if err := cmd.Process.Kill(); err != nil {
				c.logger.Debug().Err(err).Msg("kill on disconnect failed")
			}
		}
	}

	c.release()
	c.logger.Debug().Msg("disconnected")
}
