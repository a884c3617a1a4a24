/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/friendsincode/munin_radio/internal/filters"
	"github.com/friendsincode/munin_radio/internal/queue"
	"github.com/friendsincode/munin_radio/internal/transform"
)

// Rewind bounds. Speed scales with the elapsed portion so short rewinds stay
// audible and long ones stay brief.
const (
	rewindMinElapsed = 500 * time.Millisecond
	rewindMaxElapsed = 30 * time.Second // bounds the clip render cost
	rewindMinSpeed   = 2.0
	rewindMaxSpeed   = 8.0
	rewindSpeedDiv   = 3750 * time.Millisecond // elapsed/div yields the speed factor
)

// Enqueue searches the catalog and appends the best match to the channel's
// queue. filterStr applies per-item effects on top of the session defaults.
func (c *Controller) Enqueue(ctx context.Context, channelID, term, filterStr string) (*queue.Item, error) {
	s := c.registry.Get(channelID)
	if s == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrNoSession)
	}

	matches, err := c.catalog.Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, term)
	}

	pick := matches[0]
	item := queue.NewMedia(queue.MediaRef{
		CatalogID: pick.ID,
		Title:     pick.Title,
		Artist:    pick.Artist,
		Path:      pick.Path,
		Filters:   filters.Signature(filters.Parse(c.presets.Resolve(filterStr))),
	})
	s.Queue.Append(item)

	c.logger.Info().Str("channel", channelID).Str("title", pick.Title).Msg("enqueued")

	// Wake the loop in case nothing is playing.
	s.signal(signalKick)
	return item, nil
}

// Skip interrupts the current item. The transport's idle event drives the
// advance to the next one.
func (c *Controller) Skip(channelID string) error {
	s := c.registry.Get(channelID)
	if s == nil {
		return fmt.Errorf("channel %s: %w", channelID, ErrNoSession)
	}

	s.mu.Lock()
	conn := s.conn
	playing := s.current != nil
	s.mu.Unlock()

	if !playing || conn == nil {
		s.signal(signalKick)
		return nil
	}
	if err := conn.Stop(); err != nil {
		return fmt.Errorf("stop playback: %w", err)
	}
	c.logger.Info().Str("channel", channelID).Msg("skipped")
	return nil
}

// Announce inserts a spoken announcement. With a targetID it lands directly
// ahead of that queue item; a second announcement for the same target is
// rejected. Without a target it plays next.
func (c *Controller) Announce(ctx context.Context, channelID, text, targetID string) (*queue.Item, error) {
	s := c.registry.Get(channelID)
	if s == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrNoSession)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyAnnouncement
	}

	line, err := c.lines.CustomLine(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("write line: %w", err)
	}

	ann := queue.NewAnnouncement(queue.AnnouncementRef{Text: line})
	if targetID != "" {
		if !s.Queue.InsertAnnouncementBefore(targetID, ann) {
			return nil, fmt.Errorf("target %s: %w", targetID, ErrTargetUnavailable)
		}
	} else {
		s.Queue.PushFront(ann)
	}

	s.signal(signalKick)
	return ann, nil
}

// ApplyFilters sets the session-wide filter chain. Unknown and out-of-range
// tokens are dropped rather than rejected; the returned signature is what
// actually applies. The prepared next slot is invalidated so the new chain
// takes effect on the upcoming item.
func (c *Controller) ApplyFilters(channelID, raw string) (string, error) {
	s := c.registry.Get(channelID)
	if s == nil {
		return "", fmt.Errorf("channel %s: %w", channelID, ErrNoSession)
	}

	signature := filters.Signature(filters.Parse(c.presets.Resolve(raw)))
	s.setFilters(signature)

	c.logger.Info().Str("channel", channelID).Str("filters", signature).Msg("filters applied")
	go c.prepareNext(s)
	return signature, nil
}

// ClearFilters removes the session-wide filter chain.
func (c *Controller) ClearFilters(channelID string) error {
	_, err := c.ApplyFilters(channelID, "")
	return err
}

// SetAnnouncements toggles spoken transitions for the session.
func (c *Controller) SetAnnouncements(channelID string, enabled bool) error {
	s := c.registry.Get(channelID)
	if s == nil {
		return fmt.Errorf("channel %s: %w", channelID, ErrNoSession)
	}
	s.SetAnnouncements(enabled)
	return nil
}

// Rewind replays the elapsed portion of the current track reversed and sped
// up, then restarts the track from the beginning. Very short elapsed times
// skip the clip and just restart.
func (c *Controller) Rewind(ctx context.Context, channelID string) error {
	s := c.registry.Get(channelID)
	if s == nil {
		return fmt.Errorf("channel %s: %w", channelID, ErrNoSession)
	}

	s.mu.Lock()
	current := s.current
	conn := s.conn
	elapsed := time.Duration(0)
	if current != nil && !s.playStart.IsZero() {
		elapsed = time.Since(s.playStart)
	}
	if elapsed > rewindMaxElapsed {
		elapsed = rewindMaxElapsed
	}
	s.mu.Unlock()

	if !current.IsMedia() || conn == nil {
		return ErrNotRewindable
	}
	if current.Media.Ephemeral {
		return fmt.Errorf("one-shot clip: %w", ErrNotRewindable)
	}

	// Replay of the same item from the start. The artifact is already
	// rendered, so this is cheap. The clip goes in front of it so playback
	// runs clip first, then the track from the top.
	replay := queue.NewMedia(*current.Media)
	s.Queue.PushFront(replay)

	if elapsed >= rewindMinElapsed {
		clip, err := c.renderRewindClip(ctx, s, current, elapsed)
		if err != nil {
			c.logger.Warn().Err(err).Str("channel", channelID).Msg("rewind clip render failed, restarting track")
		} else {
			s.Queue.PushFront(clip)
		}
	}

	// Drop the prepared slot so the rewind sequence plays immediately; its
	// artifact stays in the render cache for cheap re-preparation.
	s.takeNext()

	if err := conn.Stop(); err != nil {
		return fmt.Errorf("stop playback: %w", err)
	}
	c.logger.Info().Str("channel", channelID).Dur("elapsed", elapsed).Msg("rewinding")
	return nil
}

// renderRewindClip renders the elapsed portion of the current artifact,
// reversed and sped up proportionally to its length.
func (c *Controller) renderRewindClip(ctx context.Context, s *Session, current *queue.Item, elapsed time.Duration) (*queue.Item, error) {
	speed := float64(elapsed) / float64(rewindSpeedDiv)
	if speed < rewindMinSpeed {
		speed = rewindMinSpeed
	}
	if speed > rewindMaxSpeed {
		speed = rewindMaxSpeed
	}

	chain := "areverse," + atempoChain(speed)
	source := artifactPath(current)

	// Duration trims the input to the played head before the reverse runs;
	// the output length comes out at elapsed/speed.
	path, err := c.gateway.Render(ctx, source, chain, transform.RenderOptions{
		Duration: elapsed,
	})
	if err != nil {
		return nil, err
	}
	s.addScratch(path)

	return queue.NewMedia(queue.MediaRef{
		Title:         current.Media.Title + " (rewind)",
		Path:          path,
		Processed:     true,
		ProcessedPath: path,
		Duration:      time.Duration(float64(elapsed) / speed),
		Ephemeral:     true,
	}), nil
}

// atempoChain splits a speed factor into chained atempo filters, each within
// ffmpeg's 0.5..2.0 per-stage range.
func atempoChain(speed float64) string {
	var stages []string
	for speed > 2.0 {
		stages = append(stages, "atempo=2.0")
		speed /= 2.0
	}
	stages = append(stages, fmt.Sprintf("atempo=%.3f", speed))
	return strings.Join(stages, ",")
}
