/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"github.com/friendsincode/munin_radio/internal/events"
	"github.com/friendsincode/munin_radio/internal/queue"
	"github.com/friendsincode/munin_radio/internal/telemetry"
)

// prepareNext fills the session's next slot in the background: it renders
// the upcoming item's artifact, and optionally a transition clip, while the
// current one plays. At most one preparation runs per session; a second call
// while one is in flight is a no-op.
func (c *Controller) prepareNext(s *Session) {
	if !s.tryBeginPrepare() {
		return
	}
	defer func() {
		s.endPrepare()
		// The loop may have gone idle while the guard was held; the kick is
		// the only wakeup it has. Unconditional, even on the no-op paths.
		s.signal(signalKick)
	}()

	if s.peekNext() || !s.Active() {
		return
	}

	_, span := telemetry.StartSpan(s.ctx, "session", "prepare_next")
	defer span.End()

	item, fromQueueID := c.prepareCandidate(s)
	if item == nil {
		return
	}

	p := &prepared{item: item, fromQueueID: fromQueueID}

	// Synthesize the transition clip now so the handoff is gapless. The clip
	// is keyed to the playing item: if something else finishes first (skip,
	// rewind clip) the stale line is dropped at consumption.
	if item.IsMedia() && s.AnnouncementsEnabled() {
		if current := s.Current(); current.IsMedia() {
			p.announcement = c.transitionFor(s, current, item)
			p.announcedAfterID = current.ID
		}
	}

	if !s.storeNext(p) {
		// Session torn down while rendering; scratch cleanup already ran.
		return
	}
	c.bus.Publish(events.EventRenderComplete, events.Payload{
		"channel_id": s.ChannelID,
		"title":      item.Title(),
	})
}

// prepareCandidate picks what plays next and resolves its artifact. Returns
// the queue item ID to remove on consumption when the candidate came from
// the queue.
func (c *Controller) prepareCandidate(s *Session) (*queue.Item, string) {
	if head := s.Queue.Peek(); head != nil {
		if head.Kind == queue.KindAnnouncement {
			if err := c.ensureAnnouncementAudio(s, head); err != nil {
				telemetry.SynthesisFailuresTotal.Inc()
				c.publishPrepareFailed(s, err)
				return nil, ""
			}
			return head, head.ID
		}
		if err := c.ensureMediaArtifact(s, head); err != nil {
			c.publishPrepareFailed(s, err)
			return nil, ""
		}
		return head, head.ID
	}

	picks, err := c.catalog.RandomMedia(s.ctx, s.ChannelID, 1)
	if err != nil || len(picks) == 0 {
		if err != nil {
			c.publishPrepareFailed(s, err)
		}
		return nil, ""
	}

	pick := picks[0]
	item := queue.NewMedia(queue.MediaRef{
		CatalogID: pick.ID,
		Title:     pick.Title,
		Artist:    pick.Artist,
		Path:      pick.Path,
	})
	if err := c.ensureMediaArtifact(s, item); err != nil {
		c.publishPrepareFailed(s, err)
		return nil, ""
	}
	return item, ""
}

func (c *Controller) publishPrepareFailed(s *Session, err error) {
	c.logger.Warn().Err(err).Str("channel", s.ChannelID).Msg("lookahead preparation failed")
	c.bus.Publish(events.EventPrepareFailed, events.Payload{
		"channel_id": s.ChannelID,
		"error":      err.Error(),
	})
}
