/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"time"

	"github.com/friendsincode/munin_radio/internal/queue"
)

// ItemStatus is the reporting view of a queue item.
type ItemStatus struct {
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Title    string        `json:"title"`
	Artist   string        `json:"artist,omitempty"`
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Status is a point-in-time snapshot of one session.
type Status struct {
	ChannelID     string        `json:"channel_id"`
	State         State         `json:"state"`
	Announcements bool          `json:"announcements"`
	Filters       string        `json:"filters,omitempty"`
	Current       *ItemStatus   `json:"current,omitempty"`
	Elapsed       time.Duration `json:"elapsed_ms,omitempty"`
	QueueLength   int           `json:"queue_length"`
	Queue         []ItemStatus  `json:"queue"`
}

// Status reports the session state for a channel, or nil when none exists.
func (c *Controller) Status(channelID string) *Status {
	s := c.registry.Get(channelID)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	st := &Status{
		ChannelID:     s.ChannelID,
		State:         s.state,
		Announcements: s.announce,
		Filters:       s.filters,
	}
	if s.current != nil {
		item := itemStatus(s.current)
		st.Current = &item
		if !s.playStart.IsZero() {
			st.Elapsed = time.Since(s.playStart) / time.Millisecond * time.Millisecond
		}
	}
	s.mu.Unlock()

	pending := s.Queue.Snapshot()
	st.QueueLength = len(pending)
	st.Queue = make([]ItemStatus, 0, len(pending))
	for _, item := range pending {
		st.Queue = append(st.Queue, itemStatus(item))
	}
	return st
}

// Channels lists the channel IDs with active sessions.
func (c *Controller) Channels() []string {
	c.registry.mu.Lock()
	defer c.registry.mu.Unlock()
	ids := make([]string, 0, len(c.registry.sessions))
	for id := range c.registry.sessions {
		ids = append(ids, id)
	}
	return ids
}

func itemStatus(item *queue.Item) ItemStatus {
	st := ItemStatus{ID: item.ID, Title: item.Title()}
	if item.IsMedia() {
		st.Kind = "media"
		st.Artist = item.Media.Artist
		st.Duration = item.Media.Duration
	} else {
		st.Kind = "announcement"
		st.Duration = item.Announcement.Duration
	}
	return st
}
