/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package queue holds the ordered pending items of one radio session.
package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tags the item variant.
type Kind int

const (
	KindMedia Kind = iota
	KindAnnouncement
)

// MediaRef is the media variant payload.
type MediaRef struct {
	CatalogID string // empty for transient files
	Title     string
	Artist    string
	Path      string // source file
	Filters   string // raw requested filter string

	Processed     bool
	ProcessedPath string
	Duration      time.Duration

	// Ephemeral artifacts (rewind clips, downloads) are deleted after playback.
	Ephemeral bool
}

// AnnouncementRef is the announcement variant payload.
type AnnouncementRef struct {
	Text      string
	AudioPath string // empty until rendered
	Duration  time.Duration
	TargetID  string // item this announcement introduces
}

// Item is a tagged union of media and announcement entries.
type Item struct {
	ID           string
	Kind         Kind
	Media        *MediaRef
	Announcement *AnnouncementRef
}

// NewMedia builds a media item.
func NewMedia(ref MediaRef) *Item {
	return &Item{ID: uuid.NewString(), Kind: KindMedia, Media: &ref}
}

// NewAnnouncement builds an announcement item.
func NewAnnouncement(ref AnnouncementRef) *Item {
	return &Item{ID: uuid.NewString(), Kind: KindAnnouncement, Announcement: &ref}
}

// IsMedia reports whether the item is the media variant.
func (i *Item) IsMedia() bool { return i != nil && i.Kind == KindMedia }

// Title returns a human readable name for logs and status displays.
func (i *Item) Title() string {
	switch {
	case i == nil:
		return ""
	case i.Kind == KindMedia:
		return i.Media.Title
	default:
		return "announcement"
	}
}

// Queue is the FIFO of pending items. Engine generated announcements may be
// inserted ahead of the media item they describe.
type Queue struct {
	mu    sync.Mutex
	items []*Item
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Append adds an item at the tail.
func (q *Queue) Append(item *Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// PushFront inserts an item at the head.
func (q *Queue) PushFront(item *Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([]*Item{item}, q.items...)
}

// Peek returns the head without removing it.
func (q *Queue) Peek() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Pop removes and returns the head.
func (q *Queue) Pop() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items = q.items[1:]
	return head
}

// Remove deletes the item with the given ID. Returns true if found.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// InsertAnnouncementBefore places ann immediately ahead of the item with
// targetID. At most one announcement may target a given transition; a second
// insertion for the same target is rejected. Returns true on success.
func (q *Queue) InsertAnnouncementBefore(targetID string, ann *Item) bool {
	if ann == nil || ann.Kind != KindAnnouncement {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.Kind == KindAnnouncement && item.Announcement.TargetID == targetID {
			return false
		}
	}

	for i, item := range q.items {
		if item.ID == targetID {
			ann.Announcement.TargetID = targetID
			q.items = append(q.items[:i], append([]*Item{ann}, q.items[i:]...)...)
			return true
		}
	}
	return false
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns all pending items.
func (q *Queue) Drain() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Snapshot returns a copy of the pending items for status reporting.
func (q *Queue) Snapshot() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Item(nil), q.items...)
}
