/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package session implements the per-channel radio session engine: the state
// machine that selects, prepares and hands artifacts to the playback
// transport while the next item is prepared in the background.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/munin_radio/internal/queue"
	"github.com/friendsincode/munin_radio/internal/transport"
)

// State is the controller-visible lifecycle phase of a session.
type State string

const (
	StateIdle         State = "idle"
	StateIntroPending State = "intro_pending"
	StatePreparing    State = "preparing"
	StatePlaying      State = "playing"
	StateStopped      State = "stopped"
)

// signalKind wakes the session loop.
type signalKind int

const (
	signalIdle      signalKind = iota // transport finished an artifact
	signalKick                        // re-evaluate now (prep finished, retry timer)
	signalScheduled                   // scheduled item is due
)

// prepared is the lookahead result stored in the session's next slot.
type prepared struct {
	item *queue.Item // media with resolved artifact
	// announcement, when set, is a rendered transition clip that precedes item.
	announcement *queue.Item
	// announcedAfterID is the item the announcement's "that was" refers to.
	// The clip only plays when that item is the one that actually finished.
	announcedAfterID string
	// fromQueueID names the queue entry item was built from; the entry is
	// removed when the prepared item is consumed.
	fromQueueID string
}

// Session is one continuous radio playback context bound to a channel. All
// mutable state is owned by the session loop; the preparing semaphore is the
// sole guard on the next slot.
type Session struct {
	ChannelID string

	ctx    context.Context
	cancel context.CancelFunc

	Queue *queue.Queue

	signals chan signalKind

	// preparing is a one slot semaphore: the in-flight preparation guard.
	preparing chan struct{}

	mu           sync.Mutex
	state        State
	active       bool
	announce     bool
	filters      string // canonical filter signature applied to renders
	current      *queue.Item
	lastFinished *queue.Item // most recently completed item, for handoff lines
	next         *prepared
	scheduled    *queue.Item // item due after a transition clip's measured duration
	playStart    time.Time
	introPlayed  bool
	failures     int
	conn        transport.Conn
	timers      []*time.Timer
	scratch     []string // ephemeral artifact paths owned by this session
}

func newSession(parent context.Context, channelID string, announce bool) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ChannelID: channelID,
		ctx:       ctx,
		cancel:    cancel,
		Queue:     queue.New(),
		signals:   make(chan signalKind, 8),
		preparing: make(chan struct{}, 1),
		state:     StateIdle,
		active:    true,
		announce:  announce,
	}
}

// tryBeginPrepare acquires the in-flight guard without blocking.
func (s *Session) tryBeginPrepare() bool {
	select {
	case s.preparing <- struct{}{}:
		return true
	default:
		return false
	}
}

// endPrepare releases the guard. Safe to call when not held.
func (s *Session) endPrepare() {
	select {
	case <-s.preparing:
	default:
	}
}

// prepareInFlight reports whether a preparation currently holds the guard.
func (s *Session) prepareInFlight() bool {
	return len(s.preparing) > 0
}

// signal wakes the session loop; drops the wakeup if the loop is saturated,
// which is safe because pending signals force a re-evaluation anyway.
func (s *Session) signal(kind signalKind) {
	select {
	case s.signals <- kind:
	default:
	}
}

// Active reports whether the session still runs.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AnnouncementsEnabled reports the announcement toggle.
func (s *Session) AnnouncementsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.announce
}

// SetAnnouncements flips the announcement toggle.
func (s *Session) SetAnnouncements(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.announce = enabled
}

// Filters returns the canonical filter signature applied to new renders.
func (s *Session) Filters() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filters
}

// setFilters replaces the session filter signature and drops a prepared next
// item rendered under the old signature.
func (s *Session) setFilters(signature string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = signature
	s.next = nil
}

// Current returns the item being played, or nil.
func (s *Session) Current() *queue.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Elapsed returns how long the current item has been playing.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.playStart.IsZero() {
		return 0
	}
	return time.Since(s.playStart)
}

// storeNext places the lookahead result. Rejected after teardown so a late
// preparation cannot resurrect a destroyed session.
func (s *Session) storeNext(p *prepared) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.next = p
	return true
}

// takeNext consumes the lookahead slot.
func (s *Session) takeNext() *prepared {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.next
	s.next = nil
	return p
}

// peekNext reports whether a lookahead result is waiting.
func (s *Session) peekNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next != nil
}

// schedule runs f after d unless the session is torn down first.
func (s *Session) schedule(d time.Duration, f func()) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		if s.ctx.Err() != nil {
			return
		}
		f()
	})
	s.timers = append(s.timers, timer)
	s.mu.Unlock()
}

// addScratch registers an ephemeral artifact for teardown cleanup.
func (s *Session) addScratch(path string) {
	if path == "" {
		return
	}
	s.mu.Lock()
	s.scratch = append(s.scratch, path)
	s.mu.Unlock()
}

// teardown marks the session dead, cancels timers and in-flight work, and
// returns the paths it owned. Idempotent.
func (s *Session) teardown() (conn transport.Conn, scratch []string) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil, nil
	}
	s.active = false
	s.state = StateStopped
	conn = s.conn
	s.conn = nil
	s.current = nil
	s.next = nil
	s.scheduled = nil
	scratch = s.scratch
	s.scratch = nil
	timers := s.timers
	s.timers = nil
	s.mu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}
	s.cancel()
	return conn, scratch
}

// Registry is the shared map of channel to session. Create and destroy are
// atomic with respect to lookup.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Create adds a session for the channel. Returns nil if one already exists.
func (r *Registry) Create(parent context.Context, channelID string, announce bool) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[channelID]; exists {
		return nil
	}
	s := newSession(parent, channelID, announce)
	r.sessions[channelID] = s
	return s
}

// Get returns the session for the channel, or nil.
func (r *Registry) Get(channelID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[channelID]
}

// Destroy removes and returns the session. Safe to call twice; the second
// call returns nil.
func (r *Registry) Destroy(channelID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[channelID]
	delete(r.sessions, channelID)
	return s
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
