/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_radio/internal/catalog"
	"github.com/friendsincode/munin_radio/internal/events"
	"github.com/friendsincode/munin_radio/internal/filters"
	"github.com/friendsincode/munin_radio/internal/queue"
	"github.com/friendsincode/munin_radio/internal/rendercache"
	"github.com/friendsincode/munin_radio/internal/telemetry"
	"github.com/friendsincode/munin_radio/internal/transform"
	"github.com/friendsincode/munin_radio/internal/transport"
	"github.com/friendsincode/munin_radio/internal/tts"
)

// Options tune controller behavior.
type Options struct {
	CacheDir        string
	AnnounceDefault bool
	RetryDelay      time.Duration
	MaxRetries      int
	StationName     string
}

// Controller owns all sessions and reacts to playback idle events. Within one
// session everything runs on a single loop goroutine; independent sessions
// are fully isolated.
type Controller struct {
	registry  *Registry
	catalog   catalog.Store
	gateway   transform.Gateway
	cache     *rendercache.Cache
	synth     tts.Synthesizer
	lines     tts.LineWriter
	presets   *filters.Presets
	transport transport.Transport
	bus       *events.Bus
	opts      Options
	logger    zerolog.Logger

	mu     sync.Mutex
	runCtx context.Context
}

// NewController wires the session engine.
func NewController(
	registry *Registry,
	store catalog.Store,
	gateway transform.Gateway,
	cache *rendercache.Cache,
	synth tts.Synthesizer,
	lines tts.LineWriter,
	presets *filters.Presets,
	tr transport.Transport,
	bus *events.Bus,
	opts Options,
	logger zerolog.Logger,
) *Controller {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 3 * time.Second
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 5
	}
	if opts.StationName == "" {
		opts.StationName = "Munin Radio"
	}
	return &Controller{
		registry:  registry,
		catalog:   store,
		gateway:   gateway,
		cache:     cache,
		synth:     synth,
		lines:     lines,
		presets:   presets,
		transport: tr,
		bus:       bus,
		opts:      opts,
		logger:    logger.With().Str("component", "session").Logger(),
	}
}

// Run routes playback idle events to their sessions until ctx cancellation.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()
	idle := c.bus.Subscribe(events.EventPlaybackIdle)
	defer c.bus.Unsubscribe(events.EventPlaybackIdle, idle)

	c.logger.Info().Msg("session controller started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("session controller stopped")
			c.stopAll()
			return
		case payload := <-idle:
			channelID, _ := payload["channel_id"].(string)
			if s := c.registry.Get(channelID); s != nil {
				s.signal(signalIdle)
			}
		}
	}
}

// StartSession creates and launches a session for the channel.
func (c *Controller) StartSession(ctx context.Context, channelID string) error {
	c.mu.Lock()
	parent := c.runCtx
	c.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}

	s := c.registry.Create(parent, channelID, c.opts.AnnounceDefault)
	if s == nil {
		return fmt.Errorf("channel %s: %w", channelID, ErrSessionExists)
	}

	conn, err := c.transport.Connect(ctx, channelID)
	if err != nil {
		c.registry.Destroy(channelID)
		return fmt.Errorf("connect transport: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateIntroPending
	s.mu.Unlock()

	telemetry.SessionsActive.Inc()
	c.bus.Publish(events.EventSessionStarted, events.Payload{"channel_id": channelID})
	c.logger.Info().Str("channel", channelID).Msg("session started")

	go c.sessionLoop(s)
	return nil
}

// StopSession tears the channel's session down. Idempotent; stopping an
// absent session is not an error.
func (c *Controller) StopSession(channelID string) {
	s := c.registry.Destroy(channelID)
	if s == nil {
		return
	}
	c.stop(s)
}

func (c *Controller) stopAll() {
	for {
		var victim *Session
		c.registry.mu.Lock()
		for id := range c.registry.sessions {
			victim = c.registry.sessions[id]
			delete(c.registry.sessions, id)
			break
		}
		c.registry.mu.Unlock()
		if victim == nil {
			return
		}
		c.stop(victim)
	}
}

func (c *Controller) stop(s *Session) {
	conn, scratch := s.teardown()

	for _, item := range s.Queue.Drain() {
		if item.IsMedia() && item.Media.Ephemeral {
			scratch = append(scratch, item.Media.Path)
		}
		if item.Kind == queue.KindAnnouncement && item.Announcement.AudioPath != "" {
			scratch = append(scratch, item.Announcement.AudioPath)
		}
	}
	for _, path := range scratch {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger.Debug().Err(err).Str("path", path).Msg("scratch cleanup failed")
		}
	}

	if conn != nil {
		conn.Disconnect()
	}

	telemetry.SessionsActive.Dec()
	c.bus.Publish(events.EventSessionStopped, events.Payload{"channel_id": s.ChannelID})
	c.logger.Info().Str("channel", s.ChannelID).Msg("session stopped")
}

// sessionLoop is the single worker for one session. Signals are processed
// strictly sequentially.
func (c *Controller) sessionLoop(s *Session) {
	c.playIntro(s)

	for {
		select {
		case <-s.ctx.Done():
			return
		case kind := <-s.signals:
			if !s.Active() {
				return
			}
			switch kind {
			case signalIdle:
				c.handleIdle(s)
			case signalKick:
				c.handleKick(s)
			case signalScheduled:
				c.handleScheduled(s)
			}
		}
	}
}

// playIntro opens the session with a spoken intro while the first track is
// prepared in the background. A failed intro falls through to direct
// preparation.
func (c *Controller) playIntro(s *Session) {
	go c.prepareNext(s)

	line, err := c.lines.CustomLine(s.ctx, fmt.Sprintf("You are tuned in to %s. Let's get started.", c.opts.StationName))
	if err == nil {
		var path string
		var duration time.Duration
		path, duration, err = c.synth.Synthesize(s.ctx, line)
		if err == nil {
			s.addScratch(path)
			intro := queue.NewAnnouncement(queue.AnnouncementRef{Text: line, AudioPath: path, Duration: duration})
			if playErr := c.play(s, intro, StateIntroPending); playErr == nil {
				s.mu.Lock()
				s.introPlayed = true
				s.mu.Unlock()
				return
			}
		}
	}

	if err != nil {
		telemetry.SynthesisFailuresTotal.Inc()
		c.logger.Debug().Err(err).Str("channel", s.ChannelID).Msg("intro synthesis failed, playing first track directly")
	}
	// No intro: behave as if playback just went idle.
	s.signal(signalIdle)
}

// handleIdle reacts to the transport finishing an artifact.
func (c *Controller) handleIdle(s *Session) {
	s.mu.Lock()
	finished := s.current
	s.current = nil
	if finished != nil {
		s.lastFinished = finished
	}
	hasScheduled := s.scheduled != nil
	s.mu.Unlock()

	c.releaseEphemeral(finished)

	// A transition clip just finished and its media is on a measured-duration
	// timer; the scheduled signal will start it.
	if hasScheduled {
		return
	}

	// Primary re-entrancy guard: an in-flight preparation delivers the next
	// item itself when it completes.
	if s.prepareInFlight() {
		s.mu.Lock()
		s.state = StatePreparing
		s.mu.Unlock()
		return
	}

	c.advance(s, finished)
}

// handleKick re-evaluates after a completed preparation or retry timer.
func (c *Controller) handleKick(s *Session) {
	s.mu.Lock()
	busy := s.current != nil || s.scheduled != nil
	finished := s.lastFinished
	s.mu.Unlock()
	if busy {
		return
	}
	if s.prepareInFlight() {
		return
	}
	c.advance(s, finished)
}

// handleScheduled starts the media item whose transition clip has elapsed.
func (c *Controller) handleScheduled(s *Session) {
	s.mu.Lock()
	item := s.scheduled
	s.scheduled = nil
	s.mu.Unlock()
	if item == nil {
		return
	}
	c.playResolved(s, item)
}

// advance runs the next-item selection algorithm and starts playback.
// finished is the item that just completed, used for transition decisions.
func (c *Controller) advance(s *Session, finished *queue.Item) {
	item, err := c.selectNext(s, finished)
	if err != nil {
		c.retryLater(s, err)
		return
	}
	if item == nil {
		// Nothing to play right now; try again after the retry delay.
		c.retryLater(s, fmt.Errorf("no playable item"))
		return
	}

	s.mu.Lock()
	s.failures = 0
	s.mu.Unlock()

	// Transition announcement between two media items. One-shot clips such as
	// rewinds do not get a handoff.
	if item.IsMedia() && finished.IsMedia() && !finished.Media.Ephemeral && s.AnnouncementsEnabled() {
		if ann := c.transitionFor(s, finished, item); ann != nil {
			c.playWithTransition(s, ann, item)
			return
		}
	}

	c.playResolved(s, item)
}

// selectNext applies the selection priority order: prepared next slot, queue
// head, then a random catalog pick. finished keys the validity of a prepared
// transition clip.
func (c *Controller) selectNext(s *Session, finished *queue.Item) (*queue.Item, error) {
	// 1. Pre-prepared item whose artifact still exists. The slot only applies
	// while the queue looks the way it did at preparation time; items pushed
	// in front since then (enqueues, rewind clips) take priority and the slot
	// is deferred, not discarded.
	if p := s.takeNext(); p != nil {
		head := s.Queue.Peek()
		switch {
		case !artifactExists(p.item):
			c.logger.Debug().Str("channel", s.ChannelID).Msg("prepared artifact vanished, reselecting")
		case p.fromQueueID == "" && head != nil:
			// Random pick prepared while the queue was empty; queued items go
			// first. Defer the slot until the queue drains.
			s.storeNext(p)
		case p.fromQueueID != "" && (head == nil || head.ID != p.fromQueueID):
			// The queue moved on under the slot. Discard it; the artifact
			// stays in the render cache.
		default:
			if p.fromQueueID != "" {
				s.Queue.Remove(p.fromQueueID)
			}
			if p.announcement != nil && s.AnnouncementsEnabled() {
				if finished != nil && finished.ID == p.announcedAfterID {
					// Transition clip prepared alongside the item.
					c.playWithTransition(s, p.announcement, p.item)
					return nil, errConsumed
				}
				// The clip names an item that is not the one that just
				// finished (a skip landed in between). Drop it; advance
				// synthesizes a fresh handoff. Scratch sweep reclaims the
				// audio.
			}
			return p.item, nil
		}
	}

	// 2. Queue head.
	for {
		item := s.Queue.Pop()
		if item == nil {
			break
		}
		if item.Kind == queue.KindAnnouncement {
			if err := c.ensureAnnouncementAudio(s, item); err != nil {
				telemetry.SynthesisFailuresTotal.Inc()
				c.logger.Debug().Err(err).Str("channel", s.ChannelID).Msg("announcement synthesis failed, skipping")
				continue
			}
			return item, nil
		}
		if err := c.ensureMediaArtifact(s, item); err != nil {
			c.logger.Warn().Err(err).Str("channel", s.ChannelID).Str("title", item.Media.Title).
				Msg("queued media unplayable, skipping")
			continue
		}
		return item, nil
	}

	// 3. Random catalog pick.
	picks, err := c.catalog.RandomMedia(s.ctx, s.ChannelID, 1)
	if err != nil {
		return nil, fmt.Errorf("random media: %w", err)
	}
	if len(picks) == 0 {
		return nil, nil
	}

	pick := picks[0]
	item := queue.NewMedia(queue.MediaRef{
		CatalogID: pick.ID,
		Title:     pick.Title,
		Artist:    pick.Artist,
		Path:      pick.Path,
	})
	if err := c.ensureMediaArtifact(s, item); err != nil {
		return nil, fmt.Errorf("prepare random pick: %w", err)
	}
	return item, nil
}

// errConsumed signals that selectNext already started playback itself.
var errConsumed = fmt.Errorf("selection consumed")

// retryLater schedules a bounded retry after a selection failure.
func (c *Controller) retryLater(s *Session, cause error) {
	if cause == errConsumed {
		return
	}

	s.mu.Lock()
	s.failures++
	failures := s.failures
	s.mu.Unlock()

	if failures >= c.opts.MaxRetries {
		c.logger.Error().Err(cause).Str("channel", s.ChannelID).Int("failures", failures).
			Msg("giving up after repeated selection failures")
		c.StopSession(s.ChannelID)
		return
	}

	telemetry.SelectionRetriesTotal.Inc()
	c.logger.Warn().Err(cause).Str("channel", s.ChannelID).Int("attempt", failures).
		Dur("delay", c.opts.RetryDelay).Msg("selection failed, retrying")
	s.schedule(c.opts.RetryDelay, func() { s.signal(signalKick) })
}

// playWithTransition plays the transition clip first and schedules the media
// to start only after the clip's measured duration elapses.
func (c *Controller) playWithTransition(s *Session, ann, media *queue.Item) {
	if err := c.play(s, ann, StatePlaying); err != nil {
		c.logger.Debug().Err(err).Str("channel", s.ChannelID).Msg("transition playback failed, playing media directly")
		c.playResolved(s, media)
		return
	}

	s.mu.Lock()
	s.scheduled = media
	s.mu.Unlock()

	delay := ann.Announcement.Duration
	if delay <= 0 {
		delay = time.Second
	}
	s.schedule(delay, func() { s.signal(signalScheduled) })
}

// playResolved plays an item whose artifact is ready, then kicks lookahead.
func (c *Controller) playResolved(s *Session, item *queue.Item) {
	if err := c.play(s, item, StatePlaying); err != nil {
		c.retryLater(s, err)
		return
	}

	if item.IsMedia() && item.Media.CatalogID != "" {
		if err := c.catalog.RecordPlay(s.ctx, s.ChannelID, item.Media.CatalogID); err != nil {
			c.logger.Debug().Err(err).Msg("record play failed")
		}
	}

	// Lookahead: overlap the next preparation with current playback.
	go c.prepareNext(s)
}

// play hands the item's artifact to the transport and updates session state.
func (c *Controller) play(s *Session, item *queue.Item, state State) error {
	path := artifactPath(item)
	if path == "" {
		return fmt.Errorf("item has no artifact")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("session has no transport connection")
	}

	if err := conn.Play(s.ctx, path); err != nil {
		return fmt.Errorf("transport play: %w", err)
	}

	s.mu.Lock()
	s.current = item
	s.playStart = time.Now()
	s.state = state
	s.mu.Unlock()

	kind := "media"
	if item.Kind == queue.KindAnnouncement {
		kind = "announcement"
	}
	telemetry.PlaybacksTotal.WithLabelValues(kind).Inc()
	c.publishNowPlaying(s, item)
	return nil
}

// publishNowPlaying updates the best-effort status side channel.
func (c *Controller) publishNowPlaying(s *Session, item *queue.Item) {
	payload := events.Payload{
		"channel_id": s.ChannelID,
		"title":      item.Title(),
		"kind":       "media",
	}
	if item.IsMedia() {
		payload["artist"] = item.Media.Artist
	} else {
		payload["kind"] = "announcement"
	}
	c.bus.Publish(events.EventNowPlaying, payload)
}

// transitionFor synthesizes a spoken handoff between two media items. Returns
// nil when synthesis fails; playback then proceeds directly.
func (c *Controller) transitionFor(s *Session, finished, upcoming *queue.Item) *queue.Item {
	line, err := c.lines.TransitionLine(s.ctx, finished.Media.Title, upcoming.Media.Title)
	if err != nil {
		telemetry.SynthesisFailuresTotal.Inc()
		c.logger.Debug().Err(err).Str("channel", s.ChannelID).Msg("transition line failed")
		return nil
	}

	path, duration, err := c.synth.Synthesize(s.ctx, line)
	if err != nil {
		telemetry.SynthesisFailuresTotal.Inc()
		c.logger.Debug().Err(err).Str("channel", s.ChannelID).Msg("transition synthesis failed")
		return nil
	}

	s.addScratch(path)
	return queue.NewAnnouncement(queue.AnnouncementRef{
		Text:      line,
		AudioPath: path,
		Duration:  duration,
		TargetID:  upcoming.ID,
	})
}

// ensureAnnouncementAudio renders a not-yet-synthesized announcement.
func (c *Controller) ensureAnnouncementAudio(s *Session, item *queue.Item) error {
	if item.Announcement.AudioPath != "" {
		if _, err := os.Stat(item.Announcement.AudioPath); err == nil {
			return nil
		}
	}

	path, duration, err := c.synth.Synthesize(s.ctx, item.Announcement.Text)
	if err != nil {
		return err
	}
	s.addScratch(path)
	item.Announcement.AudioPath = path
	item.Announcement.Duration = duration
	return nil
}

// ensureMediaArtifact resolves the playable artifact for a media item:
// cached filtered render, a loudness normalized render, or the raw file as
// last resort.
func (c *Controller) ensureMediaArtifact(s *Session, item *queue.Item) error {
	if item.Media.Processed && item.Media.ProcessedPath != "" {
		if _, err := os.Stat(item.Media.ProcessedPath); err == nil {
			return nil
		}
		// Processed artifact vanished between preparation and playback.
		item.Media.Processed = false
		item.Media.ProcessedPath = ""
	}

	if _, err := os.Stat(item.Media.Path); err != nil {
		return fmt.Errorf("source file missing: %w", err)
	}

	ctx, span := telemetry.StartSpan(s.ctx, "session", "resolve_artifact")
	defer span.End()

	path := c.resolveArtifact(ctx, s, item.Media)
	item.Media.ProcessedPath = path
	item.Media.Processed = true
	if item.Media.Duration <= 0 {
		item.Media.Duration = c.gateway.ProbeDuration(ctx, path)
	}
	return nil
}

// resolveArtifact renders (or reuses) the loudness normalized, optionally
// filtered artifact for a media source. Never fails: the raw path is the
// final fallback.
func (c *Controller) resolveArtifact(ctx context.Context, s *Session, ref *queue.MediaRef) string {
	raw := ref.Filters
	if raw == "" {
		raw = s.Filters()
	}
	effects := filters.Parse(c.presets.Resolve(raw))
	signature := filters.Signature(effects)

	identity := ref.CatalogID
	if identity == "" {
		identity = ref.Path
	}

	key := rendercache.Key(identity, signature)
	if path, ok := c.cache.Get(ctx, key); ok {
		telemetry.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return path
	}
	telemetry.CacheLookupsTotal.WithLabelValues("miss").Inc()

	chain := joinChain(filters.Compile(effects), transform.LoudnormChain)
	out := filepath.Join(c.opts.CacheDir, key+".ogg")

	path, err := c.gateway.Render(ctx, ref.Path, chain, transform.RenderOptions{Output: out})
	if err == nil {
		telemetry.RendersTotal.WithLabelValues("ok").Inc()
		c.cache.Put(ctx, key, path)
		return path
	}
	telemetry.RendersTotal.WithLabelValues("error").Inc()
	c.logger.Warn().Err(err).Str("channel", s.ChannelID).Str("filters", signature).
		Msg("filtered render failed, falling back")

	// Unfiltered, normalized fallback.
	if signature != "" {
		plainKey := rendercache.Key(identity, "")
		if cached, ok := c.cache.Get(ctx, plainKey); ok {
			return cached
		}
		plainOut := filepath.Join(c.opts.CacheDir, plainKey+".ogg")
		path, err = c.gateway.NormalizeLoudness(ctx, ref.Path,
			transform.RenderOptions{Output: plainOut})
		if err == nil {
			telemetry.RendersTotal.WithLabelValues("ok").Inc()
			c.cache.Put(ctx, plainKey, path)
			return path
		}
		telemetry.RendersTotal.WithLabelValues("error").Inc()
	}

	// Raw file as last resort.
	return ref.Path
}

// releaseEphemeral deletes one-shot artifacts once their playback finished.
func (c *Controller) releaseEphemeral(item *queue.Item) {
	if item == nil {
		return
	}
	if item.IsMedia() && item.Media.Ephemeral {
		if err := os.Remove(item.Media.Path); err != nil && !os.IsNotExist(err) {
			c.logger.Debug().Err(err).Str("path", item.Media.Path).Msg("ephemeral cleanup failed")
		}
	}
}

func artifactPath(item *queue.Item) string {
	switch {
	case item == nil:
		return ""
	case item.Kind == queue.KindAnnouncement:
		return item.Announcement.AudioPath
	case item.Media.Processed && item.Media.ProcessedPath != "":
		return item.Media.ProcessedPath
	default:
		return item.Media.Path
	}
}

func artifactExists(item *queue.Item) bool {
	path := artifactPath(item)
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func joinChain(parts ...string) string {
	var chain []string
	for _, p := range parts {
		if p != "" {
			chain = append(chain, p)
		}
	}
	return strings.Join(chain, ",")
}
