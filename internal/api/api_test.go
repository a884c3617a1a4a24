/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_radio/internal/events"
	"github.com/friendsincode/munin_radio/internal/filters"
	"github.com/friendsincode/munin_radio/internal/models"
	"github.com/friendsincode/munin_radio/internal/rendercache"
	"github.com/friendsincode/munin_radio/internal/session"
	"github.com/friendsincode/munin_radio/internal/transform"
	"github.com/friendsincode/munin_radio/internal/transport"
)

type stubStore struct {
	items []models.MediaItem
}

func (s *stubStore) RandomMedia(_ context.Context, _ string, n int) ([]models.MediaItem, error) {
	if n > len(s.items) {
		n = len(s.items)
	}
	return append([]models.MediaItem(nil), s.items[:n]...), nil
}

func (s *stubStore) Search(_ context.Context, term string) ([]models.MediaItem, error) {
	var out []models.MediaItem
	for _, item := range s.items {
		if strings.Contains(item.Title, term) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *stubStore) RecordPlay(context.Context, string, string) error { return nil }

type stubGateway struct{ dir string }

func (s *stubGateway) Render(_ context.Context, input, _ string, opts transform.RenderOptions) (string, error) {
	out := opts.Output
	if out == "" {
		out = filepath.Join(s.dir, fmt.Sprintf("render-%d.ogg", time.Now().UnixNano()))
	}
	return out, os.WriteFile(out, []byte(input), 0o644)
}

func (s *stubGateway) NormalizeLoudness(ctx context.Context, input string, opts transform.RenderOptions) (string, error) {
	return s.Render(ctx, input, "", opts)
}

func (s *stubGateway) ProbeDuration(context.Context, string) time.Duration { return time.Second }

type stubSynth struct{ dir string }

func (s *stubSynth) Synthesize(_ context.Context, text string) (string, time.Duration, error) {
	path := filepath.Join(s.dir, fmt.Sprintf("tts-%d.wav", time.Now().UnixNano()))
	return path, 10 * time.Millisecond, os.WriteFile(path, []byte(text), 0o644)
}

type stubLines struct{}

func (stubLines) TransitionLine(_ context.Context, previous, next string) (string, error) {
	return previous + " then " + next, nil
}

func (stubLines) CustomLine(_ context.Context, prompt string) (string, error) { return prompt, nil }

type stubConn struct {
	bus       *events.Bus
	channelID string

	mu      sync.Mutex
	playing bool
}

func (c *stubConn) Play(_ context.Context, _ string) error {
	c.mu.Lock()
	c.playing = true
	c.mu.Unlock()
	go func() {
		time.Sleep(5 * time.Millisecond)
		c.idle()
	}()
	return nil
}

func (c *stubConn) Stop() error {
	c.idle()
	return nil
}

func (c *stubConn) Disconnect() {}

func (c *stubConn) idle() {
	c.mu.Lock()
	wasPlaying := c.playing
	c.playing = false
	c.mu.Unlock()
	if wasPlaying {
		c.bus.Publish(events.EventPlaybackIdle, events.Payload{"channel_id": c.channelID})
	}
}

type stubTransport struct{ bus *events.Bus }

func (t *stubTransport) Connect(_ context.Context, channelID string) (transport.Conn, error) {
	return &stubConn{bus: t.bus, channelID: channelID}, nil
}

func newTestRouter(t *testing.T) (chi.Router, context.CancelFunc) {
	t.Helper()
	dir := t.TempDir()

	store := &stubStore{}
	for i := 0; i < 3; i++ {
		path := filepath.Join(dir, fmt.Sprintf("track%d.mp3", i))
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			t.Fatalf("write media: %v", err)
		}
		store.items = append(store.items, models.MediaItem{
			ID:    fmt.Sprintf("media-%d", i),
			Title: fmt.Sprintf("Song %d", i),
			Path:  path,
		})
	}

	bus := events.NewBus()
	presets, err := filters.LoadPresets("")
	if err != nil {
		t.Fatalf("load presets: %v", err)
	}
	cache := rendercache.New(rendercache.Config{}, zerolog.Nop())

	controller := session.NewController(
		session.NewRegistry(),
		store,
		&stubGateway{dir: dir},
		cache,
		&stubSynth{dir: dir},
		stubLines{},
		presets,
		&stubTransport{bus: bus},
		bus,
		session.Options{CacheDir: dir, RetryDelay: 10 * time.Millisecond, MaxRetries: 3},
		zerolog.Nop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	go controller.Run(ctx)
	t.Cleanup(cancel)

	router := chi.NewRouter()
	New(controller, store, zerolog.Nop()).Routes(router)
	return router, cancel
}

func doRequest(t *testing.T, router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSessionLifecycleEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/channels/chan1/session", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status before start = %d, want 404", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/channels/chan1/session", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("start = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/channels/chan1/session", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate start = %d, want 409", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/channels/chan1/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var st map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st["channel_id"] != "chan1" {
		t.Fatalf("channel_id = %v", st["channel_id"])
	}

	rec = doRequest(t, router, http.MethodDelete, "/v1/channels/chan1/session", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("stop = %d, want 204", rec.Code)
	}
	// Stop is idempotent.
	rec = doRequest(t, router, http.MethodDelete, "/v1/channels/chan1/session", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("second stop = %d, want 204", rec.Code)
	}
}

func TestEnqueueEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/channels/chan1/queue", `{"query":"Song 1"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("enqueue without session = %d, want 404", rec.Code)
	}

	doRequest(t, router, http.MethodPost, "/v1/channels/chan1/session", "")

	rec = doRequest(t, router, http.MethodPost, "/v1/channels/chan1/queue", `{"query":"Song 1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("enqueue = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/channels/chan1/queue", `{"query":"does not exist"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("enqueue unknown = %d, want 404", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/channels/chan1/queue", `{"query":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("enqueue empty query = %d, want 400", rec.Code)
	}
}

func TestFilterEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	doRequest(t, router, http.MethodPost, "/v1/channels/chan1/session", "")

	rec := doRequest(t, router, http.MethodPut, "/v1/channels/chan1/filters", `{"filters":"bass=3,nonsense=1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set filters = %d, want 200", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["filters"] != "bass=3" {
		t.Fatalf("applied filters = %q, want bass=3", resp["filters"])
	}

	rec = doRequest(t, router, http.MethodDelete, "/v1/channels/chan1/filters", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear filters = %d, want 204", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/media/search?q=Song", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search = %d, want 200", rec.Code)
	}
	var resp struct {
		Results []struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(resp.Results))
	}

	rec = doRequest(t, router, http.MethodGet, "/v1/media/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("search without query = %d, want 400", rec.Code)
	}
}

func TestAnnounceEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	doRequest(t, router, http.MethodPost, "/v1/channels/chan1/session", "")

	rec := doRequest(t, router, http.MethodPost, "/v1/channels/chan1/announce", `{"text":"hello listeners"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("announce = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/v1/channels/chan1/announce", `{"text":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank announce = %d, want 400", rec.Code)
	}
}
