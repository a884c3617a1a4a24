/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the session engine, catalog, and HTTP surface together.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"gorm.io/gorm"

	"github.com/friendsincode/munin_radio/internal/api"
	"github.com/friendsincode/munin_radio/internal/catalog"
	"github.com/friendsincode/munin_radio/internal/config"
	"github.com/friendsincode/munin_radio/internal/db"
	"github.com/friendsincode/munin_radio/internal/eventbus"
	"github.com/friendsincode/munin_radio/internal/events"
	"github.com/friendsincode/munin_radio/internal/filters"
	"github.com/friendsincode/munin_radio/internal/rendercache"
	"github.com/friendsincode/munin_radio/internal/session"
	"github.com/friendsincode/munin_radio/internal/telemetry"
	"github.com/friendsincode/munin_radio/internal/transform"
	"github.com/friendsincode/munin_radio/internal/transport"
	"github.com/friendsincode/munin_radio/internal/tts"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg           *config.Config
	logger        zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	db       *gorm.DB
	bus      *events.Bus
	cache    *rendercache.Cache
	catalog  *catalog.Service
	sessions *session.Controller
	mirror   *eventbus.NATSMirror
	api      *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(srv.router, "munin-radio-api"),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Prometheus scrapes go to a separate listener so the API surface can be
	// exposed without the metrics endpoint.
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", telemetry.Handler())
	srv.metricsServer = &http.Server{
		Addr:              cfg.MetricsBind,
		Handler:           metricsMux,
		ReadHeaderTimeout: 15 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	for _, dir := range []string{s.cfg.MediaRoot, s.cfg.ScratchDir, s.cfg.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if removed, err := transform.CleanScratch(s.cfg.ScratchDir, 24*time.Hour); err != nil {
		s.logger.Warn().Err(err).Msg("scratch sweep failed")
	} else if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("stale scratch artifacts removed")
	}

	cacheCfg := rendercache.Config{
		RedisAddr:      s.cfg.RedisAddr,
		RedisPassword:  s.cfg.RedisPassword,
		RedisDB:        s.cfg.RedisDB,
		DisableOnError: true,
	}
	s.cache = rendercache.New(cacheCfg, s.logger)
	s.DeferClose(func() error { return s.cache.Close() })

	s.catalog = catalog.NewService(database, s.cfg.MediaRoot, s.cfg.RandomHistory, s.logger)

	gateway := transform.NewFFmpeg(s.cfg.FFmpegBin, s.cfg.FFprobeBin, s.cfg.ScratchDir, s.logger)

	presets, err := filters.LoadPresets(s.cfg.FilterPresets)
	if err != nil {
		return fmt.Errorf("load filter presets: %w", err)
	}

	var lines tts.LineWriter = tts.TemplateLineWriter{}
	if s.cfg.LineGenBaseURL != "" {
		lines = tts.NewHTTPLineWriter(s.cfg.LineGenBaseURL, s.logger)
	}
	synth := tts.NewHTTPSynthesizer(s.cfg.TTSBaseURL, s.cfg.ScratchDir, gateway, s.logger)

	announceDefault := s.cfg.AnnounceDefault
	if s.cfg.TTSBaseURL == "" {
		// No synthesizer, no spoken transitions.
		announceDefault = false
	}

	tr := transport.NewProcessTransport(s.cfg.PlayerBin, s.bus, s.logger)

	s.sessions = session.NewController(
		session.NewRegistry(),
		s.catalog,
		gateway,
		s.cache,
		synth,
		lines,
		presets,
		tr,
		s.bus,
		session.Options{
			CacheDir:        s.cfg.CacheDir,
			AnnounceDefault: announceDefault,
			RetryDelay:      s.cfg.RetryDelay,
			MaxRetries:      s.cfg.MaxRetries,
		},
		s.logger,
	)

	// Best-effort status fan-out; disabled when no NATS URL is configured.
	s.mirror = eventbus.NewNATSMirror(s.cfg.NATSURL, s.logger)
	s.mirror.Mirror(s.bus,
		events.EventSessionStarted,
		events.EventSessionStopped,
		events.EventNowPlaying,
		events.EventPrepareFailed,
	)
	s.DeferClose(func() error {
		s.mirror.Close()
		return nil
	})

	s.api = api.New(s.sessions, s.catalog, s.logger)
	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer returns the dedicated Prometheus listener.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.sessions.Run(ctx)
	}()

	// Periodic sweep for scratch artifacts orphaned by crashes.
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed, err := transform.CleanScratch(s.cfg.ScratchDir, 24*time.Hour); err == nil && removed > 0 {
					s.logger.Debug().Int("removed", removed).Msg("stale scratch artifacts removed")
				}
			}
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.api.Routes(s.router)
}
