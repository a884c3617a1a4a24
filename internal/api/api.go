/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the HTTP control surface for channel sessions.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_radio/internal/catalog"
	"github.com/friendsincode/munin_radio/internal/session"
)

// API exposes HTTP handlers.
type API struct {
	sessions *session.Controller
	catalog  catalog.Store
	logger   zerolog.Logger
}

// New creates the API router wrapper.
func New(sessions *session.Controller, store catalog.Store, logger zerolog.Logger) *API {
	return &API{
		sessions: sessions,
		catalog:  store,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts all API endpoints.
func (a *API) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/channels", a.listChannels)
		r.Get("/media/search", a.searchMedia)

		r.Route("/channels/{channelID}", func(r chi.Router) {
			r.Post("/session", a.startSession)
			r.Delete("/session", a.stopSession)
			r.Get("/session", a.sessionStatus)

			r.Post("/queue", a.enqueue)
			r.Post("/skip", a.skip)
			r.Post("/rewind", a.rewind)
			r.Post("/announce", a.announce)

			r.Put("/filters", a.setFilters)
			r.Delete("/filters", a.clearFilters)
			r.Put("/announcements", a.setAnnouncements)
		})
	})
}

func (a *API) startSession(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if channelID == "" {
		writeError(w, http.StatusBadRequest, "missing_channel_id")
		return
	}

	if err := a.sessions.StartSession(r.Context(), channelID); err != nil {
		if errors.Is(err, session.ErrSessionExists) {
			writeError(w, http.StatusConflict, "session_exists")
			return
		}
		a.logger.Error().Err(err).Str("channel", channelID).Msg("start session failed")
		writeError(w, http.StatusInternalServerError, "start_failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"channel_id": channelID, "state": "started"})
}

// stopSession is idempotent: stopping an absent session still returns 204.
func (a *API) stopSession(w http.ResponseWriter, r *http.Request) {
	a.sessions.StopSession(chi.URLParam(r, "channelID"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) sessionStatus(w http.ResponseWriter, r *http.Request) {
	st := a.sessions.Status(chi.URLParam(r, "channelID"))
	if st == nil {
		writeError(w, http.StatusNotFound, "no_session")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) listChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"channels": a.sessions.Channels()})
}

type enqueueRequest struct {
	Query   string `json:"query"`
	Filters string `json:"filters"`
}

func (a *API) enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "missing_query")
		return
	}

	channelID := chi.URLParam(r, "channelID")
	item, err := a.sessions.Enqueue(r.Context(), channelID, req.Query, req.Filters)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoSession):
			writeError(w, http.StatusNotFound, "no_session")
		case errors.Is(err, session.ErrNoMatch):
			writeError(w, http.StatusNotFound, "no_match")
		default:
			a.logger.Error().Err(err).Str("channel", channelID).Msg("enqueue failed")
			writeError(w, http.StatusInternalServerError, "enqueue_failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     item.ID,
		"title":  item.Media.Title,
		"artist": item.Media.Artist,
	})
}

func (a *API) skip(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if err := a.sessions.Skip(channelID); err != nil {
		if errors.Is(err, session.ErrNoSession) {
			writeError(w, http.StatusNotFound, "no_session")
			return
		}
		a.logger.Error().Err(err).Str("channel", channelID).Msg("skip failed")
		writeError(w, http.StatusInternalServerError, "skip_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
}

func (a *API) rewind(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelID")
	if err := a.sessions.Rewind(r.Context(), channelID); err != nil {
		switch {
		case errors.Is(err, session.ErrNoSession):
			writeError(w, http.StatusNotFound, "no_session")
		case errors.Is(err, session.ErrNotRewindable):
			writeError(w, http.StatusConflict, "not_rewindable")
		default:
			a.logger.Error().Err(err).Str("channel", channelID).Msg("rewind failed")
			writeError(w, http.StatusInternalServerError, "rewind_failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rewinding"})
}

type announceRequest struct {
	Text     string `json:"text"`
	TargetID string `json:"target_id"`
}

func (a *API) announce(w http.ResponseWriter, r *http.Request) {
	var req announceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	channelID := chi.URLParam(r, "channelID")
	item, err := a.sessions.Announce(r.Context(), channelID, req.Text, req.TargetID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNoSession):
			writeError(w, http.StatusNotFound, "no_session")
		case errors.Is(err, session.ErrEmptyAnnouncement):
			writeError(w, http.StatusBadRequest, "missing_text")
		case errors.Is(err, session.ErrTargetUnavailable):
			writeError(w, http.StatusConflict, "target_unavailable")
		default:
			a.logger.Error().Err(err).Str("channel", channelID).Msg("announce failed")
			writeError(w, http.StatusInternalServerError, "announce_failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": item.ID, "text": item.Announcement.Text})
}

type filtersRequest struct {
	Filters string `json:"filters"`
}

func (a *API) setFilters(w http.ResponseWriter, r *http.Request) {
	var req filtersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	channelID := chi.URLParam(r, "channelID")
	applied, err := a.sessions.ApplyFilters(channelID, req.Filters)
	if err != nil {
		writeError(w, http.StatusNotFound, "no_session")
		return
	}
	// Unknown tokens drop silently; the response shows what actually applies.
	writeJSON(w, http.StatusOK, map[string]string{"filters": applied})
}

func (a *API) clearFilters(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.ClearFilters(chi.URLParam(r, "channelID")); err != nil {
		writeError(w, http.StatusNotFound, "no_session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type announcementsRequest struct {
	Enabled bool `json:"enabled"`
}

func (a *API) setAnnouncements(w http.ResponseWriter, r *http.Request) {
	var req announcementsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	if err := a.sessions.SetAnnouncements(chi.URLParam(r, "channelID"), req.Enabled); err != nil {
		writeError(w, http.StatusNotFound, "no_session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (a *API) searchMedia(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeError(w, http.StatusBadRequest, "missing_query")
		return
	}

	items, err := a.catalog.Search(r.Context(), term)
	if err != nil {
		a.logger.Error().Err(err).Str("term", term).Msg("media search failed")
		writeError(w, http.StatusInternalServerError, "search_failed")
		return
	}

	type result struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Artist string `json:"artist"`
		Album  string `json:"album,omitempty"`
	}
	results := make([]result, 0, len(items))
	for _, item := range items {
		results = append(results, result{ID: item.ID, Title: item.Title, Artist: item.Artist, Album: item.Album})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
