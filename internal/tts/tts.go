/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package tts integrates the external speech synthesis and line generation
// collaborators used for spoken announcements.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/munin_radio/internal/transform"
)

// Synthesizer converts text into a playable audio artifact with a measured
// duration. A failed synthesis returns an error; callers skip the announcement.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (path string, duration time.Duration, err error)
}

// HTTPSynthesizer calls an HTTP text-to-speech service and stores the result
// in the scratch directory.
type HTTPSynthesizer struct {
	baseURL    string
	scratchDir string
	client     *http.Client
	gateway    transform.Gateway
	logger     zerolog.Logger
}

// NewHTTPSynthesizer creates a synthesizer against baseURL. The gateway is
// used to probe the measured duration of the produced clip.
func NewHTTPSynthesizer(baseURL, scratchDir string, gateway transform.Gateway, logger zerolog.Logger) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		baseURL:    baseURL,
		scratchDir: scratchDir,
		client:     &http.Client{Timeout: 30 * time.Second},
		gateway:    gateway,
		logger:     logger.With().Str("component", "tts").Logger(),
	}
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

// Synthesize posts text to the service and writes the returned audio to a
// scratch file.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) (string, time.Duration, error) {
	if s.baseURL == "" {
		return "", 0, fmt.Errorf("tts service not configured")
	}

	body, err := json.Marshal(synthesizeRequest{Text: text})
	if err != nil {
		return "", 0, fmt.Errorf("encode tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/synthesize", bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("tts service returned %d", resp.StatusCode)
	}

	path := filepath.Join(s.scratchDir, fmt.Sprintf("munin-tts-%s.wav", uuid.NewString()))
	if err := os.MkdirAll(s.scratchDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create scratch dir: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create tts artifact: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", 0, fmt.Errorf("write tts artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("close tts artifact: %w", err)
	}

	duration := s.gateway.ProbeDuration(ctx, path)
	s.logger.Debug().Str("path", path).Dur("duration", duration).Msg("synthesized announcement")
	return path, duration, nil
}
