/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LineWriter produces the short spoken line for a transition or request.
type LineWriter interface {
	TransitionLine(ctx context.Context, previous, next string) (string, error)
	CustomLine(ctx context.Context, prompt string) (string, error)
}

// HTTPLineWriter asks an external text generation service for lines.
type HTTPLineWriter struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPLineWriter creates a line writer against baseURL.
func NewHTTPLineWriter(baseURL string, logger zerolog.Logger) *HTTPLineWriter {
	return &HTTPLineWriter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		logger:  logger.With().Str("component", "linegen").Logger(),
	}
}

type lineRequest struct {
	Prompt string `json:"prompt"`
}

type lineResponse struct {
	Line string `json:"line"`
}

// TransitionLine generates a one sentence handoff between two tracks.
func (w *HTTPLineWriter) TransitionLine(ctx context.Context, previous, next string) (string, error) {
	prompt := fmt.Sprintf("Write one short radio DJ line transitioning from %q to %q.", previous, next)
	return w.generate(ctx, prompt)
}

// CustomLine generates a line for a free-text request.
func (w *HTTPLineWriter) CustomLine(ctx context.Context, prompt string) (string, error) {
	return w.generate(ctx, prompt)
}

func (w *HTTPLineWriter) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(lineRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("encode line request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build line request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("line request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("line service returned %d", resp.StatusCode)
	}

	var parsed lineResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode line response: %w", err)
	}

	line := strings.TrimSpace(parsed.Line)
	if line == "" {
		return "", fmt.Errorf("line service returned empty line")
	}
	return line, nil
}

// TemplateLineWriter is the local fallback when no generation service is
// configured. Lines come from a fixed rotation.
type TemplateLineWriter struct{}

var transitionTemplates = []string{
	"That was %s. Up next, %s.",
	"You just heard %s. Keeping it rolling with %s.",
	"%s there for you. Now, here comes %s.",
	"After %s, time for %s.",
}

// TransitionLine formats a canned transition.
func (TemplateLineWriter) TransitionLine(_ context.Context, previous, next string) (string, error) {
	tmpl := transitionTemplates[rand.Intn(len(transitionTemplates))]
	return fmt.Sprintf(tmpl, previous, next), nil
}

// CustomLine echoes the prompt; the caller supplies the finished text.
func (TemplateLineWriter) CustomLine(_ context.Context, prompt string) (string, error) {
	line := strings.TrimSpace(prompt)
	if line == "" {
		return "", fmt.Errorf("empty announcement text")
	}
	return line, nil
}
