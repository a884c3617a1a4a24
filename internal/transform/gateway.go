/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package transform wraps the external encode/normalize tool behind a small
// gateway interface so the session engine never shells out directly.
package transform

import (
	"context"
	"time"
)

// DefaultDuration is reported when a duration probe fails. Callers get a
// usable value instead of an error.
const DefaultDuration = 180 * time.Second

// LoudnormChain is the single-pass loudness normalization applied to every
// rendered artifact, targeting -14 LUFS.
const LoudnormChain = "loudnorm=I=-14:TP=-1.0:LRA=11"

// RenderOptions bound and shape a render.
type RenderOptions struct {
	// Output is the destination path. Empty generates a scratch path.
	Output string
	// StartOffset trims the input before filtering.
	StartOffset time.Duration
	// Duration limits how much input is read before filtering. Zero reads
	// to the end.
	Duration time.Duration
	// Format selects the output container, defaulting to "ogg".
	Format string
}

// Gateway is the boundary to the encode/transform tool.
type Gateway interface {
	// Render encodes input through the given ffmpeg filter chain. An empty
	// chain re-encodes without filtering.
	Render(ctx context.Context, input, filterChain string, opts RenderOptions) (string, error)

	// NormalizeLoudness produces a loudness normalized copy of input.
	NormalizeLoudness(ctx context.Context, input string, opts RenderOptions) (string, error)

	// ProbeDuration measures playable length, returning DefaultDuration when
	// the probe fails.
	ProbeDuration(ctx context.Context, path string) time.Duration
}
