/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package transform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FFmpeg implements Gateway by shelling out to ffmpeg/ffprobe.
type FFmpeg struct {
	ffmpegBin  string
	ffprobeBin string
	scratchDir string
	logger     zerolog.Logger
}

// NewFFmpeg creates an exec-based transform gateway.
func NewFFmpeg(ffmpegBin, ffprobeBin, scratchDir string, logger zerolog.Logger) *FFmpeg {
	return &FFmpeg{
		ffmpegBin:  ffmpegBin,
		ffprobeBin: ffprobeBin,
		scratchDir: scratchDir,
		logger:     logger.With().Str("component", "transform").Logger(),
	}
}

// Render encodes input through the given filter chain.
func (f *FFmpeg) Render(ctx context.Context, input, filterChain string, opts RenderOptions) (string, error) {
	output := opts.Output
	if output == "" {
		output = f.ScratchPath(formatOrDefault(opts.Format))
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	args := buildRenderArgs(input, filterChain, output, opts)
	cmd := exec.CommandContext(ctx, f.ffmpegBin, args...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(output)
		f.logger.Warn().Err(err).Str("input", input).Str("filters", filterChain).
			Str("tail", outputTail(out)).Msg("render failed")
		return "", fmt.Errorf("ffmpeg render: %w", err)
	}

	f.logger.Debug().Str("input", input).Str("output", output).
		Str("filters", filterChain).Msg("render complete")
	return output, nil
}

// NormalizeLoudness produces a loudness normalized copy targeting -14 LUFS.
func (f *FFmpeg) NormalizeLoudness(ctx context.Context, input string, opts RenderOptions) (string, error) {
	return f.Render(ctx, input, LoudnormChain, opts)
}

// ProbeDuration measures playable length with ffprobe.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) time.Duration {
	cmd := exec.CommandContext(ctx, f.ffprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		f.logger.Warn().Err(err).Str("path", path).Msg("duration probe failed, using default")
		return DefaultDuration
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || seconds <= 0 {
		f.logger.Warn().Str("path", path).Str("raw", strings.TrimSpace(string(out))).
			Msg("unparseable probe output, using default")
		return DefaultDuration
	}

	return time.Duration(seconds * float64(time.Second))
}

// ScratchPath returns a collision-resistant path in the scratch directory.
func (f *FFmpeg) ScratchPath(format string) string {
	name := fmt.Sprintf("munin-%s.%s", uuid.NewString(), format)
	return filepath.Join(f.scratchDir, name)
}

func buildRenderArgs(input, filterChain, output string, opts RenderOptions) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}

	// Offset and duration are input options so the filter chain only ever
	// sees the trimmed segment. areverse on a full track would reverse the
	// whole thing and an output-side -t would then keep its tail.
	if opts.StartOffset > 0 {
		args = append(args, "-ss", formatSeconds(opts.StartOffset))
	}
	if opts.Duration > 0 {
		args = append(args, "-t", formatSeconds(opts.Duration))
	}
	args = append(args, "-i", input)
	if filterChain != "" {
		args = append(args, "-af", filterChain)
	}
	args = append(args, "-vn", output)
	return args
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func formatOrDefault(format string) string {
	if format == "" {
		return "ogg"
	}
	return format
}

func outputTail(out []byte) string {
	const max = 300
	s := strings.TrimSpace(string(out))
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}
