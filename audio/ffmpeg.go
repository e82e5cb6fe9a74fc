// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultFFmpegPath is the binary looked up on PATH when none is configured.
const DefaultFFmpegPath = "ffmpeg"

// ErrTranscoderMissing is returned when the ffmpeg binary cannot be found.
var ErrTranscoderMissing = errors.New("ffmpeg not available")

// CommandRunner runs an external command and returns its standard error output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if _, err := exec.LookPath(name); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscoderMissing, err)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.String(), err
}

// FFmpegFormat decodes containers and codecs the in-process formats cannot
// (MP4/MOV/M4A, Matroska/WebM, AAC) by having ffmpeg extract a mono WAV track.
type FFmpegFormat struct {
	path   string
	rate   int
	runner CommandRunner
}

// NewFFmpegFormat returns a transcoding format using the binary at path.
// A nil runner executes the binary with os/exec.
func NewFFmpegFormat(path string, runner CommandRunner) *FFmpegFormat {
	if path == "" {
		path = DefaultFFmpegPath
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &FFmpegFormat{path: path, rate: TargetSampleRate, runner: runner}
}

func (f *FFmpegFormat) Name() string  { return "FFMPEG" }
func (f *FFmpegFormat) Codec() string { return "PCM" }

func (f *FFmpegFormat) Decode(data []byte) (PCM, error) {
	return f.DecodeContext(context.Background(), data, "")
}

// DecodeContext writes data to a scratch directory, runs ffmpeg on it and decodes
// the resulting WAV. name only supplies the input extension.
func (f *FFmpegFormat) DecodeContext(ctx context.Context, data []byte, name string) (PCM, error) {
	dir, err := os.MkdirTemp("", "transcode-*")
	if err != nil {
		return PCM{}, fmt.Errorf("failed to create scratch dir: %v", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+strings.ToLower(filepath.Ext(name)))
	out := filepath.Join(dir, "audio.wav")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return PCM{}, fmt.Errorf("failed to write input: %v", err)
	}

	stderr, err := f.runner.Run(ctx, f.path,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(f.rate),
		"-f", "wav",
		out,
	)
	if err != nil {
		if ctx.Err() != nil {
			return PCM{}, ctx.Err()
		}
		if msg := lastLine(stderr); msg != "" {
			return PCM{}, fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return PCM{}, fmt.Errorf("ffmpeg: %w", err)
	}

	wav, err := os.ReadFile(out)
	if err != nil {
		return PCM{}, fmt.Errorf("ffmpeg produced no output: %v", err)
	}
	return wavFormat.Decode(wav)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
