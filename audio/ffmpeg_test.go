// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner stands in for ffmpeg: it records the call and writes wav to the output path.
type fakeRunner struct {
	name  string
	args  []string
	input []byte
	wav   []byte
	err   error
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	r.name = name
	r.args = args
	for i, arg := range args {
		if arg == "-i" && i+1 < len(args) {
			r.input, _ = os.ReadFile(args[i+1])
		}
	}
	if r.err != nil {
		return "ffmpeg version n6\ninput.mp4: Invalid data found when processing input\n", r.err
	}
	return "", os.WriteFile(args[len(args)-1], r.wav, 0o600)
}

var mp4Header = []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")

func TestNormalizeContext_TranscodesContainers(t *testing.T) {
	wav, err := EncodeWAV(make([]float32, TargetSampleRate/2), TargetSampleRate)
	require.NoError(t, err)

	cases := []struct {
		name string
		data []byte
		file string
		mime string
		ext  string
	}{
		{"mp4", mp4Header, "meeting.mp4", "video/mp4", ".mp4"},
		{"webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01, 0x02}, "clip.webm", "video/webm", ".webm"},
		{"adts", []byte{0xFF, 0xF1, 0x50, 0x80, 0x01, 0x7F, 0xFC}, "voice.aac", "audio/aac", ".aac"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &fakeRunner{wav: wav}
			fallback := NewFFmpegFormat("", runner)

			mono, meta, err := NormalizeContext(context.Background(), tc.data, tc.file, tc.mime, TargetSampleRate, DownmixAverage, fallback)
			require.NoError(t, err)
			assert.Len(t, mono, TargetSampleRate/2)
			assert.Equal(t, "FFMPEG", meta.Format)
			assert.InDelta(t, 0.5, meta.Duration, 0.001)
			assert.Equal(t, int64(len(tc.data)), meta.OriginalSize)

			assert.Equal(t, DefaultFFmpegPath, runner.name)
			assert.Equal(t, tc.data, runner.input)
			assert.Contains(t, runner.args, "-vn")
			assert.Subset(t, runner.args, []string{"-ac", "1", "-ar", "16000", "-f", "wav"})
			for i, arg := range runner.args {
				if arg == "-i" {
					assert.Equal(t, "input"+tc.ext, filepath.Base(runner.args[i+1]))
				}
			}
		})
	}
}

func TestNormalizeContext_WithoutFallback(t *testing.T) {
	_, _, err := NormalizeContext(context.Background(), mp4Header, "meeting.mp4", "video/mp4", TargetSampleRate, DownmixAverage, nil)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestNormalizeContext_NativeFormatsSkipTranscoder(t *testing.T) {
	wav, err := EncodeWAV([]float32{0.1, 0.2, 0.3}, TargetSampleRate)
	require.NoError(t, err)
	runner := &fakeRunner{err: errors.New("must not run")}

	mono, meta, err := NormalizeContext(context.Background(), wav, "in.wav", "audio/wav", TargetSampleRate, DownmixAverage, NewFFmpegFormat("", runner))
	require.NoError(t, err)
	assert.Len(t, mono, 3)
	assert.Equal(t, "WAV", meta.Format)
	assert.Empty(t, runner.name)
}

func TestNormalizeContext_TranscoderFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}

	_, _, err := NormalizeContext(context.Background(), mp4Header, "meeting.mp4", "video/mp4", TargetSampleRate, DownmixAverage, NewFFmpegFormat("", runner))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MP4/M4A container")
	assert.Contains(t, err.Error(), "Invalid data found when processing input")
	assert.NotContains(t, err.Error(), "ffmpeg version")
}

func TestFFmpegFormat_MissingBinary(t *testing.T) {
	f := NewFFmpegFormat(filepath.Join(t.TempDir(), "no-such-ffmpeg"), nil)

	_, err := f.DecodeContext(context.Background(), mp4Header, "meeting.mp4")
	assert.True(t, errors.Is(err, ErrTranscoderMissing))
}

func TestFFmpegFormat_RealBinary(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found on PATH")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "tone.m4a")
	gen := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=1:sample_rate=44100",
		"-ac", "2", "-c:a", "aac", src)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("ffmpeg cannot generate an AAC fixture: %v %s", err, out)
	}
	data, err := os.ReadFile(src)
	require.NoError(t, err)

	_, err = Detect(data, "tone.m4a", "audio/mp4")
	require.True(t, errors.Is(err, ErrUnsupported))

	mono, meta, err := NormalizeContext(context.Background(), data, "tone.m4a", "audio/mp4", TargetSampleRate, DownmixAverage, NewFFmpegFormat("", nil))
	require.NoError(t, err)
	assert.Equal(t, "FFMPEG", meta.Format)
	assert.Equal(t, 1, meta.Channels)
	assert.Equal(t, TargetSampleRate, meta.SampleRate)
	assert.InDelta(t, 1.0, meta.Duration, 0.1)
	assert.InDelta(t, TargetSampleRate, len(mono), TargetSampleRate/10)
}
