// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// TargetSampleRate is the rate every segment is normalised to.
	TargetSampleRate = 16000

	pcm16Scale = 1.0 / 32768.0
)

var (
	// ErrUnsupported is returned for containers and codecs we cannot decode in-process.
	// NormalizeContext hands such input to ffmpeg when a fallback is configured.
	ErrUnsupported = errors.New("unsupported media format")
	// ErrNoAudio is returned when a stream decodes to zero samples.
	ErrNoAudio = errors.New("no audio samples decoded")
)

// PCM is decoded audio at its native rate. Samples are interleaved by channel
// and scaled to [-1, 1].
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of samples per channel.
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration returns the length in seconds.
func (p PCM) Duration() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(p.Frames()) / float64(p.SampleRate)
}

// Metadata describes a decoded input.
type Metadata struct {
	Format       string  `json:"format"`
	Codec        string  `json:"codec"`
	SampleRate   int     `json:"sample_rate"`
	Channels     int     `json:"channels"`
	Duration     float64 `json:"duration_seconds"`
	OriginalSize int64   `json:"original_size_bytes"`
}

// Format decodes one container/codec pair.
type Format interface {
	Name() string
	Codec() string
	Decode(data []byte) (PCM, error)
}

var (
	wavFormat    Format = &WAVFormat{}
	mp3Format    Format = &MP3Format{}
	vorbisFormat Format = &VorbisFormat{}
	opusFormat   Format = &OpusFormat{}
	flacFormat   Format = &FLACFormat{}
	aacFormat    Format = &AACFormat{}
)

var formatsByExt = map[string]Format{
	".wav":  wavFormat,
	".wave": wavFormat,
	".mp3":  mp3Format,
	".ogg":  vorbisFormat,
	".oga":  vorbisFormat,
	".opus": opusFormat,
	".flac": flacFormat,
	".aac":  aacFormat,
}

var nativeAudioExt = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".aac": true,
	".ogg": true, ".flac": true, ".webm": true,
}

// Detect picks a decoder for data, preferring magic bytes over the file name and MIME type.
func Detect(data []byte, name, mimeType string) (Format, error) {
	switch {
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return wavFormat, nil
	case bytes.HasPrefix(data, oggCapturePattern):
		codec, err := detectOggCodec(data)
		if err != nil {
			return nil, err
		}
		if codec == "Opus" {
			return opusFormat, nil
		}
		return vorbisFormat, nil
	case bytes.HasPrefix(data, []byte("fLaC")):
		return flacFormat, nil
	case bytes.HasPrefix(data, []byte("ID3")):
		return mp3Format, nil
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// ADTS frames carry layer bits 00, MPEG audio frames never do.
		if data[1]&0x06 == 0 {
			return aacFormat, nil
		}
		return mp3Format, nil
	case len(data) >= 8 && bytes.Equal(data[4:8], []byte("ftyp")):
		return nil, fmt.Errorf("%w: MP4/M4A container", ErrUnsupported)
	case len(data) >= 4 && bytes.Equal(data[:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return nil, fmt.Errorf("%w: Matroska/WebM container", ErrUnsupported)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := formatsByExt[ext]; ok {
		return f, nil
	}
	switch strings.ToLower(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return wavFormat, nil
	case "audio/mpeg", "audio/mp3":
		return mp3Format, nil
	case "audio/flac", "audio/x-flac":
		return flacFormat, nil
	}
	return nil, fmt.Errorf("%w: %q (%s)", ErrUnsupported, name, mimeType)
}

// IsNativeAudio reports whether the upload is already in an encoding the
// transcription service accepts as-is.
func IsNativeAudio(name, mimeType string) bool {
	mt := strings.ToLower(mimeType)
	if strings.Contains(mt, "webm") || strings.HasPrefix(mt, "audio/") {
		return true
	}
	return nativeAudioExt[strings.ToLower(filepath.Ext(name))]
}

// Normalize decodes data with the in-process formats only and returns mono samples at targetRate.
func Normalize(data []byte, name, mimeType string, targetRate int, policy Downmix) ([]float32, Metadata, error) {
	return NormalizeContext(context.Background(), data, name, mimeType, targetRate, policy, nil)
}

// NormalizeContext is Normalize with a transcoding fallback. Input that Detect or
// the detected format reports as ErrUnsupported is handed to fallback when it is
// non-nil.
func NormalizeContext(ctx context.Context, data []byte, name, mimeType string, targetRate int, policy Downmix, fallback *FFmpegFormat) ([]float32, Metadata, error) {
	var pcm PCM
	format, err := Detect(data, name, mimeType)
	if err == nil {
		pcm, err = format.Decode(data)
		if err != nil {
			err = fmt.Errorf("%s: %w", format.Name(), err)
		}
	}
	if errors.Is(err, ErrUnsupported) && fallback != nil {
		unsupported := err
		format = fallback
		pcm, err = fallback.DecodeContext(ctx, data, name)
		if err != nil && !errors.Is(err, ErrNoAudio) && ctx.Err() == nil {
			err = fmt.Errorf("%v; %s: %w", unsupported, fallback.Name(), err)
		}
	}
	if err != nil {
		return nil, Metadata{}, err
	}

	meta := Metadata{
		Format:       format.Name(),
		Codec:        format.Codec(),
		SampleRate:   pcm.SampleRate,
		Channels:     pcm.Channels,
		Duration:     pcm.Duration(),
		OriginalSize: int64(len(data)),
	}

	mono := ToMono(pcm, policy)
	return Resample(mono, pcm.SampleRate, targetRate), meta, nil
}

const (
	opusDecodeRate = 48000
	// 120 ms at 48 kHz, the longest Opus packet.
	opusMaxFrameSize = 5760
)
