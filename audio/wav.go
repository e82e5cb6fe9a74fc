// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"bytes"
	"fmt"

	"github.com/go-audio/wav"
)

// WAVFormat decodes RIFF/WAVE PCM.
type WAVFormat struct{}

func (f *WAVFormat) Name() string  { return "WAV" }
func (f *WAVFormat) Codec() string { return "PCM" }

// Decode reads the whole PCM payload and scales it by the file's bit depth.
func (f *WAVFormat) Decode(data []byte) (PCM, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return PCM{}, fmt.Errorf("invalid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return PCM{}, fmt.Errorf("failed to read PCM buffer: %v", err)
	}
	if len(buf.Data) == 0 {
		return PCM{}, ErrNoAudio
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	var scale float32
	if bitDepth == 8 {
		// 8-bit WAV is unsigned; go-audio leaves it offset by 128.
		scale = 1.0 / 128.0
	} else {
		scale = 1.0 / float32(int64(1)<<(bitDepth-1))
	}

	samples := make([]float32, len(buf.Data))
	for i, sample := range buf.Data {
		if bitDepth == 8 {
			sample -= 128
		}
		samples[i] = float32(sample) * scale
	}

	format := decoder.Format()
	return PCM{
		Samples:    samples,
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
	}, nil
}
