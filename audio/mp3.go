// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/amanitaverna/go-mp3"
)

// MP3Format decodes MPEG-1/2 Layer III.
type MP3Format struct{}

func (f *MP3Format) Name() string  { return "MP3" }
func (f *MP3Format) Codec() string { return "MP3" }

// Decode returns stereo PCM; the decoder always emits two 16-bit little-endian channels.
func (f *MP3Format) Decode(data []byte) (PCM, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("failed to create MP3 decoder: %v", err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return PCM{}, fmt.Errorf("failed to read MP3 data: %v", err)
	}
	if len(raw) < 4 {
		return PCM{}, ErrNoAudio
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		sample := int16(raw[2*i]) | int16(raw[2*i+1])<<8
		samples[i] = float32(sample) * pcm16Scale
	}

	return PCM{
		Samples:    samples,
		SampleRate: decoder.SampleRate(),
		Channels:   2,
	}, nil
}
