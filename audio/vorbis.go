// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// VorbisFormat decodes Ogg Vorbis.
type VorbisFormat struct{}

func (f *VorbisFormat) Name() string  { return "OGG" }
func (f *VorbisFormat) Codec() string { return "Vorbis" }

func (f *VorbisFormat) Decode(data []byte) (PCM, error) {
	decoder, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("failed to create Vorbis decoder: %v", err)
	}

	var samples []float32
	buffer := make([]float32, 16384)
	for {
		n, err := decoder.Read(buffer)
		samples = append(samples, buffer[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("failed to read OGG data: %v", err)
		}
	}
	if len(samples) == 0 {
		return PCM{}, ErrNoAudio
	}

	return PCM{
		Samples:    samples,
		SampleRate: decoder.SampleRate(),
		Channels:   decoder.Channels(),
	}, nil
}
