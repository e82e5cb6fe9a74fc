// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

// FLACFormat decodes native FLAC streams.
type FLACFormat struct{}

func (f *FLACFormat) Name() string  { return "FLAC" }
func (f *FLACFormat) Codec() string { return "FLAC" }

func (f *FLACFormat) Decode(data []byte) (PCM, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("failed to create FLAC stream: %v", err)
	}

	info := stream.Info
	if info == nil {
		return PCM{}, fmt.Errorf("no StreamInfo found in FLAC stream")
	}
	channels := int(info.NChannels)
	scale := 1.0 / float32(int64(1)<<(info.BitsPerSample-1))

	samples := make([]float32, 0, int(info.NSamples)*channels)
	for {
		fr, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("failed to parse frame: %v", err)
		}
		samples = appendFLACFrame(samples, fr, channels, scale)
	}
	if len(samples) == 0 {
		return PCM{}, ErrNoAudio
	}

	return PCM{
		Samples:    samples,
		SampleRate: int(info.SampleRate),
		Channels:   channels,
	}, nil
}

// appendFLACFrame interleaves the frame's subframes onto dst.
func appendFLACFrame(dst []float32, fr *frame.Frame, channels int, scale float32) []float32 {
	blockSize := int(fr.Header.BlockSize)
	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < channels; ch++ {
			var v int32
			if ch < len(fr.Subframes) && i < len(fr.Subframes[ch].Samples) {
				v = fr.Subframes[ch].Samples[i]
			}
			dst = append(dst, float32(v)*scale)
		}
	}
	return dst
}
