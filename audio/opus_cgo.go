//go:build cgo

// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"bytes"
	"fmt"

	oggopus "github.com/altager/oggopus"
	"layeh.com/gopus"
)

// OpusFormat decodes Ogg Opus through libopus.
type OpusFormat struct{}

func (f *OpusFormat) Name() string  { return "OPUS" }
func (f *OpusFormat) Codec() string { return "Opus" }

func (f *OpusFormat) Decode(data []byte) (PCM, error) {
	reader, err := oggopus.NewOpusReader(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("failed to create oggopus OpusReader: %v", err)
	}

	channels := int(reader.ChannelCount)
	if channels <= 0 {
		channels = 1
	}
	// libopus only decodes at its own rates; the header's input rate is informational.
	decoder, err := gopus.NewDecoder(opusDecodeRate, channels)
	if err != nil {
		return PCM{}, fmt.Errorf("failed to create Opus decoder: %v", err)
	}

	var pcm []float32
	for {
		packet, err := reader.NextPacket()
		if err != nil {
			break
		}
		output, err := decoder.Decode(packet.PacketData, opusMaxFrameSize, false)
		if err != nil {
			continue
		}
		for _, sample := range output {
			pcm = append(pcm, float32(sample)*pcm16Scale)
		}
	}
	if len(pcm) == 0 {
		return PCM{}, fmt.Errorf("%w: no valid Opus frames decoded", ErrNoAudio)
	}

	return PCM{Samples: pcm, SampleRate: opusDecodeRate, Channels: channels}, nil
}
