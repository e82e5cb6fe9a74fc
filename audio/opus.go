//go:build !cgo

// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"bytes"
	"fmt"

	oggopus "github.com/altager/oggopus"
	"github.com/pion/opus"
)

// OpusFormat decodes Ogg Opus with the pure-Go decoder. pion/opus emits
// 20 ms of mono 16-bit PCM at 48 kHz per packet.
type OpusFormat struct{}

func (f *OpusFormat) Name() string  { return "OPUS" }
func (f *OpusFormat) Codec() string { return "Opus" }

func (f *OpusFormat) Decode(data []byte) (PCM, error) {
	reader, err := oggopus.NewOpusReader(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("failed to create oggopus OpusReader: %v", err)
	}

	decoder := opus.NewDecoder()
	const frameSize = 960 // 20ms at 48kHz
	out := make([]byte, frameSize*2)

	var pcm []float32
	for {
		packet, err := reader.NextPacket()
		if err != nil {
			break
		}
		if _, _, err := decoder.Decode(packet.PacketData, out); err != nil {
			continue
		}
		for i := 0; i < frameSize; i++ {
			sample := int16(out[i*2]) | int16(out[i*2+1])<<8
			pcm = append(pcm, float32(sample)*pcm16Scale)
		}
	}
	if len(pcm) == 0 {
		return PCM{}, fmt.Errorf("%w: no valid Opus frames decoded", ErrNoAudio)
	}

	return PCM{Samples: pcm, SampleRate: opusDecodeRate, Channels: 1}, nil
}
