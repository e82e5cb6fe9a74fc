// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	// WAVMimeType is the MIME type of EncodeWAV output.
	WAVMimeType = "audio/wav"
	// WAVHeaderSize is the canonical RIFF/fmt/data header length.
	WAVHeaderSize = 44

	wavFormatPCM = 1
)

// EncodeWAV wraps mono samples in a 16-bit PCM WAV container: a 44-byte header
// followed by little-endian samples.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrNoAudio
	}

	ints := make([]int, len(samples))
	for i, s := range samples {
		ints[i] = floatToPCM16(s)
	}

	out := &memWriteSeeker{buf: make([]byte, 0, WAVHeaderSize+2*len(samples))}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write WAV samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalise WAV header: %v", err)
	}
	return out.buf, nil
}

// floatToPCM16 clamps to [-1, 1] and scales asymmetrically so both extremes are representable.
func floatToPCM16(s float32) int {
	switch {
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	}
	if s < 0 {
		return int(s * 0x8000)
	}
	return int(s * 0x7FFF)
}

// memWriteSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to patch sizes.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, len(m.buf), 2*end)
			copy(grown, m.buf)
			m.buf = grown
		}
		m.buf = m.buf[:end]
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memWriteSeeker: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("memWriteSeeker: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
