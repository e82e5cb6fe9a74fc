// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"fmt"
	"iter"
	"math"
)

// Segment is a fixed-duration slice of a mono recording. Samples alias the
// source buffer and must not be modified.
type Segment struct {
	Index              int
	StartOffsetSeconds float64
	Samples            []float32
	SampleRate         int
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Segmenter splits mono audio into consecutive segments of chunkSeconds, the last one
// possibly shorter. Segment i covers [i*C, min((i+1)*C, D)).
type Segmenter struct {
	samples      []float32
	rate         int
	chunkSeconds float64
	chunkSamples int
}

// NewSegmenter validates the parameters. An empty buffer is allowed and yields no segments.
func NewSegmenter(samples []float32, sampleRate int, chunkSeconds float64) (*Segmenter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if chunkSeconds <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", chunkSeconds)
	}
	chunkSamples := int(math.Round(chunkSeconds * float64(sampleRate)))
	if chunkSamples < 1 {
		return nil, fmt.Errorf("chunk duration %v is shorter than one sample", chunkSeconds)
	}
	return &Segmenter{
		samples:      samples,
		rate:         sampleRate,
		chunkSeconds: chunkSeconds,
		chunkSamples: chunkSamples,
	}, nil
}

// Duration is the total length D in seconds.
func (s *Segmenter) Duration() float64 {
	return float64(len(s.samples)) / float64(s.rate)
}

// Count is ceil(D / C).
func (s *Segmenter) Count() int {
	return (len(s.samples) + s.chunkSamples - 1) / s.chunkSamples
}

// Segment returns segment i, which must be in [0, Count()).
func (s *Segmenter) Segment(i int) Segment {
	lo := i * s.chunkSamples
	hi := min(lo+s.chunkSamples, len(s.samples))
	return Segment{
		Index:              i,
		StartOffsetSeconds: float64(i) * s.chunkSeconds,
		Samples:            s.samples[lo:hi:hi],
		SampleRate:         s.rate,
	}
}

// All yields every segment in index order. Each call starts from the beginning.
func (s *Segmenter) All() iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		n := s.Count()
		for i := 0; i < n; i++ {
			if !yield(s.Segment(i)) {
				return
			}
		}
	}
}
