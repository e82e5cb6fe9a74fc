// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sine(freq float64, rate, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestResample_Length(t *testing.T) {
	cases := []struct{ src, dst, n, want int }{
		{44100, 16000, 44100, 16000},
		{48000, 16000, 4800, 1600},
		{8000, 16000, 800, 1600},
		{22050, 16000, 2205, 1600},
	}
	for _, tc := range cases {
		out := Resample(make([]float32, tc.n), tc.src, tc.dst)
		assert.Len(t, out, tc.want, "%d -> %d", tc.src, tc.dst)
	}
}

func TestResample_SameRateCopies(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 16000, 16000)
	assert.Equal(t, in, out)
	out[0] = 1
	assert.Equal(t, float32(0.1), in[0])
}

func TestResample_Deterministic(t *testing.T) {
	in := sine(440, 44100, 44100)
	a := Resample(in, 44100, 16000)
	b := Resample(in, 44100, 16000)
	assert.Equal(t, a, b)
}

func TestResample_DCGain(t *testing.T) {
	in := make([]float32, 48000)
	for i := range in {
		in[i] = 0.5
	}
	out := Resample(in, 48000, 16000)
	// away from the edges a constant signal stays constant
	for _, s := range out[100 : len(out)-100] {
		assert.InDelta(t, 0.5, s, 1e-3)
	}
}

func TestResample_PreservesLowTone(t *testing.T) {
	in := sine(440, 48000, 48000)
	out := Resample(in, 48000, 16000)
	var peak float64
	for _, s := range out[200 : len(out)-200] {
		peak = math.Max(peak, math.Abs(float64(s)))
	}
	assert.InDelta(t, 0.5, peak, 0.02)
}

func TestToMono(t *testing.T) {
	pcm := PCM{Samples: []float32{1, 0, 0.5, -0.5}, SampleRate: 8000, Channels: 2}
	assert.Equal(t, []float32{0.5, 0}, ToMono(pcm, DownmixAverage))
	assert.Equal(t, []float32{1, 0.5}, ToMono(pcm, DownmixFirst))

	mono := PCM{Samples: []float32{0.1, 0.2}, SampleRate: 8000, Channels: 1}
	assert.Equal(t, []float32{0.1, 0.2}, ToMono(mono, DownmixAverage))
}

func TestParseDownmix(t *testing.T) {
	p, err := ParseDownmix("")
	assert.NoError(t, err)
	assert.Equal(t, DownmixAverage, p)

	p, err = ParseDownmix("first")
	assert.NoError(t, err)
	assert.Equal(t, DownmixFirst, p)

	_, err = ParseDownmix("loudest")
	assert.Error(t, err)
}
