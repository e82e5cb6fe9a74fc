// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"fmt"
	"math"
)

// Downmix selects how multi-channel audio becomes mono.
type Downmix string

const (
	// DownmixAverage averages every channel.
	DownmixAverage Downmix = "average"
	// DownmixFirst keeps channel 0 only.
	DownmixFirst Downmix = "first"
)

// ParseDownmix validates a configured policy name.
func ParseDownmix(s string) (Downmix, error) {
	switch Downmix(s) {
	case "", DownmixAverage:
		return DownmixAverage, nil
	case DownmixFirst:
		return DownmixFirst, nil
	default:
		return "", fmt.Errorf("unknown downmix policy %q", s)
	}
}

// ToMono collapses interleaved PCM to a single channel.
func ToMono(pcm PCM, policy Downmix) []float32 {
	channels := pcm.Channels
	if channels <= 1 {
		return pcm.Samples
	}

	mono := make([]float32, pcm.Frames())
	for i := range mono {
		frame := pcm.Samples[i*channels : (i+1)*channels]
		if policy == DownmixFirst {
			mono[i] = frame[0]
			continue
		}
		sum := float32(0)
		for _, s := range frame {
			sum += s
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

const (
	// sincZeroCrossings is the kernel half-width in zero crossings of the low-pass filter.
	sincZeroCrossings = 16
	// maxPhases bounds the precomputed polyphase table.
	maxPhases = 4096
)

// Resample converts mono samples from srcRate to dstRate with a Blackman-windowed
// sinc low-pass filter at min(srcRate, dstRate)/2. Output is a pure function of input.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return append([]float32(nil), samples...)
	}

	g := gcd(srcRate, dstRate)
	up, down := dstRate/g, srcRate/g
	outLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	out := make([]float32, outLen)

	cutoff := math.Min(1, float64(dstRate)/float64(srcRate))
	halfWidth := float64(sincZeroCrossings) / cutoff
	radius := int(math.Ceil(halfWidth))

	var table [][]float64
	if up <= maxPhases {
		table = make([][]float64, up)
		for p := range table {
			table[p] = kernelRow(float64(p)/float64(up), radius, cutoff, halfWidth)
		}
	}

	for i := range out {
		pos := int64(i) * int64(down)
		base := int(pos / int64(up))
		phase := int(pos % int64(up))

		var row []float64
		if table != nil {
			row = table[phase]
		} else {
			row = kernelRow(float64(phase)/float64(up), radius, cutoff, halfWidth)
		}

		var acc, wsum float64
		for j := -radius; j <= radius; j++ {
			k := base + j
			if k < 0 || k >= len(samples) {
				continue
			}
			w := row[j+radius]
			acc += w * float64(samples[k])
			wsum += w
		}
		if wsum != 0 {
			out[i] = float32(acc / wsum)
		}
	}
	return out
}

// kernelRow holds filter taps for source offsets -radius..radius relative to the
// integer part of the output position, given its fractional part frac.
func kernelRow(frac float64, radius int, cutoff, halfWidth float64) []float64 {
	row := make([]float64, 2*radius+1)
	for j := -radius; j <= radius; j++ {
		d := frac - float64(j)
		if math.Abs(d) >= halfWidth {
			continue
		}
		row[j+radius] = cutoff * sinc(cutoff*d) * blackman(d/halfWidth)
	}
	return row
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackman is the Blackman window over t in [-1, 1].
func blackman(t float64) float64 {
	return 0.42 + 0.5*math.Cos(math.Pi*t) + 0.08*math.Cos(2*math.Pi*t)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
