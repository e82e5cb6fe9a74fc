// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"fmt"

	"github.com/Comcast/gaad"
)

// AACFormat recognises raw ADTS AAC. gaad only parses ADTS headers, so
// decoding always reports ErrUnsupported with the stream parameters in the
// message, which routes the stream to the ffmpeg fallback.
type AACFormat struct{}

func (f *AACFormat) Name() string  { return "AAC" }
func (f *AACFormat) Codec() string { return "AAC" }

func (f *AACFormat) Decode(data []byte) (PCM, error) {
	adts, err := gaad.ParseADTS(data)
	if err != nil {
		return PCM{}, fmt.Errorf("%w: failed to parse ADTS: %v", ErrUnsupported, err)
	}

	profile := "AAC"
	if int(adts.Profile) < len(gaad.AACProfileType) {
		profile = gaad.AACProfileType[adts.Profile]
	}
	channels := int(adts.ChannelConfiguration)
	if channels == 0 {
		channels = 1
	}

	return PCM{}, fmt.Errorf("%w: %s %d Hz %d ch needs an external decoder",
		ErrUnsupported, profile, adts.SamplingFrequency, channels)
}
