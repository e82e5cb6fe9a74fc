// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package audio

import (
	"bytes"
	"fmt"
)

var (
	// OGG capture pattern: "OggS"
	oggCapturePattern = []byte("OggS")
	// Vorbis identification header begins with \x01vorbis
	vorbisHeader = []byte{0x01, 0x76, 0x6f, 0x72, 0x62, 0x69, 0x73}
	// Opus identification header begins with "OpusHead"
	opusHeader = []byte("OpusHead")
)

const oggPageHeaderSize = 27

// detectOggCodec reads the first Ogg page and looks for a codec identification header.
func detectOggCodec(data []byte) (string, error) {
	if len(data) < oggPageHeaderSize {
		return "", fmt.Errorf("OGG header truncated (%d bytes)", len(data))
	}
	header := data[:oggPageHeaderSize]
	if !bytes.Equal(header[:4], oggCapturePattern) {
		return "", fmt.Errorf("not an OGG stream (got %x, expected %x)", header[:4], oggCapturePattern)
	}

	numSegments := int(header[26])
	tableEnd := oggPageHeaderSize + numSegments
	if len(data) < tableEnd {
		return "", fmt.Errorf("OGG segment table truncated")
	}

	totalSize := 0
	for _, size := range data[oggPageHeaderSize:tableEnd] {
		totalSize += int(size)
	}
	if len(data) < tableEnd+totalSize {
		return "", fmt.Errorf("OGG first page truncated")
	}
	page := data[tableEnd : tableEnd+totalSize]

	switch {
	case bytes.HasPrefix(page, vorbisHeader):
		return "Vorbis", nil
	case bytes.HasPrefix(page, opusHeader):
		return "Opus", nil
	case bytes.Contains(page, []byte("vorbis")):
		return "Vorbis", nil
	case bytes.Contains(page, opusHeader):
		return "Opus", nil
	}
	return "", fmt.Errorf("%w: unknown OGG codec (first page size: %d bytes)", ErrUnsupported, totalSize)
}
