// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package transcription

import (
	"fmt"
	"sort"
	"strings"
)

// Piece is the transcribed text of one segment.
type Piece struct {
	SegmentIndex int
	Text         string
	// Failed marks a placeholder written after every attempt was exhausted.
	Failed bool
}

// Placeholder is the soft-fail text for a segment that could not be transcribed.
func Placeholder(index int, label string, kind ErrorKind) Piece {
	return Piece{
		SegmentIndex: index,
		Text:         fmt.Sprintf("%s [transcription failed: %s]", label, kind),
		Failed:       true,
	}
}

// Assemble joins pieces in segment-index order regardless of the order they were collected in.
func Assemble(pieces []Piece) string {
	sorted := append([]Piece(nil), pieces...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SegmentIndex < sorted[j].SegmentIndex
	})

	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}

// ContentLength counts the non-blank characters contributed by successful pieces.
func ContentLength(pieces []Piece) int {
	n := 0
	for _, p := range pieces {
		if p.Failed {
			continue
		}
		n += len([]rune(strings.TrimSpace(p.Text)))
	}
	return n
}
