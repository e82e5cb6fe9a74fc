// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package transcription

import (
	"context"
	"fmt"
)

// SourceKind tags which variant of Source is populated.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
)

// File is an uploaded media blob.
type File struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type,omitempty"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
}

// Source is what a user submitted: either a File or a URL, never both.
// It must not be mutated once a job has been created from it.
type Source struct {
	Kind SourceKind `json:"kind"`
	File *File      `json:"file,omitempty"`
	URL  string     `json:"url,omitempty"`
}

// FileSource builds a Source from raw bytes.
func FileSource(name, mimeType string, data []byte) Source {
	return Source{
		Kind: SourceFile,
		File: &File{Data: data, MimeType: mimeType, Name: name, Size: int64(len(data))},
	}
}

// URLSource builds a Source for a remote address.
func URLSource(address string) Source {
	return Source{Kind: SourceURL, URL: address}
}

// Label is a short human-readable name for logs and the UI.
func (s Source) Label() string {
	if s.Kind == SourceURL {
		return s.URL
	}
	if s.File != nil {
		return s.File.Name
	}
	return "unknown"
}

// SourceReference is a web page the grounded extraction path drew from.
type SourceReference struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Analysis is the structured metadata returned by an Analyzer.
type Analysis struct {
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"keyPoints"`
	Speakers       []string `json:"speakers"`
	SuggestedTitle string   `json:"suggestedTitle"`
}

// Result is the final transcript of one job. It is built once and never modified.
type Result struct {
	Text             string            `json:"text"`
	Summary          string            `json:"summary"`
	KeyPoints        []string          `json:"key_points"`
	Speakers         []string          `json:"speakers"`
	SuggestedTitle   string            `json:"suggested_title"`
	SourceReferences []SourceReference `json:"source_references,omitempty"`
}

// NewResult merges the literal transcript with its analysis. Speakers keep
// their first-seen order with duplicates dropped.
func NewResult(text string, a Analysis, refs []SourceReference) *Result {
	keyPoints := append([]string(nil), a.KeyPoints...)
	if keyPoints == nil {
		keyPoints = []string{}
	}
	return &Result{
		Text:             text,
		Summary:          a.Summary,
		KeyPoints:        keyPoints,
		Speakers:         uniqueOrdered(a.Speakers),
		SuggestedTitle:   a.SuggestedTitle,
		SourceReferences: append([]SourceReference(nil), refs...),
	}
}

func uniqueOrdered(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Transcriber turns one encoded audio segment into literal text.
// It must only ever receive a single already-encoded segment.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType, startLabel string) (string, error)
}

// Analyzer extracts metadata from a full transcript.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

// LinkExtractor asks a search-grounded service for the transcript behind a URL.
type LinkExtractor interface {
	ExtractFromURL(ctx context.Context, url string) (string, []SourceReference, error)
}

// Fetcher downloads direct media links.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*File, error)
}

// TimeLabel formats a start offset as [MM:SS]. Minutes are not wrapped at 60.
func TimeLabel(offsetSeconds float64) string {
	total := int(offsetSeconds)
	return fmt.Sprintf("[%02d:%02d]", total/60, total%60)
}
