// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/VA7DBI/transcribeQueue/transcription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type generateCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeGenerator struct {
	calls []generateCall
	resp  *genai.GenerateContentResponse
	err   error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls = append(f.calls, generateCall{model: model, contents: contents, config: config})
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestTranscribe(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("[01:00] Speaker 1: hello ", "there\n")}
	c := newClient(gen, Config{Model: "test-model"})

	text, err := c.Transcribe(context.Background(), []byte("RIFFdata"), "audio/wav", "[01:00]")
	require.NoError(t, err)
	assert.Equal(t, "[01:00] Speaker 1: hello there", text)

	require.Len(t, gen.calls, 1)
	call := gen.calls[0]
	assert.Equal(t, "test-model", call.model)
	require.Len(t, call.contents, 1)
	parts := call.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "audio/wav", parts[0].InlineData.MIMEType)
	assert.Equal(t, []byte("RIFFdata"), parts[0].InlineData.Data)
	assert.Contains(t, parts[1].Text, "[01:00]")
}

func TestTranscribe_NoCandidates(t *testing.T) {
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{}}
	c := newClient(gen, Config{})

	_, err := c.Transcribe(context.Background(), []byte("x"), "audio/wav", "[00:00]")
	assert.ErrorIs(t, err, transcription.ErrService)
}

func TestAnalyze(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"summary":"s","keyPoints":["a","b"],"speakers":["Ann","Bob"],"suggestedTitle":"T"}`)}
	c := newClient(gen, Config{AnalysisModel: "analysis-model"})

	a, err := c.Analyze(context.Background(), "full transcript")
	require.NoError(t, err)
	assert.Equal(t, transcription.Analysis{
		Summary:        "s",
		KeyPoints:      []string{"a", "b"},
		Speakers:       []string{"Ann", "Bob"},
		SuggestedTitle: "T",
	}, a)

	call := gen.calls[0]
	assert.Equal(t, "analysis-model", call.model)
	assert.Equal(t, "application/json", call.config.ResponseMIMEType)
	require.NotNil(t, call.config.ResponseSchema)
	assert.ElementsMatch(t, []string{"summary", "keyPoints", "speakers", "suggestedTitle"}, call.config.ResponseSchema.Required)
	assert.Contains(t, call.contents[0].Parts[0].Text, "full transcript")
}

func TestAnalyze_FencedJSON(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("```json\n{\"summary\":\"s\",\"keyPoints\":[],\"speakers\":[],\"suggestedTitle\":\"T\"}\n```")}
	c := newClient(gen, Config{})

	a, err := c.Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "T", a.SuggestedTitle)
}

func TestAnalyze_MalformedJSON(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"summary": "unterminated`)}
	c := newClient(gen, Config{})

	_, err := c.Analyze(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, transcription.ErrService)
	assert.False(t, transcription.IsTransient(err))
}

func TestExtractFromURL(t *testing.T) {
	resp := textResponse("[00:00] welcome to the show")
	resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "A"}},
			{Web: &genai.GroundingChunkWeb{URI: "https://a.example", Title: "A again"}},
			{Web: &genai.GroundingChunkWeb{URI: "https://b.example", Title: "B"}},
			{},
		},
	}
	gen := &fakeGenerator{resp: resp}
	c := newClient(gen, Config{})

	text, refs, err := c.ExtractFromURL(context.Background(), "https://youtu.be/xyz")
	require.NoError(t, err)
	assert.Equal(t, "[00:00] welcome to the show", text)
	assert.Equal(t, []transcription.SourceReference{
		{URI: "https://a.example", Title: "A"},
		{URI: "https://b.example", Title: "B"},
	}, refs)

	config := gen.calls[0].config
	require.Len(t, config.Tools, 1)
	assert.NotNil(t, config.Tools[0].GoogleSearch)
	assert.Contains(t, gen.calls[0].contents[0].Parts[0].Text, "https://youtu.be/xyz")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want transcription.ErrorKind
	}{
		{"quota", genai.APIError{Code: 429, Message: "RESOURCE_EXHAUSTED"}, transcription.KindRateLimited},
		{"unavailable", genai.APIError{Code: 503, Message: "overloaded"}, transcription.KindNetwork},
		{"bad request", genai.APIError{Code: 400, Message: "invalid argument"}, transcription.KindService},
		{"transport", errors.New("connection reset by peer"), transcription.KindNetwork},
		{"deadline", context.DeadlineExceeded, transcription.KindNetwork},
		{"cancelled", context.Canceled, transcription.KindCancelled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, transcription.KindOf(classify(tc.err)))
		})
	}
}

func TestTranscribe_RateLimited(t *testing.T) {
	gen := &fakeGenerator{err: genai.APIError{Code: 429, Message: "quota"}}
	c := newClient(gen, Config{})

	_, err := c.Transcribe(context.Background(), []byte("x"), "audio/wav", "[00:00]")
	assert.ErrorIs(t, err, transcription.ErrRateLimited)
	assert.True(t, transcription.IsTransient(err))
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.Error(t, err)
}
