// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package gemini implements the transcription, analysis and link extraction
// clients on the Google Gen AI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/VA7DBI/transcribeQueue/transcription"
	"google.golang.org/genai"
)

const (
	DefaultModel         = "gemini-2.5-flash"
	DefaultAnalysisModel = "gemini-2.5-flash"
)

// Config selects models and sampling for the client.
type Config struct {
	APIKey        string
	Model         string
	AnalysisModel string
	Temperature   float32
}

// generator is the part of genai.Models the client calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client talks to Gemini. It implements transcription.Transcriber,
// transcription.Analyzer and transcription.LinkExtractor.
type Client struct {
	models        generator
	model         string
	analysisModel string
	temperature   float32
}

var (
	_ transcription.Transcriber   = (*Client)(nil)
	_ transcription.Analyzer      = (*Client)(nil)
	_ transcription.LinkExtractor = (*Client)(nil)
)

// New creates a client for the Gemini API backend.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %v", err)
	}
	return newClient(c.Models, cfg), nil
}

func newClient(models generator, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.AnalysisModel == "" {
		cfg.AnalysisModel = DefaultAnalysisModel
	}
	return &Client{
		models:        models,
		model:         cfg.Model,
		analysisModel: cfg.AnalysisModel,
		temperature:   cfg.Temperature,
	}
}

// Transcribe sends one encoded segment inline and returns its literal transcript.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType, startLabel string) (string, error) {
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: audio, MIMEType: mimeType}},
			{Text: transcribePrompt(startLabel)},
		},
	}}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
	})
	if err != nil {
		return "", classify(err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Analyze asks for structured metadata and decodes it against a JSON schema.
func (c *Client) Analyze(ctx context.Context, text string) (transcription.Analysis, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: analysisPrompt + "\n\n" + text}},
	}}
	resp, err := c.models.GenerateContent(ctx, c.analysisModel, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(c.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema,
	})
	if err != nil {
		return transcription.Analysis{}, classify(err)
	}
	raw, err := responseText(resp)
	if err != nil {
		return transcription.Analysis{}, err
	}
	return parseAnalysis(raw)
}

// ExtractFromURL has the model read the page or video behind url with Google Search
// grounding and returns the transcript plus the pages it cited.
func (c *Client) ExtractFromURL(ctx context.Context, url string) (string, []transcription.SourceReference, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: extractPrompt(url)}},
	}}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
		Tools:       []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return "", nil, classify(err)
	}
	text, err := responseText(resp)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(text), groundingReferences(resp), nil
}

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary":        {Type: genai.TypeString},
		"keyPoints":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"speakers":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"suggestedTitle": {Type: genai.TypeString},
	},
	Required: []string{"summary", "keyPoints", "speakers", "suggestedTitle"},
}

func parseAnalysis(raw string) (transcription.Analysis, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```"), "```")

	var a transcription.Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return transcription.Analysis{}, fmt.Errorf("%w: analysis is not valid JSON: %v", transcription.ErrService, err)
	}
	return a, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", fmt.Errorf("%w: response has no candidates", transcription.ErrService)
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("%w: candidate has no content (finish reason %q)", transcription.ErrService, cand.FinishReason)
	}
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

func groundingReferences(resp *genai.GenerateContentResponse) []transcription.SourceReference {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var refs []transcription.SourceReference
	seen := make(map[string]bool)
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		refs = append(refs, transcription.SourceReference{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return refs
}

// classify maps SDK errors onto the transcription taxonomy.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return fmt.Errorf("%w: %v", transcription.ErrNetwork, err)
	}

	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", transcription.ErrRateLimited, err)
	case code >= 500:
		return fmt.Errorf("%w: %v", transcription.ErrNetwork, err)
	default:
		return fmt.Errorf("%w: %v", transcription.ErrService, err)
	}
}
