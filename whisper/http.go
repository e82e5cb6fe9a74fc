// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package whisper implements transcription.Transcriber on Whisper models, either
// behind an HTTP endpoint or loaded locally through whisper.cpp.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/VA7DBI/transcribeQueue/transcription"
)

// HTTPConfig describes a remote Whisper endpoint. FileField is "file" for
// OpenAI-compatible APIs and "audio" for servers that name the upload field that way.
type HTTPConfig struct {
	URL       string
	APIKey    string
	Model     string
	Language  string
	FileField string
	Timeout   time.Duration
}

// HTTPBackend posts each segment as multipart form data.
type HTTPBackend struct {
	cfg    HTTPConfig
	client *http.Client
}

var _ transcription.Transcriber = (*HTTPBackend)(nil)

type transcribeResponse struct {
	Text string `json:"text"`
}

// NewHTTPBackend validates cfg and returns a backend.
func NewHTTPBackend(cfg HTTPConfig) (*HTTPBackend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("whisper URL is not set")
	}
	if cfg.FileField == "" {
		cfg.FileField = "file"
	}
	return &HTTPBackend{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Transcribe uploads one segment. Whisper returns no timestamps, so the text is
// prefixed with the segment's start label.
func (b *HTTPBackend) Transcribe(ctx context.Context, audio []byte, mimeType, startLabel string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if b.cfg.Model != "" {
		if err := mw.WriteField("model", b.cfg.Model); err != nil {
			return "", err
		}
	}
	if b.cfg.Language != "" {
		if err := mw.WriteField("language", b.cfg.Language); err != nil {
			return "", err
		}
	}
	fw, err := mw.CreateFormFile(b.cfg.FileField, "segment"+extensionFor(mimeType))
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.URL, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", transcription.ErrService, err)
	}
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", transcription.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", statusError(resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var tr transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decoding whisper response: %v", transcription.ErrService, err)
	}
	return withLabel(startLabel, tr.Text), nil
}

func statusError(code int, msg string) error {
	switch {
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: whisper http %d: %s", transcription.ErrRateLimited, code, msg)
	case code >= 500:
		return fmt.Errorf("%w: whisper http %d: %s", transcription.ErrNetwork, code, msg)
	default:
		return fmt.Errorf("%w: whisper http %d: %s", transcription.ErrService, code, msg)
	}
}

func withLabel(label, text string) string {
	text = strings.TrimSpace(text)
	if text == "" || label == "" {
		return text
	}
	return label + " " + text
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/mp4", "audio/x-m4a", "audio/m4a":
		return ".m4a"
	default:
		return ".bin"
	}
}
