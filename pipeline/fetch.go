// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/VA7DBI/transcribeQueue/transcription"
)

// HTTPFetcher downloads direct media links.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher returns a fetcher with a whole-request timeout and a body size cap.
// maxBytes <= 0 disables the cap.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads addr. 5xx and transport failures are network errors; other
// non-2xx answers are service errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, addr string) (*transcription.File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: fmt.Errorf("%w: %v", transcription.ErrService, err)}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: fmt.Errorf("%w: %v", transcription.ErrNetwork, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, &StageError{Stage: StageFetch, Err: fmt.Errorf("%w: %s returned %s", transcription.ErrNetwork, addr, resp.Status)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &StageError{Stage: StageFetch, Err: fmt.Errorf("%w: %s returned %s", transcription.ErrService, addr, resp.Status)}
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, Err: fmt.Errorf("%w: reading body: %v", transcription.ErrNetwork, err)}
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, &StageError{Stage: StageFetch, Err: fmt.Errorf("%w: %s is larger than %d bytes", transcription.ErrService, addr, f.maxBytes)}
	}

	mimeType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	return &transcription.File{
		Data:     data,
		MimeType: mimeType,
		Name:     fileName(addr),
		Size:     int64(len(data)),
	}, nil
}

func fileName(addr string) string {
	u, err := url.Parse(addr)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "download"
	}
	return path.Base(u.Path)
}
