// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "config.*.yaml")
	assert.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	_, err = tmpfile.Write([]byte(content))
	assert.NoError(t, err)
	tmpfile.Close()
	return tmpfile.Name()
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: testhost
  port: 9090

api:
  base_path: /api/v1
  swagger_host: test.api.com

audio:
  sample_rate: 16000
  downmix: first
  max_file_size_mb: 10
  fast_path_kb: 256

queue:
  concurrency: 5

transcription:
  backend: whisper_http
  chunk_seconds: 25
  segment_delay_ms: 500

retry:
  max_attempts: 4
  base_delay_ms: 1000

whisper:
  url: http://localhost:8080/transcribe
  file_field: audio
  language: en

cache:
  redis:
    enabled: true
    host: cachehost
    key_ttl: 60

metrics:
  enabled: true
  path: /metrics
`)

	cfg, err := LoadConfig(path)
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "testhost", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/api/v1", cfg.API.BasePath)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, "first", cfg.Audio.Downmix)
	assert.Equal(t, int64(256), cfg.Audio.FastPathSize)
	assert.Equal(t, 5, cfg.Queue.Concurrency)
	assert.Equal(t, BackendWhisperHTTP, cfg.Transcription.Backend)
	assert.Equal(t, 25.0, cfg.Transcription.ChunkSeconds)
	assert.Equal(t, 500, cfg.Transcription.SegmentDelayMS)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1000, cfg.Retry.BaseDelayMS)
	assert.Equal(t, "audio", cfg.Whisper.FileField)
	assert.True(t, cfg.Cache.Redis.Enabled)
	assert.Equal(t, "cachehost", cfg.Cache.Redis.Host)
	assert.Equal(t, 6379, cfg.Cache.Redis.Port)
	assert.Equal(t, 60, cfg.Cache.Redis.KeyTTL)
	assert.Equal(t, true, cfg.Metrics.Enabled)
}

func TestDefaultValues(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{}`))
	assert.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/", cfg.API.BasePath)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, "average", cfg.Audio.Downmix)
	assert.Equal(t, int64(512), cfg.Audio.FastPathSize)
	assert.Equal(t, "ffmpeg", cfg.Audio.FFmpegPath)
	if assert.NotNil(t, cfg.Audio.Transcode) {
		assert.True(t, *cfg.Audio.Transcode)
	}
	assert.Equal(t, 3, cfg.Queue.Concurrency)
	assert.Equal(t, BackendGemini, cfg.Transcription.Backend)
	assert.Equal(t, 60.0, cfg.Transcription.ChunkSeconds)
	assert.Equal(t, 1200, cfg.Transcription.SegmentDelayMS)
	assert.Equal(t, 120, cfg.Transcription.CallTimeoutSecs)
	assert.Equal(t, 1, cfg.Transcription.MinContentChars)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 3000, cfg.Retry.BaseDelayMS)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, 2.0, cfg.Retry.ThrottleFactor)
	assert.Equal(t, cfg.Gemini.Model, cfg.Gemini.AnalysisModel)
	assert.Equal(t, "models/ggml-base.bin", cfg.Whisper.ModelPath)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("REDIS_PASSWORD", "redis-secret")

	cfg, err := LoadConfig(writeConfig(t, `
gemini:
  api_key: from-file
`))
	assert.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Gemini.APIKey)
	assert.Equal(t, "redis-secret", cfg.Cache.Redis.Password)
	assert.Equal(t, "redis-secret", cfg.Auth.Redis.Password)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"negative chunk", "transcription:\n  chunk_seconds: -5\n", "chunk_seconds"},
		{"negative concurrency", "queue:\n  concurrency: -1\n", "concurrency"},
		{"negative attempts", "retry:\n  max_attempts: -2\n", "max_attempts"},
		{"unknown backend", "transcription:\n  backend: carrier-pigeon\n", "backend"},
		{"unknown downmix", "audio:\n  downmix: loudest\n", "downmix"},
		{"whisper http without url", "transcription:\n  backend: whisper_http\n", "whisper.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	assert.Error(t, err)
}
