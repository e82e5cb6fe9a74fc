// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Transcription backends.
const (
	BackendGemini       = "gemini"
	BackendWhisperHTTP  = "whisper_http"
	BackendWhisperLocal = "whisper_local"
)

// RedisConfig is shared by the token store and the result cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"password"`
	KeyTTL   int    `yaml:"key_ttl"` // TTL in seconds
}

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	API struct {
		BasePath    string `yaml:"base_path"`
		SwaggerHost string `yaml:"swagger_host"`
	} `yaml:"api"`

	Audio struct {
		SampleRate   int    `yaml:"sample_rate"`
		Downmix      string `yaml:"downmix"` // average or first
		MaxFileSize  int64  `yaml:"max_file_size_mb"`
		FastPathSize int64  `yaml:"fast_path_kb"` // 0 disables the fast path
		FFmpegPath   string `yaml:"ffmpeg_path"`
		Transcode    *bool  `yaml:"transcode"` // hand unsupported containers to ffmpeg
	} `yaml:"audio"`

	Queue struct {
		Concurrency  int `yaml:"concurrency"`
		EventHistory int `yaml:"event_history"`
	} `yaml:"queue"`

	Transcription struct {
		Backend         string  `yaml:"backend"`
		ChunkSeconds    float64 `yaml:"chunk_seconds"`
		SegmentDelayMS  int     `yaml:"segment_delay_ms"`
		CallTimeoutSecs int     `yaml:"call_timeout_seconds"`
		MinContentChars int     `yaml:"min_content_chars"`
	} `yaml:"transcription"`

	Retry struct {
		MaxAttempts    int     `yaml:"max_attempts"`
		BaseDelayMS    int     `yaml:"base_delay_ms"`
		Multiplier     float64 `yaml:"multiplier"`
		ThrottleFactor float64 `yaml:"throttle_factor"`
		MaxDelayMS     int     `yaml:"max_delay_ms"`
		JitterMS       int     `yaml:"jitter_ms"`
	} `yaml:"retry"`

	Gemini struct {
		APIKey        string  `yaml:"api_key"`
		Model         string  `yaml:"model"`
		AnalysisModel string  `yaml:"analysis_model"`
		Temperature   float32 `yaml:"temperature"`
	} `yaml:"gemini"`

	Whisper struct {
		ModelPath   string `yaml:"model_path"`
		Language    string `yaml:"language"`
		URL         string `yaml:"url"`
		APIKey      string `yaml:"api_key"`
		Model       string `yaml:"model"`
		FileField   string `yaml:"file_field"`
		TimeoutSecs int    `yaml:"timeout_seconds"`
	} `yaml:"whisper"`

	Fetch struct {
		Enabled     bool  `yaml:"enabled"`
		TimeoutSecs int   `yaml:"timeout_seconds"`
		MaxFileSize int64 `yaml:"max_file_size_mb"`
	} `yaml:"fetch"`

	Cache struct {
		Redis     RedisConfig `yaml:"redis"`
		KeyPrefix string      `yaml:"key_prefix"`
	} `yaml:"cache"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Auth struct {
		Enabled  bool        `yaml:"enabled"`
		Tokens   []string    `yaml:"tokens"` // Fallback static tokens
		Redis    RedisConfig `yaml:"redis"`
		Postgres struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			User     string `yaml:"user"`
			Password string `yaml:"password"`
			DBName   string `yaml:"dbname"`
			Table    string `yaml:"table"`
			Query    string `yaml:"query"` // Parameterized query for token lookup
		} `yaml:"postgres"`
	} `yaml:"auth"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	c.Gemini.APIKey = getEnv("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Whisper.APIKey = getEnv("WHISPER_API_KEY", c.Whisper.APIKey)
	c.Cache.Redis.Password = getEnv("REDIS_PASSWORD", c.Cache.Redis.Password)
	c.Auth.Redis.Password = getEnv("REDIS_PASSWORD", c.Auth.Redis.Password)
	c.Auth.Postgres.Password = getEnv("POSTGRES_PASSWORD", c.Auth.Postgres.Password)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.API.BasePath == "" {
		c.API.BasePath = "/"
	}

	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Downmix == "" {
		c.Audio.Downmix = "average"
	}
	if c.Audio.MaxFileSize == 0 {
		c.Audio.MaxFileSize = 200
	}
	if c.Audio.FastPathSize == 0 {
		c.Audio.FastPathSize = 512
	}
	if c.Audio.FFmpegPath == "" {
		c.Audio.FFmpegPath = "ffmpeg"
	}
	if c.Audio.Transcode == nil {
		transcode := true
		c.Audio.Transcode = &transcode
	}

	if c.Queue.Concurrency == 0 {
		c.Queue.Concurrency = 3
	}
	if c.Queue.EventHistory == 0 {
		c.Queue.EventHistory = 1000
	}

	if c.Transcription.Backend == "" {
		c.Transcription.Backend = BackendGemini
	}
	if c.Transcription.ChunkSeconds == 0 {
		c.Transcription.ChunkSeconds = 60
	}
	if c.Transcription.SegmentDelayMS == 0 {
		c.Transcription.SegmentDelayMS = 1200
	}
	if c.Transcription.CallTimeoutSecs == 0 {
		c.Transcription.CallTimeoutSecs = 120
	}
	if c.Transcription.MinContentChars == 0 {
		c.Transcription.MinContentChars = 1
	}

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.BaseDelayMS == 0 {
		c.Retry.BaseDelayMS = 3000
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 2
	}
	if c.Retry.ThrottleFactor == 0 {
		c.Retry.ThrottleFactor = 2
	}
	if c.Retry.MaxDelayMS == 0 {
		c.Retry.MaxDelayMS = 60000
	}
	if c.Retry.JitterMS == 0 {
		c.Retry.JitterMS = 250
	}

	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.AnalysisModel == "" {
		c.Gemini.AnalysisModel = c.Gemini.Model
	}

	if c.Whisper.ModelPath == "" {
		c.Whisper.ModelPath = "models/ggml-base.bin"
	}
	if c.Whisper.FileField == "" {
		c.Whisper.FileField = "file"
	}
	if c.Whisper.TimeoutSecs == 0 {
		c.Whisper.TimeoutSecs = 300
	}

	if c.Fetch.TimeoutSecs == 0 {
		c.Fetch.TimeoutSecs = 60
	}
	if c.Fetch.MaxFileSize == 0 {
		c.Fetch.MaxFileSize = c.Audio.MaxFileSize
	}

	if c.Cache.Redis.Host == "" {
		c.Cache.Redis.Host = "localhost"
	}
	if c.Cache.Redis.Port == 0 {
		c.Cache.Redis.Port = 6379
	}
	if c.Cache.Redis.KeyTTL == 0 {
		c.Cache.Redis.KeyTTL = 7 * 24 * 3600
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "transcript:"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Transcription.ChunkSeconds <= 0 {
		problems = append(problems, "transcription.chunk_seconds must be positive")
	}
	if c.Queue.Concurrency < 1 {
		problems = append(problems, "queue.concurrency must be at least 1")
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, "retry.max_attempts must be at least 1")
	}
	if c.Audio.SampleRate <= 0 {
		problems = append(problems, "audio.sample_rate must be positive")
	}
	switch c.Audio.Downmix {
	case "average", "first":
	default:
		problems = append(problems, fmt.Sprintf("audio.downmix %q must be average or first", c.Audio.Downmix))
	}
	switch c.Transcription.Backend {
	case BackendGemini, BackendWhisperHTTP, BackendWhisperLocal:
	default:
		problems = append(problems, fmt.Sprintf("unknown transcription.backend %q", c.Transcription.Backend))
	}
	if c.Transcription.Backend == BackendWhisperHTTP && c.Whisper.URL == "" {
		problems = append(problems, "whisper.url is required for the whisper_http backend")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
