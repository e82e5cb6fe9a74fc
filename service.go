// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/VA7DBI/transcribeQueue/audio"
	"github.com/VA7DBI/transcribeQueue/cache"
	"github.com/VA7DBI/transcribeQueue/config"
	"github.com/VA7DBI/transcribeQueue/gemini"
	"github.com/VA7DBI/transcribeQueue/pipeline"
	"github.com/VA7DBI/transcribeQueue/queue"
	"github.com/VA7DBI/transcribeQueue/retry"
	"github.com/VA7DBI/transcribeQueue/transcription"
	"github.com/VA7DBI/transcribeQueue/whisper"
	"github.com/gin-gonic/gin"
)

// JobService exposes the scheduler over HTTP.
type JobService struct {
	config    *config.Config
	scheduler *queue.Scheduler
	logger    *log.Logger
	closers   []io.Closer
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SubmitRequest is the JSON form of a link submission.
type SubmitRequest struct {
	URLs []string `json:"urls"`
}

// SubmitResponse lists the jobs created by one submission, all idle.
type SubmitResponse struct {
	Jobs []queue.Job `json:"jobs"`
}

// ListResponse is the whole job set plus aggregate progress.
type ListResponse struct {
	Jobs  []queue.Job `json:"jobs"`
	Stats queue.Stats `json:"stats"`
}

// ClearResponse reports how many jobs DELETE /jobs removed.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// EventsResponse carries the events after the requested sequence number.
// Missed is set when events after since were already dropped from the history.
type EventsResponse struct {
	Events  []queue.Event `json:"events"`
	LastSeq int64         `json:"last_seq"`
	Missed  bool          `json:"missed,omitempty"`
}

// maxEventWait caps the long-poll duration of GET /events.
const maxEventWait = 60

// NewJobService builds the backends named in cfg and starts the scheduler.
func NewJobService(ctx context.Context, cfg *config.Config, logger *log.Logger) (*JobService, error) {
	processor, closers, err := newProcessor(ctx, cfg, logger)
	if err != nil {
		closeAll(closers, logger)
		return nil, err
	}

	scheduler := queue.NewScheduler(processor, cfg.Queue.Concurrency,
		queue.WithLogger(logger),
		queue.WithEventLog(queue.NewEventLog(cfg.Queue.EventHistory)),
	)
	s := newJobService(cfg, scheduler, logger)
	s.closers = closers
	return s, nil
}

func newJobService(cfg *config.Config, scheduler *queue.Scheduler, logger *log.Logger) *JobService {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &JobService{config: cfg, scheduler: scheduler, logger: logger}
}

// newProcessor wires the transcription backend, the Gemini analyzer and the
// optional fetcher and result cache into a pipeline.Processor.
func newProcessor(ctx context.Context, cfg *config.Config, logger *log.Logger) (*pipeline.Processor, []io.Closer, error) {
	var closers []io.Closer

	client, err := gemini.New(ctx, gemini.Config{
		APIKey:        cfg.Gemini.APIKey,
		Model:         cfg.Gemini.Model,
		AnalysisModel: cfg.Gemini.AnalysisModel,
		Temperature:   cfg.Gemini.Temperature,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize gemini: %v", err)
	}

	var transcriber transcription.Transcriber
	switch cfg.Transcription.Backend {
	case config.BackendWhisperHTTP:
		transcriber, err = whisper.NewHTTPBackend(whisper.HTTPConfig{
			URL:       cfg.Whisper.URL,
			APIKey:    cfg.Whisper.APIKey,
			Model:     cfg.Whisper.Model,
			Language:  cfg.Whisper.Language,
			FileField: cfg.Whisper.FileField,
			Timeout:   time.Duration(cfg.Whisper.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize whisper http backend: %v", err)
		}
	case config.BackendWhisperLocal:
		local, err := whisper.NewLocalBackend(cfg.Whisper.ModelPath, cfg.Whisper.Language)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load whisper model: %v", err)
		}
		closers = append(closers, local)
		transcriber = local
	default:
		transcriber = client
	}

	downmix, err := audio.ParseDownmix(cfg.Audio.Downmix)
	if err != nil {
		return nil, closers, err
	}

	pcfg := pipeline.Config{
		ChunkSeconds:  cfg.Transcription.ChunkSeconds,
		TargetRate:    cfg.Audio.SampleRate,
		Downmix:       downmix,
		FastPathBytes: cfg.Audio.FastPathSize * 1024,
		SegmentDelay:  time.Duration(cfg.Transcription.SegmentDelayMS) * time.Millisecond,
		CallTimeout:   time.Duration(cfg.Transcription.CallTimeoutSecs) * time.Second,
		MinContent:    cfg.Transcription.MinContentChars,
	}
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithLinkExtractor(client),
		pipeline.WithRetryPolicy(retry.New(
			cfg.Retry.MaxAttempts,
			time.Duration(cfg.Retry.BaseDelayMS)*time.Millisecond,
			cfg.Retry.Multiplier,
			cfg.Retry.ThrottleFactor,
			time.Duration(cfg.Retry.MaxDelayMS)*time.Millisecond,
			time.Duration(cfg.Retry.JitterMS)*time.Millisecond,
			pipeline.ClassifyRemote,
		)),
	}

	if cfg.Audio.Transcode == nil || *cfg.Audio.Transcode {
		opts = append(opts, pipeline.WithTranscoder(audio.NewFFmpegFormat(cfg.Audio.FFmpegPath, nil)))
	}

	if cfg.Fetch.Enabled {
		opts = append(opts, pipeline.WithFetcher(pipeline.NewHTTPFetcher(
			time.Duration(cfg.Fetch.TimeoutSecs)*time.Second,
			cfg.Fetch.MaxFileSize*1024*1024,
		)))
	}

	if cfg.Cache.Redis.Enabled {
		rc, err := cache.NewRedisResultCache(cfg)
		if err != nil {
			return nil, closers, fmt.Errorf("failed to initialize result cache: %v", err)
		}
		closers = append(closers, rc)
		opts = append(opts, pipeline.WithCache(rc))
	}

	logger.Printf("pipeline configured backend=%s chunk_seconds=%g concurrency=%d", cfg.Transcription.Backend, pcfg.ChunkSeconds, cfg.Queue.Concurrency)
	return pipeline.NewProcessor(pcfg, transcriber, client, opts...), closers, nil
}

// Close stops the scheduler, cancelling running jobs, then releases the backends.
func (s *JobService) Close() {
	if err := s.scheduler.Close(); err != nil && !errors.Is(err, queue.ErrClosed) {
		s.logger.Printf("scheduler close failed err=%v", err)
	}
	closeAll(s.closers, s.logger)
}

func closeAll(closers []io.Closer, logger *log.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Printf("close failed err=%v", err)
		}
	}
}

// @Summary     Submit transcription jobs
// @Description Queue uploaded media files and/or links. Each file and each link becomes one job.
// @Tags        jobs
// @Accept      multipart/form-data
// @Accept      json
// @Produce     json
// @Param       media formData file   false "Audio or video file (repeatable)"
// @Param       url   formData string false "Link, or several separated by whitespace or commas"
// @Success     201 {object} SubmitResponse
// @Failure     400 {object} ErrorResponse
// @Failure     503 {object} ErrorResponse
// @Router      /jobs [post]
func (s *JobService) SubmitHandler(c *gin.Context) {
	sources, err := s.readSources(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if len(sources) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No media files or links provided"})
		return
	}

	jobs, err := s.scheduler.SubmitAll(sources)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SubmitResponse{Jobs: jobs})
}

func (s *JobService) readSources(c *gin.Context) ([]transcription.Source, error) {
	if c.ContentType() == "application/json" {
		var req SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, fmt.Errorf("invalid request body: %v", err)
		}
		return urlSources(req.URLs...), nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("invalid form: %v", err)
	}

	var sources []transcription.Source
	maxSize := s.config.Audio.MaxFileSize * 1024 * 1024
	for _, fh := range form.File["media"] {
		if fh.Size > maxSize {
			return nil, fmt.Errorf("File %s too large. Maximum size is %dMB", fh.Filename, s.config.Audio.MaxFileSize)
		}
		data, err := readUpload(fh)
		if err != nil {
			return nil, err
		}
		sources = append(sources, transcription.FileSource(fh.Filename, uploadMimeType(fh), data))
	}
	return append(sources, urlSources(form.Value["url"]...)...), nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", fh.Filename, err)
	}
	return data, nil
}

// uploadMimeType prefers the part's declared type and falls back to the extension.
func uploadMimeType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	return mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename)))
}

// urlSources splits each value on whitespace and commas and keeps http(s) links.
func urlSources(values ...string) []transcription.Source {
	var sources []transcription.Source
	for _, v := range values {
		fields := strings.FieldsFunc(v, func(r rune) bool {
			return unicode.IsSpace(r) || r == ','
		})
		for _, f := range fields {
			if strings.HasPrefix(strings.ToLower(f), "http") {
				sources = append(sources, transcription.URLSource(f))
			}
		}
	}
	return sources
}

// @Summary     List jobs
// @Description All jobs in submission order with aggregate progress
// @Tags        jobs
// @Produce     json
// @Success     200 {object} ListResponse
// @Failure     503 {object} ErrorResponse
// @Router      /jobs [get]
func (s *JobService) ListHandler(c *gin.Context) {
	jobs, err := s.scheduler.List()
	if err != nil {
		s.writeError(c, err)
		return
	}
	stats, err := s.scheduler.Stats()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{Jobs: jobs, Stats: stats})
}

// @Summary     Get a job
// @Tags        jobs
// @Produce     json
// @Param       id path string true "Job ID"
// @Success     200 {object} queue.Job
// @Failure     404 {object} ErrorResponse
// @Router      /jobs/{id} [get]
func (s *JobService) GetHandler(c *gin.Context) {
	job, err := s.scheduler.Get(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// @Summary     Remove a job
// @Description Removes the job and cancels it if it is running
// @Tags        jobs
// @Param       id path string true "Job ID"
// @Success     204
// @Failure     404 {object} ErrorResponse
// @Router      /jobs/{id} [delete]
func (s *JobService) RemoveHandler(c *gin.Context) {
	if err := s.scheduler.Remove(c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary     Remove all jobs
// @Tags        jobs
// @Produce     json
// @Success     200 {object} ClearResponse
// @Router      /jobs [delete]
func (s *JobService) ClearHandler(c *gin.Context) {
	n, err := s.scheduler.ClearAll()
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ClearResponse{Removed: n})
}

// @Summary     Job events
// @Description Events with a sequence number greater than since. With wait, blocks up to that many seconds for the next event.
// @Tags        jobs
// @Produce     json
// @Param       since query int false "Last sequence number seen"
// @Param       wait  query int false "Seconds to wait for a new event (max 60)"
// @Success     200 {object} EventsResponse
// @Failure     400 {object} ErrorResponse
// @Router      /events [get]
func (s *JobService) EventsHandler(c *gin.Context) {
	since, ok := queryInt(c, "since", "since must be a non-negative integer")
	if !ok {
		return
	}
	wait, ok := queryInt(c, "wait", fmt.Sprintf("wait must be between 0 and %d", maxEventWait))
	if !ok {
		return
	}
	if wait > maxEventWait {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("wait must be between 0 and %d", maxEventWait)})
		return
	}

	history := s.scheduler.Events()
	if wait > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(wait)*time.Second)
		// a timeout returns an empty page
		_ = history.Wait(ctx, since)
		cancel()
	}

	events, last, missed := history.Read(since)
	c.JSON(http.StatusOK, EventsResponse{Events: events, LastSeq: last, Missed: missed})
}

func queryInt(c *gin.Context, name, msg string) (int64, bool) {
	v := c.Query(name)
	if v == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
		return 0, false
	}
	return n, true
}

func (s *JobService) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, queue.ErrInvalidSource):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, queue.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		s.logger.Printf("request failed path=%s err=%v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}
