// Copyright (c) 2024-2025 Darcy Buskermolen <darcy@dbitech.ca>
// SPDX-License-Identifier: BSD-3-Clause

// Package pipeline runs one job end to end: decode, segment, transcribe, analyse.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/VA7DBI/transcribeQueue/audio"
	"github.com/VA7DBI/transcribeQueue/metrics"
	"github.com/VA7DBI/transcribeQueue/retry"
	"github.com/VA7DBI/transcribeQueue/transcription"
	"github.com/prometheus/client_golang/prometheus"
)

// Stages reported in StageError.
const (
	StageFetch      = "fetch"
	StageDecode     = "decode"
	StageTranscribe = "transcribe"
	StageExtract    = "extract"
	StageAnalyze    = "analyze"
)

var directMediaPattern = regexp.MustCompile(`(?i)\.(mp3|wav|m4a|mp4|mov|ogg|flac|webm)$`)

// Config holds the tunables of a Processor.
type Config struct {
	ChunkSeconds  float64
	TargetRate    int
	Downmix       audio.Downmix
	FastPathBytes int64
	SegmentDelay  time.Duration
	CallTimeout   time.Duration
	MinContent    int
}

// DefaultConfig matches the service defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSeconds:  60,
		TargetRate:    audio.TargetSampleRate,
		Downmix:       audio.DownmixAverage,
		FastPathBytes: 512 * 1024,
		SegmentDelay:  1200 * time.Millisecond,
		CallTimeout:   120 * time.Second,
		MinContent:    1,
	}
}

// ResultCache stores finished transcripts keyed by content hash.
type ResultCache interface {
	Get(ctx context.Context, key string) (*transcription.Result, bool, error)
	Set(ctx context.Context, key string, result *transcription.Result) error
}

// StageError records which step of the pipeline failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Chunk is one encoded segment ready for a Transcriber. It is owned by the call that uses it.
type Chunk struct {
	SegmentIndex int
	MimeType     string
	Data         []byte
	Label        string
}

// Processor executes jobs. It is safe for concurrent use; every Run call is independent.
type Processor struct {
	cfg         Config
	transcriber transcription.Transcriber
	analyzer    transcription.Analyzer
	extractor   transcription.LinkExtractor
	fetcher     transcription.Fetcher
	transcoder  *audio.FFmpegFormat
	cache       ResultCache
	policy      retry.Policy
	logger      *log.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Processor.
type Option func(*Processor)

// WithLinkExtractor enables the search-grounded path for non-media URLs.
func WithLinkExtractor(e transcription.LinkExtractor) Option {
	return func(p *Processor) { p.extractor = e }
}

// WithFetcher enables direct download of media URLs.
func WithFetcher(f transcription.Fetcher) Option {
	return func(p *Processor) { p.fetcher = f }
}

// WithTranscoder hands media the in-process decoders cannot read to ffmpeg.
func WithTranscoder(f *audio.FFmpegFormat) Option {
	return func(p *Processor) { p.transcoder = f }
}

// WithCache enables the result cache.
func WithCache(c ResultCache) Option {
	return func(p *Processor) { p.cache = c }
}

// WithRetryPolicy replaces the retry policy used for every remote call.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Processor) { p.policy = policy }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// WithSleep replaces the inter-segment wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Processor) { p.sleep = sleep }
}

// DefaultRetryPolicy is three attempts starting at 3s, doubled, with rate limits waiting twice as long.
func DefaultRetryPolicy() retry.Policy {
	return retry.New(3, 3*time.Second, 2, 2, time.Minute, 250*time.Millisecond, ClassifyRemote)
}

// ClassifyRemote maps the error taxonomy onto retry classes.
func ClassifyRemote(err error) retry.Class {
	switch transcription.KindOf(err) {
	case transcription.KindRateLimited:
		return retry.Throttled
	case transcription.KindNetwork:
		return retry.Transient
	default:
		return retry.Permanent
	}
}

// NewProcessor builds a Processor around a transcriber and an analyzer.
func NewProcessor(cfg Config, t transcription.Transcriber, a transcription.Analyzer, opts ...Option) *Processor {
	p := &Processor{
		cfg:         cfg,
		transcriber: t,
		analyzer:    a,
		policy:      DefaultRetryPolicy(),
		logger:      log.New(io.Discard, "", 0),
		sleep:       retry.SleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cfg.MinContent < 1 {
		p.cfg.MinContent = 1
	}
	if p.cfg.TargetRate <= 0 {
		p.cfg.TargetRate = audio.TargetSampleRate
	}
	return p
}

// Run executes the pipeline for src. progress receives every status change and a message
// after each segment; it is called from the calling goroutine only.
func (p *Processor) Run(ctx context.Context, src transcription.Source, progress transcription.ProgressFunc) (*transcription.Result, error) {
	if progress == nil {
		progress = func(transcription.Status, string) {}
	}
	switch src.Kind {
	case transcription.SourceURL:
		return p.runURL(ctx, src.URL, progress)
	case transcription.SourceFile:
		if src.File == nil {
			return nil, fmt.Errorf("%w: file source without data", transcription.ErrEmptyMedia)
		}
		return p.runFile(ctx, src.File, progress)
	default:
		return nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// IsDirectMedia reports whether the URL path ends in a media file extension.
func IsDirectMedia(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return directMediaPattern.MatchString(u.Path)
}

func isYouTube(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}

func (p *Processor) runURL(ctx context.Context, addr string, progress transcription.ProgressFunc) (*transcription.Result, error) {
	if p.fetcher != nil && IsDirectMedia(addr) {
		progress(transcription.StatusOptimizing, "downloading media")
		file, err := p.fetcher.Fetch(ctx, addr)
		if err == nil {
			result, err := p.runFile(ctx, file, progress)
			if err == nil || ctx.Err() != nil || !undecodable(err) {
				return result, err
			}
			p.logger.Printf("downloaded media unusable, falling back to link extraction url=%s err=%v", addr, err)
		} else {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Printf("fetch failed, falling back to link extraction url=%s err=%v", addr, err)
		}
	}

	if p.extractor == nil {
		return nil, &StageError{Stage: StageExtract, Err: fmt.Errorf("%w: link extraction is not configured", transcription.ErrService)}
	}

	msg := "analysing link"
	if isYouTube(addr) {
		msg = "reading YouTube captions"
	}
	progress(transcription.StatusProcessing, msg)

	var (
		text string
		refs []transcription.SourceReference
	)
	_, err := p.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		return p.call(ctx, "extract", func(ctx context.Context) error {
			var err error
			text, refs, err = p.extractor.ExtractFromURL(ctx, addr)
			return err
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &StageError{Stage: StageExtract, Err: fmt.Errorf("%w; try uploading the file instead", err)}
	}

	text = strings.TrimSpace(text)
	if len([]rune(text)) < p.cfg.MinContent {
		return nil, &StageError{Stage: StageExtract, Err: fmt.Errorf("%w: no transcript could be read from the link", transcription.ErrInsufficientContent)}
	}

	analysis, err := p.analyze(ctx, text, progress)
	if err != nil {
		return nil, err
	}
	return transcription.NewResult(text, analysis, refs), nil
}

// undecodable reports whether err means the media itself could not be read, as
// opposed to a failure of a remote call.
func undecodable(err error) bool {
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageDecode {
		return false
	}
	return errors.Is(err, transcription.ErrDecode) || errors.Is(err, transcription.ErrEmptyMedia)
}

func (p *Processor) runFile(ctx context.Context, file *transcription.File, progress transcription.ProgressFunc) (*transcription.Result, error) {
	if len(file.Data) == 0 {
		return nil, &StageError{Stage: StageDecode, Err: transcription.ErrEmptyMedia}
	}

	key := contentKey(file.Data)
	if p.cache != nil {
		cached, ok, err := p.cache.Get(ctx, key)
		switch {
		case err != nil:
			metrics.CacheLookups.WithLabelValues("error").Inc()
			p.logger.Printf("result cache lookup failed key=%s err=%v", key, err)
		case ok:
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			progress(transcription.StatusProcessing, "using cached transcript")
			return cached, nil
		default:
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}

	progress(transcription.StatusOptimizing, "optimizing audio")
	chunks, err := p.prepare(ctx, file)
	if err != nil {
		return nil, err
	}
	n := chunks.Count()
	if n == 0 {
		return nil, &StageError{Stage: StageDecode, Err: transcription.ErrEmptyMedia}
	}

	progress(transcription.StatusUploading, fmt.Sprintf("packaging %d segment(s)", n))
	first, err := chunks.Chunk(0)
	if err != nil {
		return nil, err
	}

	pieces := make([]transcription.Piece, 0, n)
	for i := 0; i < n; i++ {
		chunk := first
		if i > 0 {
			if err := p.sleep(ctx, p.cfg.SegmentDelay); err != nil {
				return nil, err
			}
			if chunk, err = chunks.Chunk(i); err != nil {
				return nil, err
			}
		}

		progress(transcription.StatusProcessing, fmt.Sprintf("transcribing segment %d/%d", i+1, n))
		piece, err := p.transcribe(ctx, chunk)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, piece)
	}

	if got := transcription.ContentLength(pieces); got < p.cfg.MinContent {
		return nil, &StageError{Stage: StageTranscribe, Err: fmt.Errorf("%w: %d usable characters from %d segment(s)", transcription.ErrInsufficientContent, got, n)}
	}
	text := transcription.Assemble(pieces)

	analysis, err := p.analyze(ctx, text, progress)
	if err != nil {
		return nil, err
	}
	result := transcription.NewResult(text, analysis, nil)

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, result); err != nil {
			p.logger.Printf("result cache store failed key=%s err=%v", key, err)
		}
	}
	return result, nil
}

// chunkSource produces encoded chunks lazily in index order.
type chunkSource interface {
	Count() int
	Chunk(i int) (Chunk, error)
}

// passthrough is the fast path: the original file is the only segment.
type passthrough struct {
	file *transcription.File
}

func (s passthrough) Count() int { return 1 }

func (s passthrough) Chunk(int) (Chunk, error) {
	return Chunk{SegmentIndex: 0, MimeType: mediaType(s.file), Data: s.file.Data, Label: transcription.TimeLabel(0)}, nil
}

var mimeByFormat = map[string]string{
	"WAV":  "audio/wav",
	"MP3":  "audio/mpeg",
	"OGG":  "audio/ogg",
	"OPUS": "audio/ogg",
	"FLAC": "audio/flac",
	"AAC":  "audio/aac",
}

// mediaType returns the declared type when it names audio or video. Otherwise the
// type is taken from the extension, then from the sniffed format.
func mediaType(file *transcription.File) string {
	if isMediaType(file.MimeType) {
		return file.MimeType
	}
	if t := mime.TypeByExtension(strings.ToLower(path.Ext(file.Name))); isMediaType(t) {
		return t
	}
	if format, err := audio.Detect(file.Data, "", ""); err == nil {
		if t, ok := mimeByFormat[format.Name()]; ok {
			return t
		}
	}
	return "audio/mpeg"
}

func isMediaType(t string) bool {
	t = strings.ToLower(t)
	return strings.HasPrefix(t, "audio/") || strings.HasPrefix(t, "video/")
}

// segmented encodes one WAV per segment on demand.
type segmented struct {
	seg *audio.Segmenter
}

func (s segmented) Count() int { return s.seg.Count() }

func (s segmented) Chunk(i int) (Chunk, error) {
	segment := s.seg.Segment(i)
	data, err := audio.EncodeWAV(segment.Samples, segment.SampleRate)
	if err != nil {
		return Chunk{}, &StageError{Stage: StageDecode, Err: fmt.Errorf("encode segment %d: %w", i, err)}
	}
	return Chunk{
		SegmentIndex: segment.Index,
		MimeType:     audio.WAVMimeType,
		Data:         data,
		Label:        transcription.TimeLabel(segment.StartOffsetSeconds),
	}, nil
}

func (p *Processor) prepare(ctx context.Context, file *transcription.File) (chunkSource, error) {
	if p.cfg.FastPathBytes > 0 && int64(len(file.Data)) < p.cfg.FastPathBytes && audio.IsNativeAudio(file.Name, file.MimeType) {
		p.logger.Printf("fast path name=%s size=%d", file.Name, len(file.Data))
		return passthrough{file: file}, nil
	}

	samples, meta, err := audio.NormalizeContext(ctx, file.Data, file.Name, file.MimeType, p.cfg.TargetRate, p.cfg.Downmix, p.transcoder)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(err, audio.ErrNoAudio) {
		return nil, &StageError{Stage: StageDecode, Err: fmt.Errorf("%w: %w", transcription.ErrEmptyMedia, err)}
	}
	if err != nil {
		return nil, &StageError{Stage: StageDecode, Err: fmt.Errorf("%w: %w", transcription.ErrDecode, err)}
	}
	metrics.AudioDuration.WithLabelValues(meta.Format).Observe(meta.Duration)
	p.logger.Printf("decoded name=%s format=%s codec=%s rate=%d channels=%d duration=%.2fs",
		file.Name, meta.Format, meta.Codec, meta.SampleRate, meta.Channels, meta.Duration)

	seg, err := audio.NewSegmenter(samples, p.cfg.TargetRate, p.cfg.ChunkSeconds)
	if err != nil {
		return nil, &StageError{Stage: StageDecode, Err: err}
	}
	return segmented{seg: seg}, nil
}

// transcribe runs one chunk through the retry policy. Exhausted retries become a
// placeholder piece; anything else is returned as a job failure.
func (p *Processor) transcribe(ctx context.Context, chunk Chunk) (transcription.Piece, error) {
	var text string
	_, err := p.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		return p.call(ctx, "transcribe", func(ctx context.Context) error {
			var err error
			text, err = p.transcriber.Transcribe(ctx, chunk.Data, chunk.MimeType, chunk.Label)
			return err
		})
	})
	if err == nil {
		metrics.SegmentsTranscribed.WithLabelValues("ok").Inc()
		return transcription.Piece{SegmentIndex: chunk.SegmentIndex, Text: strings.TrimSpace(text)}, nil
	}
	if ctx.Err() != nil {
		return transcription.Piece{}, ctx.Err()
	}

	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		kind := transcription.KindOf(exhausted.Last)
		p.logger.Printf("segment soft-failed index=%d label=%s attempts=%d err=%v",
			chunk.SegmentIndex, chunk.Label, exhausted.Attempts, exhausted.Last)
		metrics.SegmentsTranscribed.WithLabelValues("placeholder").Inc()
		return transcription.Placeholder(chunk.SegmentIndex, chunk.Label, kind), nil
	}
	return transcription.Piece{}, &StageError{Stage: StageTranscribe, Err: fmt.Errorf("segment %s: %w", chunk.Label, err)}
}

func (p *Processor) analyze(ctx context.Context, text string, progress transcription.ProgressFunc) (transcription.Analysis, error) {
	progress(transcription.StatusProcessing, "analysing transcript")

	var analysis transcription.Analysis
	_, err := p.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		return p.call(ctx, "analyze", func(ctx context.Context) error {
			var err error
			analysis, err = p.analyzer.Analyze(ctx, text)
			return err
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return transcription.Analysis{}, ctx.Err()
		}
		return transcription.Analysis{}, &StageError{Stage: StageAnalyze, Err: err}
	}
	return analysis, nil
}

// call runs one attempt under the call timeout. A timeout of the attempt itself is
// reported as a network failure so it is retried; cancellation of ctx is not.
func (p *Processor) call(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	callCtx := ctx
	if p.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.cfg.CallTimeout)
		defer cancel()
	}

	timer := prometheus.NewTimer(metrics.RemoteCallDuration.WithLabelValues(operation))
	err := fn(callCtx)
	timer.ObserveDuration()

	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %s timed out after %s", transcription.ErrNetwork, operation, p.cfg.CallTimeout)
	}

	outcome := "ok"
	if err != nil {
		outcome = string(transcription.KindOf(err))
	}
	metrics.RemoteCalls.WithLabelValues(operation, outcome).Inc()
	return err
}

func contentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
