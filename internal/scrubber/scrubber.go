// Package scrubber is the orchestrator that ties every other detection and
// redaction component together behind a single, total entry point: Scrub.
// It is a constructed, immutable, concurrency-safe pipeline object that
// drives the full decide → detect → merge → redact → validate → audit
// state machine, fanning long documents out across a bounded worker pool
// of chunks.
//
// Scrub never raises to its caller: every unexpected panic is recovered at
// its two boundaries (single-pass and per-chunk detection) and converted
// into a diagnostic audit method instead.
package scrubber

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pii-scrubber/internal/audit"
	"pii-scrubber/internal/chunker"
	"pii-scrubber/internal/config"
	"pii-scrubber/internal/entity"
	"pii-scrubber/internal/expense"
	"pii-scrubber/internal/llmcache"
	"pii-scrubber/internal/llmclient"
	"pii-scrubber/internal/llmdetector"
	"pii-scrubber/internal/logger"
	"pii-scrubber/internal/merger"
	"pii-scrubber/internal/metrics"
	"pii-scrubber/internal/redactor"
	"pii-scrubber/internal/regexdetector"
)

// ScrubResult is the result of a single Scrub call: the content (redacted,
// or the original text on any degraded path) and its audit record.
type ScrubResult struct {
	Content string      `json:"content"`
	Audit   audit.Audit `json:"audit"`
}

// Overlay is a sparse, per-call override of the scrubber's default
// ScrubberConfig, applying only to the one Scrub call it's passed to. A
// nil field means "use the scrubber's configured default".
type Overlay struct {
	EnableRegex         *bool
	EnableLLM           *bool
	EnableChunking      *bool
	Strategy            *string
	Model               *string
	MaxConcurrentChunks *int
	DataType            *string
}

// Scrubber is an immutable, constructed-once pipeline, safe for concurrent
// Scrub calls. Its fields are read-only after New returns; the only
// mutable state it touches is its optional metrics, expense-tracker and
// LLM-cache collaborators, all of which are themselves concurrency-safe.
type Scrubber struct {
	cfg     config.ScrubberConfig
	regex   *regexdetector.RegexDetector
	llm     *llmdetector.Detector
	log     *logger.Logger
	metrics *metrics.Metrics
}

// New constructs a Scrubber. tracker, cache, log, and m may each be nil.
func New(cfg config.ScrubberConfig, llmClient llmclient.Client, tracker expense.Tracker, cache llmcache.Cache, log *logger.Logger, m *metrics.Metrics) *Scrubber {
	return &Scrubber{
		cfg:     cfg,
		regex:   regexdetector.New(log),
		llm:     llmdetector.New(llmClient, tracker, cache, log, m),
		log:     log,
		metrics: m,
	}
}

// Scrub is the pipeline's single public entry point. It never panics to its
// caller: any unexpected failure is caught and reported via
// audit.Method = "error"/"error_chunked" instead of an exception.
func (s *Scrubber) Scrub(ctx context.Context, text string, dataType string, opts *Overlay) (result ScrubResult) {
	start := time.Now()
	correlationID := uuid.NewString()
	cfg := s.resolve(opts)
	if opts != nil && opts.DataType != nil {
		dataType = *opts.DataType
	}

	if s.metrics != nil {
		s.metrics.ScrubsTotal.Add(1)
		defer func() { s.metrics.RecordScrubLatency(time.Since(start)) }()
	}

	if text == "" {
		if s.metrics != nil {
			s.metrics.ScrubsSkippedInvalid.Add(1)
		}
		return ScrubResult{Content: text, Audit: audit.Build(audit.Params{
			Method:       audit.MethodSkippedInvalidInput,
			DataType:     dataType,
			OriginalText: text,
			RedactedText: text,
			Duration:     time.Since(start),
		})}
	}

	if len(strings.TrimSpace(text)) < minLength(cfg) {
		if s.metrics != nil {
			s.metrics.ScrubsSkippedTooShort.Add(1)
		}
		return ScrubResult{Content: text, Audit: audit.Build(audit.Params{
			Method:       audit.MethodSkippedTooShort,
			DataType:     dataType,
			OriginalText: text,
			RedactedText: text,
			Duration:     time.Since(start),
		})}
	}

	chunked := cfg.EnableChunking && len(text) > cfg.ChunkThreshold

	defer func() {
		if r := recover(); r != nil {
			errMethod := audit.MethodError
			if chunked {
				errMethod = audit.MethodErrorChunked
			}
			s.warnf(logger.ActionScrub, "correlation=%s recovered panic: %v", correlationID, r)
			if s.metrics != nil {
				s.metrics.ScrubsErrored.Add(1)
			}
			result = ScrubResult{Content: text, Audit: audit.Build(audit.Params{
				Method:       errMethod,
				DataType:     dataType,
				OriginalText: text,
				RedactedText: text,
				Duration:     time.Since(start),
				Error:        fmt.Sprintf("%v", r),
			})}
		}
	}()

	s.infof(logger.ActionScrub, "correlation=%s dataType=%s chunked=%v length=%d", correlationID, dataType, chunked, len(text))

	method := detectionMethod(cfg)
	if chunked {
		return s.scrubChunked(ctx, text, dataType, cfg, start)
	}
	return s.scrubSingle(ctx, text, dataType, cfg, method, start)
}

func minLength(cfg config.ScrubberConfig) int {
	if cfg.MinLengthChars <= 0 {
		return 20
	}
	return cfg.MinLengthChars
}

// detectionMethod names which detector combination is active, for the
// audit record's "method" field.
func detectionMethod(cfg config.ScrubberConfig) audit.Method {
	switch {
	case cfg.EnableRegex && cfg.EnableLLM:
		return audit.MethodHybrid
	case cfg.EnableLLM:
		return audit.MethodLLMOnly
	case cfg.EnableRegex:
		return audit.MethodRegexOnly
	default:
		return audit.MethodDisabled
	}
}

// scrubSingle runs the non-chunked path: detect, merge, redact, validate,
// audit, over the whole text at once.
func (s *Scrubber) scrubSingle(ctx context.Context, text, dataType string, cfg config.ScrubberConfig, method audit.Method, start time.Time) ScrubResult {
	var regexEntities []entity.Entity
	if cfg.EnableRegex {
		regexEntities = s.regex.Detect(text)
		if s.metrics != nil {
			s.metrics.EntitiesRegex.Add(int64(len(regexEntities)))
		}
	}

	var llmEntities []entity.Entity
	if cfg.EnableLLM {
		llmEntities = s.llm.Detect(ctx, text, llmOptions(cfg, entity.Ranges(regexEntities)))
		if s.metrics != nil {
			s.metrics.EntitiesLLM.Add(int64(len(llmEntities)))
		}
	}

	merged := merger.MergeWithinChunk(regexEntities, llmEntities)

	red := s.redactorFor(cfg)
	redacted := red.Apply(text, merged)
	val := redactor.Validate(text, redacted, merged)

	if !val.Valid {
		s.warnf(logger.ActionScrubSingle, "redaction validation failed: %v", val.Errors)
		if s.metrics != nil {
			s.metrics.ScrubsValidationFailed.Add(1)
		}
		return ScrubResult{Content: text, Audit: audit.Build(audit.Params{
			Method:               method,
			DataType:             dataType,
			Entities:             merged,
			OriginalText:         text,
			RedactedText:         text,
			Duration:             time.Since(start),
			IncludeEntityDetails: cfg.IncludeEntityDetails,
			ValidationErrors:     val.Errors,
		})}
	}

	if s.metrics != nil {
		s.metrics.ScrubsSingle.Add(1)
	}
	return ScrubResult{Content: redacted, Audit: audit.Build(audit.Params{
		Method:               method,
		DataType:             dataType,
		Entities:             merged,
		OriginalText:         text,
		RedactedText:         redacted,
		Duration:             time.Since(start),
		IncludeEntityDetails: cfg.IncludeEntityDetails,
	})}
}

// scrubChunked chunks the source, fans detection out over a bounded
// worker pool, merges results across chunks, then redacts, validates, and
// audits exactly like the single-pass path.
func (s *Scrubber) scrubChunked(ctx context.Context, text, dataType string, cfg config.ScrubberConfig, start time.Time) ScrubResult {
	ch := chunker.New(chunker.Options{
		MaxChunkSize:       cfg.MaxChunkSize,
		OverlapSize:        cfg.OverlapSize,
		PreserveBoundaries: cfg.PreserveBoundaries,
	})
	chunks := ch.Chunk(text, nil)

	if s.metrics != nil {
		s.metrics.ScrubsChunked.Add(1)
	}

	results := make([]merger.ChunkResult, len(chunks))

	concurrency := cfg.MaxConcurrentChunks
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, c := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, chunk chunker.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = s.detectChunk(ctx, chunk, cfg)
		}(i, c)
	}
	wg.Wait()

	merged := merger.MergeAcrossChunks(text, results)

	red := s.redactorFor(cfg)
	redacted := red.Apply(text, merged)
	val := redactor.Validate(text, redacted, merged)

	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		sizes[i] = len(c.Content)
	}
	chunkStats := audit.BuildChunkStats(sizes, cfg.MaxChunkSize, cfg.OverlapSize)

	if !val.Valid {
		s.warnf(logger.ActionScrubChunked, "redaction validation failed: %v", val.Errors)
		if s.metrics != nil {
			s.metrics.ScrubsValidationFailed.Add(1)
		}
		return ScrubResult{Content: text, Audit: audit.Build(audit.Params{
			Method:               audit.MethodHybridChunked,
			DataType:             dataType,
			Entities:             merged,
			OriginalText:         text,
			RedactedText:         text,
			Duration:             time.Since(start),
			IncludeEntityDetails: cfg.IncludeEntityDetails,
			ChunkStats:           chunkStats,
			ValidationErrors:     val.Errors,
		})}
	}

	return ScrubResult{Content: redacted, Audit: audit.Build(audit.Params{
		Method:               audit.MethodHybridChunked,
		DataType:             dataType,
		Entities:             merged,
		OriginalText:         text,
		RedactedText:         redacted,
		Duration:             time.Since(start),
		IncludeEntityDetails: cfg.IncludeEntityDetails,
		ChunkStats:           chunkStats,
	})}
}

// detectChunk runs regex + LLM detection and the within-chunk merge for one
// chunk, recovering from any panic so one bad chunk can't bring down the
// rest of the batch: a chunk that panics yields a ChunkResult with
// Success=false instead of propagating the panic.
func (s *Scrubber) detectChunk(ctx context.Context, c chunker.Chunk, cfg config.ScrubberConfig) (out merger.ChunkResult) {
	out = merger.ChunkResult{Chunk: c, Success: false}
	defer func() {
		if r := recover(); r != nil {
			s.warnf(logger.ActionScrubChunk, "chunk %d panicked: %v", c.ChunkIndex, r)
			out = merger.ChunkResult{Chunk: c, Success: false}
		}
	}()

	var regexEntities []entity.Entity
	if cfg.EnableRegex {
		regexEntities = s.regex.Detect(c.Content)
		if s.metrics != nil {
			s.metrics.EntitiesRegex.Add(int64(len(regexEntities)))
		}
	}

	var llmEntities []entity.Entity
	if cfg.EnableLLM {
		llmEntities = s.llm.Detect(ctx, c.Content, llmOptions(cfg, entity.Ranges(regexEntities)))
		if s.metrics != nil {
			s.metrics.EntitiesLLM.Add(int64(len(llmEntities)))
		}
	}

	merged := merger.MergeWithinChunk(regexEntities, llmEntities)
	return merger.ChunkResult{Chunk: c, Entities: merged, Success: true}
}

func llmOptions(cfg config.ScrubberConfig, skipRegions []entity.Range) llmdetector.Options {
	return llmdetector.Options{
		SkipRegions:        skipRegions,
		BaseTimeoutMs:      cfg.BaseTimeoutMs,
		MaxTimeoutMs:       cfg.MaxTimeoutMs,
		TimeoutPerKbMs:     cfg.TimeoutPerKbMs,
		UseAdaptiveTimeout: cfg.UseAdaptiveTimeout,
		MaxRetries:         cfg.MaxRetries,
		Model:              cfg.Model,
		SystemPrompt:       cfg.SystemPrompt,
	}
}

func (s *Scrubber) redactorFor(cfg config.ScrubberConfig) *redactor.Redactor {
	var hashKey []byte
	if cfg.HashKey != "" {
		if decoded, err := hex.DecodeString(cfg.HashKey); err == nil {
			hashKey = decoded
		} else {
			s.warnf(logger.ActionRedact, "hashKey is not valid hex, using empty key: %v", err)
		}
	}
	return redactor.New(redactor.Options{
		Strategy: redactor.Strategy(cfg.Strategy),
		HashKey:  hashKey,
	})
}

// resolve merges a per-call Overlay onto the scrubber's default config.
func (s *Scrubber) resolve(opts *Overlay) config.ScrubberConfig {
	cfg := s.cfg
	if opts == nil {
		return cfg
	}
	if opts.EnableRegex != nil {
		cfg.EnableRegex = *opts.EnableRegex
	}
	if opts.EnableLLM != nil {
		cfg.EnableLLM = *opts.EnableLLM
	}
	if opts.EnableChunking != nil {
		cfg.EnableChunking = *opts.EnableChunking
	}
	if opts.Strategy != nil {
		cfg.Strategy = *opts.Strategy
	}
	if opts.Model != nil {
		cfg.Model = *opts.Model
	}
	if opts.MaxConcurrentChunks != nil {
		cfg.MaxConcurrentChunks = *opts.MaxConcurrentChunks
	}
	return cfg
}

func (s *Scrubber) warnf(action logger.Action, format string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.Warnf(action, format, args...)
}

func (s *Scrubber) infof(action logger.Action, format string, args ...any) {
	if s.log == nil {
		return
	}
	s.log.Infof(action, format, args...)
}
