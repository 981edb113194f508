// Package audit builds the immutable record describing what a scrub did:
// entity counts, confidence distribution, performance and text statistics,
// and (for chunked scrubs) chunk statistics. Build is a pure aggregation
// with no I/O.
package audit

import (
	"math"
	"time"

	"pii-scrubber/internal/entity"
)

// AuditVersion is the schema version stamped on every Audit. Bump only for
// breaking changes; new fields are additive and don't require a bump.
const AuditVersion = "1.0.0"

// Method names the scrub path that produced an Audit.
type Method string

// Supported audit methods.
const (
	MethodHybrid              Method = "hybrid"
	MethodHybridChunked       Method = "hybrid_chunked"
	MethodRegexOnly           Method = "regex_only"
	MethodLLMOnly             Method = "llm_only"
	MethodDisabled            Method = "disabled"
	MethodSkippedInvalidInput Method = "skipped_invalid_input"
	MethodSkippedTooShort     Method = "skipped_too_short"
	MethodError               Method = "error"
	MethodErrorChunked        Method = "error_chunked"
)

// EntityDetail is one row of the optional `entities.details` list. It never
// carries the entity's raw text — only its type, method, confidence,
// length, and position — so an audit record is safe to log or store
// alongside the redacted content without reintroducing the PII it
// describes.
type EntityDetail struct {
	Type       entity.Type   `json:"type"`
	Method     entity.Method `json:"method"`
	Confidence float64       `json:"confidence"`
	Length     int           `json:"length"`
	Position   Position      `json:"position"`
}

// Position is a half-open [Start,End) byte range.
type Position struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ConfidenceDistribution buckets entities by confidence band.
type ConfidenceDistribution struct {
	High   int `json:"high (0.9-1.0)"`
	Medium int `json:"medium (0.7-0.9)"`
	Low    int `json:"low (<0.7)"`
}

// ConfidenceStats summarizes the confidence scores across all entities.
type ConfidenceStats struct {
	Average      float64                `json:"average"`
	Min          float64                `json:"min"`
	Max          float64                `json:"max"`
	Distribution ConfidenceDistribution `json:"distribution"`
}

// Entities is the `entities` block of an Audit.
type Entities struct {
	Total      int                `json:"total"`
	ByType     map[string]int     `json:"by_type"`
	ByMethod   map[string]int     `json:"by_method"`
	ByConfidence ConfidenceStats  `json:"by_confidence"`
	Details    []EntityDetail     `json:"details,omitempty"`
}

// Performance is the `performance` block of an Audit.
type Performance struct {
	DurationMs       int64 `json:"duration_ms"`
	EntitiesDetected int   `json:"entities_detected"`
}

// TextStats is the `text_stats` block of an Audit.
type TextStats struct {
	OriginalLength      int     `json:"original_length"`
	RedactedLength      int     `json:"redacted_length"`
	CharactersRedacted  int     `json:"characters_redacted"`
	RedactionPercentage float64 `json:"redaction_percentage"`
}

// ChunkStats is the optional `chunkStats` block, present only for chunked
// scrubs.
type ChunkStats struct {
	Count        int `json:"count"`
	AvgSize      int `json:"avgSize"`
	MinSize      int `json:"minSize"`
	MaxSize      int `json:"maxSize"`
	TotalSize    int `json:"totalSize"`
	OverlapSize  int `json:"overlapSize"`
	MaxChunkSize int `json:"maxChunkSize"`
}

// Audit is the immutable record returned alongside every scrub's content.
type Audit struct {
	Version           string      `json:"version"`
	Timestamp         string      `json:"timestamp"`
	Method            Method      `json:"method"`
	DataType          string      `json:"dataType"`
	Scrubbed          bool        `json:"scrubbed"`
	Entities          Entities    `json:"entities"`
	Performance       Performance `json:"performance"`
	TextStats         TextStats   `json:"text_stats"`
	ChunkStats        *ChunkStats `json:"chunkStats,omitempty"`
	ValidationErrors  []string    `json:"validation_errors,omitempty"`
	Error             string      `json:"error,omitempty"`
}

// Params is everything Build needs to assemble an Audit. Any zero-valued
// optional field is simply omitted from the result.
type Params struct {
	Method               Method
	DataType             string
	Entities             []entity.Entity
	OriginalText         string
	RedactedText         string
	Duration             time.Duration
	IncludeEntityDetails bool
	ChunkStats           *ChunkStats
	ValidationErrors     []string
	Error                string
	Now                  time.Time // injected for deterministic tests; zero value uses time.Now()
}

// Build aggregates Params into an Audit. It performs no I/O and never fails.
func Build(p Params) Audit {
	now := p.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	scrubbed := p.Error == "" && len(p.ValidationErrors) == 0 &&
		p.Method != MethodSkippedInvalidInput && p.Method != MethodSkippedTooShort &&
		p.Method != MethodDisabled

	a := Audit{
		Version:   AuditVersion,
		Timestamp: now.Format(time.RFC3339),
		Method:    p.Method,
		DataType:  p.DataType,
		Scrubbed:  scrubbed,
		Entities:  buildEntities(p.Entities, p.IncludeEntityDetails),
		Performance: Performance{
			DurationMs:       p.Duration.Milliseconds(),
			EntitiesDetected: len(p.Entities),
		},
		TextStats:        buildTextStats(p.OriginalText, p.RedactedText, p.Entities),
		ChunkStats:       p.ChunkStats,
		ValidationErrors: p.ValidationErrors,
		Error:            p.Error,
	}
	return a
}

func buildEntities(entities []entity.Entity, includeDetails bool) Entities {
	e := Entities{
		Total:    len(entities),
		ByType:   map[string]int{},
		ByMethod: map[string]int{},
	}

	if len(entities) == 0 {
		return e
	}

	sum, min, max := 0.0, entities[0].Confidence, entities[0].Confidence
	var high, medium, low int

	for _, ent := range entities {
		e.ByType[string(ent.Type)]++
		e.ByMethod[string(ent.Method)]++

		c := ent.Confidence
		sum += c
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
		switch {
		case c >= 0.9:
			high++
		case c >= 0.7:
			medium++
		default:
			low++
		}

		if includeDetails {
			e.Details = append(e.Details, EntityDetail{
				Type:       ent.Type,
				Method:     ent.Method,
				Confidence: c,
				Length:     len(ent.Text),
				Position:   Position{Start: ent.Start, End: ent.End},
			})
		}
	}

	e.ByConfidence = ConfidenceStats{
		Average: round2(sum / float64(len(entities))),
		Min:     round2(min),
		Max:     round2(max),
		Distribution: ConfidenceDistribution{
			High:   high,
			Medium: medium,
			Low:    low,
		},
	}
	return e
}

// buildTextStats computes characters_redacted as the sum of each merged
// entity's own span length, not the difference between original and
// redacted lengths — those diverge under hash/mask/remove strategies,
// where a placeholder's length rarely matches the entity it replaces.
func buildTextStats(original, redacted string, entities []entity.Entity) TextStats {
	origLen := len(original)
	redLen := len(redacted)
	charsRedacted := 0
	for _, e := range entities {
		if e.End > e.Start {
			charsRedacted += e.End - e.Start
		}
	}
	var pct float64
	if origLen > 0 {
		pct = round2(float64(charsRedacted) / float64(origLen) * 100)
	}
	return TextStats{
		OriginalLength:      origLen,
		RedactedLength:      redLen,
		CharactersRedacted:  charsRedacted,
		RedactionPercentage: pct,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// BuildChunkStats computes the optional `chunkStats` block from the byte
// sizes of a document's chunks and the configured overlap/max size.
func BuildChunkStats(chunkSizes []int, maxChunkSize, overlapSize int) *ChunkStats {
	if len(chunkSizes) == 0 {
		return nil
	}
	min, max, total := chunkSizes[0], chunkSizes[0], 0
	for _, s := range chunkSizes {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
		total += s
	}
	return &ChunkStats{
		Count:        len(chunkSizes),
		AvgSize:      total / len(chunkSizes),
		MinSize:      min,
		MaxSize:      max,
		TotalSize:    total,
		OverlapSize:  overlapSize,
		MaxChunkSize: maxChunkSize,
	}
}
