// Package merger combines regex and LLM detections, both within a single
// chunk and across a chunked document's chunks.
package merger

import (
	"sort"
	"strings"

	"pii-scrubber/internal/chunker"
	"pii-scrubber/internal/entity"
)

// MergeWithinChunk takes regexEntities as authoritative and drops any LLM
// entity overlapping one of them. The result is the union, sorted by
// Start.
func MergeWithinChunk(regexEntities, llmEntities []entity.Entity) []entity.Entity {
	out := make([]entity.Entity, 0, len(regexEntities)+len(llmEntities))
	out = append(out, regexEntities...)

	for _, le := range llmEntities {
		overlapsRegex := false
		for _, re := range regexEntities {
			if entity.Overlaps(le, re) {
				overlapsRegex = true
				break
			}
		}
		if !overlapsRegex {
			out = append(out, le)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// ChunkResult is one chunk's detection outcome, as seen by MergeAcrossChunks.
// A chunk that raised an error during detection contributes Success=false
// and is skipped without aborting the merge.
type ChunkResult struct {
	Chunk    chunker.Chunk
	Entities []entity.Entity
	Success  bool
}

// MergeAcrossChunks translates each successful chunk's chunk-local entities
// to absolute coordinates, drops any whose absolute range falls outside the
// original text, deduplicates by (start, end, lowercased trimmed text) with
// first-occurrence-wins semantics, and returns the result sorted by Start.
func MergeAcrossChunks(original string, results []ChunkResult) []entity.Entity {
	type dedupKey struct {
		start, end int
		text       string
	}

	seen := make(map[dedupKey]bool)
	var out []entity.Entity

	for _, r := range results {
		if !r.Success {
			continue
		}
		for _, e := range r.Entities {
			abs := e
			abs.Start = e.Start + r.Chunk.StartOffset
			abs.End = e.End + r.Chunk.StartOffset

			if abs.Start < 0 || abs.End > len(original) || abs.Start >= abs.End {
				continue
			}

			key := dedupKey{
				start: abs.Start,
				end:   abs.End,
				text:  strings.ToLower(strings.TrimSpace(original[abs.Start:abs.End])),
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, abs)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
