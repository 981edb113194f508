package merger

import (
	"testing"

	"pii-scrubber/internal/chunker"
	"pii-scrubber/internal/entity"
)

func TestMergeWithinChunkDropsOverlappingLLM(t *testing.T) {
	regexEntities := []entity.Entity{
		{Text: "smith@clinic.org", Type: entity.Email, Start: 22, End: 39, Method: entity.MethodRegex, Confidence: 1.0},
	}
	llmEntities := []entity.Entity{
		{Text: "Dr. Smith", Type: entity.Name, Start: 9, End: 18, Method: entity.MethodLLM, Confidence: 0.9},
		{Text: "clinic.org", Type: entity.Address, Start: 29, End: 39, Method: entity.MethodLLM, Confidence: 0.6}, // overlaps the email
	}

	got := MergeWithinChunk(regexEntities, llmEntities)
	if len(got) != 2 {
		t.Fatalf("want 2 entities, got %d: %+v", len(got), got)
	}
	for _, e := range got {
		if e.Type == entity.Address {
			t.Errorf("overlapping LLM entity should have been dropped: %+v", e)
		}
	}
	if got[0].Start > got[1].Start {
		t.Errorf("result not sorted by Start: %+v", got)
	}
}

func TestMergeWithinChunkNoRegexEntities(t *testing.T) {
	llmEntities := []entity.Entity{{Text: "Jane Doe", Type: entity.Name, Start: 0, End: 8, Method: entity.MethodLLM}}
	got := MergeWithinChunk(nil, llmEntities)
	if len(got) != 1 {
		t.Fatalf("want 1 entity, got %d", len(got))
	}
}

func TestMergeAcrossChunksTranslatesOffsets(t *testing.T) {
	original := "aaaaaaaaaaMichael Chen is here"
	results := []ChunkResult{
		{
			Chunk:    chunker.Chunk{StartOffset: 10, EndOffset: 30},
			Entities: []entity.Entity{{Text: "Michael Chen", Type: entity.Name, Start: 0, End: 12, Method: entity.MethodLLM}},
			Success:  true,
		},
	}
	got := MergeAcrossChunks(original, results)
	if len(got) != 1 {
		t.Fatalf("want 1 entity, got %d", len(got))
	}
	if got[0].Start != 10 || got[0].End != 22 {
		t.Errorf("offsets not translated correctly: %+v", got[0])
	}
	if original[got[0].Start:got[0].End] != "Michael Chen" {
		t.Errorf("translated range does not match source")
	}
}

func TestMergeAcrossChunksDedupesOverlapRegion(t *testing.T) {
	original := "intro text Michael Chen appears once across the overlap region here"
	// Same absolute entity detected independently by two chunks covering the overlap.
	results := []ChunkResult{
		{
			Chunk:    chunker.Chunk{StartOffset: 0, EndOffset: 40},
			Entities: []entity.Entity{{Text: "Michael Chen", Type: entity.Name, Start: 11, End: 23, Method: entity.MethodLLM}},
			Success:  true,
		},
		{
			Chunk:    chunker.Chunk{StartOffset: 5, EndOffset: 69},
			Entities: []entity.Entity{{Text: "Michael Chen", Type: entity.Name, Start: 6, End: 18, Method: entity.MethodLLM}},
			Success:  true,
		},
	}
	got := MergeAcrossChunks(original, results)
	if len(got) != 1 {
		t.Fatalf("want deduped to 1 entity, got %d: %+v", len(got), got)
	}
}

func TestMergeAcrossChunksSkipsFailedChunks(t *testing.T) {
	original := "some original text here"
	results := []ChunkResult{
		{Chunk: chunker.Chunk{StartOffset: 0, EndOffset: 10}, Success: false, Entities: []entity.Entity{{Text: "bogus", Start: 0, End: 5}}},
		{Chunk: chunker.Chunk{StartOffset: 10, EndOffset: 24}, Success: true, Entities: []entity.Entity{{Text: "text", Type: entity.Name, Start: 5, End: 9}}},
	}
	got := MergeAcrossChunks(original, results)
	if len(got) != 1 {
		t.Fatalf("want 1 entity from the successful chunk, got %d: %+v", len(got), got)
	}
}

func TestMergeAcrossChunksRejectsOutOfBounds(t *testing.T) {
	original := "short"
	results := []ChunkResult{
		{Chunk: chunker.Chunk{StartOffset: 0, EndOffset: 5}, Success: true, Entities: []entity.Entity{{Text: "x", Start: 3, End: 10}}},
	}
	got := MergeAcrossChunks(original, results)
	if len(got) != 0 {
		t.Errorf("out-of-bounds entity should have been rejected, got %+v", got)
	}
}
