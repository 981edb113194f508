package audit

import (
	"testing"
	"time"

	"pii-scrubber/internal/entity"
)

func TestBuildCountsAndTotals(t *testing.T) {
	entities := []entity.Entity{
		{Text: "jane@example.com", Type: entity.Email, Method: entity.MethodRegex, Confidence: 1.0, Start: 0, End: 16},
		{Text: "555-123-4567", Type: entity.Phone, Method: entity.MethodRegex, Confidence: 1.0, Start: 20, End: 32},
		{Text: "Sarah Johnson", Type: entity.Name, Method: entity.MethodLLM, Confidence: 0.85, Start: 40, End: 53},
	}

	a := Build(Params{
		Method:       MethodHybrid,
		DataType:     "transcript",
		Entities:     entities,
		OriginalText: "abcdefghij",
		RedactedText: "abc",
		Now:          time.Date(2025, 11, 19, 12, 0, 0, 0, time.UTC),
	})

	if a.Entities.Total != 3 {
		t.Fatalf("want total 3, got %d", a.Entities.Total)
	}
	if a.Entities.Total != sumValues(a.Entities.ByType) || a.Entities.Total != sumValues(a.Entities.ByMethod) {
		t.Error("total must equal sum of by_type and by_method")
	}
	if a.Entities.ByType["EMAIL"] != 1 || a.Entities.ByType["PHONE"] != 1 || a.Entities.ByType["NAME"] != 1 {
		t.Errorf("unexpected by_type: %+v", a.Entities.ByType)
	}
	if a.Entities.ByMethod["regex"] != 2 || a.Entities.ByMethod["llm"] != 1 {
		t.Errorf("unexpected by_method: %+v", a.Entities.ByMethod)
	}
}

func sumValues(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

func TestBuildConfidenceDistribution(t *testing.T) {
	entities := []entity.Entity{
		{Confidence: 1.0, Type: entity.Email, Method: entity.MethodRegex},
		{Confidence: 0.95, Type: entity.Name, Method: entity.MethodLLM},
		{Confidence: 0.8, Type: entity.Name, Method: entity.MethodLLM},
		{Confidence: 0.5, Type: entity.Medical, Method: entity.MethodLLM},
	}
	a := Build(Params{Method: MethodHybrid, Entities: entities, Now: time.Now()})

	d := a.Entities.ByConfidence.Distribution
	if d.High != 2 || d.Medium != 1 || d.Low != 1 {
		t.Errorf("unexpected distribution: %+v", d)
	}
	if a.Entities.ByConfidence.Min != 0.5 || a.Entities.ByConfidence.Max != 1.0 {
		t.Errorf("unexpected min/max: %+v", a.Entities.ByConfidence)
	}
}

func TestBuildEmptyEntities(t *testing.T) {
	a := Build(Params{Method: MethodRegexOnly, Now: time.Now()})
	if a.Entities.Total != 0 {
		t.Errorf("want 0 total, got %d", a.Entities.Total)
	}
	if a.Entities.ByConfidence.Average != 0 {
		t.Errorf("want 0 average for no entities, got %v", a.Entities.ByConfidence.Average)
	}
}

func TestBuildDetailsOmitsText(t *testing.T) {
	entities := []entity.Entity{{Text: "secret@example.com", Type: entity.Email, Method: entity.MethodRegex, Confidence: 1.0, Start: 0, End: 19}}

	withDetails := Build(Params{Method: MethodHybrid, Entities: entities, IncludeEntityDetails: true, Now: time.Now()})
	if len(withDetails.Entities.Details) != 1 {
		t.Fatalf("want 1 detail entry, got %d", len(withDetails.Entities.Details))
	}
	if withDetails.Entities.Details[0].Length != len("secret@example.com") {
		t.Errorf("unexpected detail length: %+v", withDetails.Entities.Details[0])
	}

	withoutDetails := Build(Params{Method: MethodHybrid, Entities: entities, IncludeEntityDetails: false, Now: time.Now()})
	if withoutDetails.Entities.Details != nil {
		t.Errorf("expected no details when IncludeEntityDetails is false, got %+v", withoutDetails.Entities.Details)
	}
}

func TestBuildTextStats(t *testing.T) {
	entities := []entity.Entity{
		{Text: "01234", Type: entity.Email, Method: entity.MethodRegex, Confidence: 1.0, Start: 0, End: 5},
	}
	a := Build(Params{
		Method:       MethodHybrid,
		Entities:     entities,
		OriginalText: "0123456789",
		RedactedText: "[EMAIL]56789",
		Now:          time.Now(),
	})
	if a.TextStats.OriginalLength != 10 || a.TextStats.RedactedLength != 12 {
		t.Fatalf("unexpected lengths: %+v", a.TextStats)
	}
	if a.TextStats.CharactersRedacted != 5 {
		t.Errorf("want 5 characters redacted (sum of entity spans), got %d", a.TextStats.CharactersRedacted)
	}
	if a.TextStats.RedactionPercentage != 50 {
		t.Errorf("want 50%% redacted, got %v", a.TextStats.RedactionPercentage)
	}
}

func TestBuildScrubbedFlagFalseForSkipped(t *testing.T) {
	a := Build(Params{Method: MethodSkippedTooShort, Now: time.Now()})
	if a.Scrubbed {
		t.Error("scrubbed should be false for skipped_too_short")
	}
	a = Build(Params{Method: MethodHybrid, Now: time.Now()})
	if !a.Scrubbed {
		t.Error("scrubbed should be true for a normal hybrid result")
	}
}

func TestBuildScrubbedFlagFalseOnValidationError(t *testing.T) {
	a := Build(Params{Method: MethodHybrid, ValidationErrors: []string{"leftover PII"}, Now: time.Now()})
	if a.Scrubbed {
		t.Error("scrubbed should be false when validation_errors is non-empty")
	}
}

func TestBuildChunkStats(t *testing.T) {
	cs := BuildChunkStats([]int{1000, 2000, 1500}, 2500, 200)
	if cs == nil {
		t.Fatal("expected non-nil chunk stats")
	}
	if cs.Count != 3 || cs.MinSize != 1000 || cs.MaxSize != 2000 || cs.TotalSize != 4500 {
		t.Errorf("unexpected chunk stats: %+v", cs)
	}
	if cs.AvgSize != 1500 {
		t.Errorf("want avg 1500, got %d", cs.AvgSize)
	}
}

func TestBuildChunkStatsEmpty(t *testing.T) {
	if BuildChunkStats(nil, 0, 0) != nil {
		t.Error("expected nil chunk stats for empty input")
	}
}
