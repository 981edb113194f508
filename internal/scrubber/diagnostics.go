package scrubber

import (
	"context"

	"pii-scrubber/internal/audit"
	"pii-scrubber/internal/entity"
	"pii-scrubber/internal/metrics"
)

// EntityTypeCheck reports whether a synthetic sample containing one
// instance of a given EntityType was actually detected.
type EntityTypeCheck struct {
	Type     entity.Type `json:"type"`
	Detected bool        `json:"detected"`
	Count    int         `json:"count"`
}

// TestReport is the result of Test: a per-type detection sanity check plus
// the full audit record the synthetic sample produced.
type TestReport struct {
	Checks []EntityTypeCheck `json:"checks"`
	Audit  audit.Audit       `json:"audit"`
}

// sampleTypes is every EntityType the synthetic sample exercises. Regex
// types are checked deterministically; the semantic types (NAME, ADDRESS,
// DOB, MEDICAL, FINANCIAL, EMPLOYER) depend on the configured LLM actually
// recognizing the synthetic sentence, so a false-negative there is a signal
// about the LLM configuration, not a pipeline bug.
var sampleTypes = []entity.Type{
	entity.Email, entity.Phone, entity.SSN, entity.CreditCard,
	entity.IPAddress, entity.ZipCode, entity.Name, entity.Address,
	entity.DOB, entity.Medical, entity.Financial, entity.Employer,
}

// syntheticSample is a fixed battery of text containing one unambiguous
// instance of every EntityType, used by Test to sanity-check a scrubber
// configuration without requiring the caller's real data.
const syntheticSample = `Reach Jordan Ellis at jordan.ellis@example.com or 555-123-4567.
Jordan lives at 42 Willow Lane, Springfield, 62704 and was born 03/14/1985.
Jordan's employer, Northwind Logistics Inc., recently approved a salary
adjustment. Jordan's treating physician noted a history of hypertension and
requested a follow-up. The account was charged to card 4111-1111-1111-1111,
SSN 512-34-5678, from a workstation at 192.168.10.42.`

// Test runs Scrub against a fixed synthetic sample covering every
// EntityType and reports per-type detection success, so an operator can
// sanity-check a new LLM/model configuration without wiring up real data.
func (s *Scrubber) Test(ctx context.Context) TestReport {
	result := s.Scrub(ctx, syntheticSample, "diagnostic", nil)

	checks := make([]EntityTypeCheck, 0, len(sampleTypes))
	for _, t := range sampleTypes {
		count := result.Audit.Entities.ByType[string(t)]
		checks = append(checks, EntityTypeCheck{Type: t, Detected: count > 0, Count: count})
	}

	return TestReport{Checks: checks, Audit: result.Audit}
}

// GetPerformanceStats aggregates this Scrubber's runtime metrics into a
// point-in-time snapshot. Returns a zero-value Snapshot if the scrubber
// was constructed without a metrics collector.
func (s *Scrubber) GetPerformanceStats() metrics.Snapshot {
	if s.metrics == nil {
		return metrics.Snapshot{}
	}
	return s.metrics.Snapshot()
}
