// Package entity holds the data types shared across every detection,
// merging, and redaction stage: a detected PII span and the vocabulary of
// types and methods that can produce one.
package entity

import "strings"

// Type classifies the kind of sensitive data a span contains.
type Type string

// Supported entity types. Unknown is a fallback used only by the redactor
// when it must apply a placeholder for a type it does not recognize.
const (
	Email      Type = "EMAIL"
	Phone      Type = "PHONE"
	SSN        Type = "SSN"
	CreditCard Type = "CREDIT_CARD"
	IPAddress  Type = "IP_ADDRESS"
	ZipCode    Type = "ZIP_CODE"
	Name       Type = "NAME"
	Address    Type = "ADDRESS"
	DOB        Type = "DOB"
	Medical    Type = "MEDICAL"
	Financial  Type = "FINANCIAL"
	Employer   Type = "EMPLOYER"
	Unknown    Type = "UNKNOWN"
)

// Method identifies which detector produced an Entity.
type Method string

// The two detection methods the pipeline combines.
const (
	MethodRegex Method = "regex"
	MethodLLM   Method = "llm"
)

// Entity is a detected PII span in some source text.
//
// Invariants (enforced by the detectors that construct one, and checked by
// property tests, not at construction time): 0 <= Start < End <= len(source);
// source[Start:End] == Text; Text is non-empty and trimmed.
type Entity struct {
	Text       string  `json:"text"`
	Type       Type    `json:"type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
	Method     Method  `json:"method"`
	Description string `json:"description"`
}

// DefaultConfidence is used for LLM entities that omit a confidence score.
const DefaultConfidence = 0.9

// Overlaps reports whether two half-open ranges [a.Start,a.End) and
// [b.Start,b.End) share any position.
func Overlaps(a, b Entity) bool {
	return !(a.End <= b.Start || b.End <= a.Start)
}

// Range is a half-open [Start,End) byte span, used where only the position
// matters and not a full detected Entity — e.g. the skipRegions the LLM
// detector masks out before it sees a chunk of text.
type Range struct {
	Start int
	End   int
}

// Ranges extracts the [Start,End) span of each entity, in order.
func Ranges(entities []Entity) []Range {
	out := make([]Range, len(entities))
	for i, e := range entities {
		out[i] = Range{Start: e.Start, End: e.End}
	}
	return out
}

// Trim returns e with Text trimmed of leading/trailing whitespace. It does
// not adjust Start/End — callers that trim a relocated match are expected to
// also recompute positions from the trimmed text.
func Trim(e Entity) Entity {
	e.Text = strings.TrimSpace(e.Text)
	return e
}

// TypeLabel returns the human-readable description for an entity type, used
// to populate Entity.Description for LLM-produced entities.
func TypeLabel(t Type) string {
	switch t {
	case Email:
		return "Email address"
	case Phone:
		return "Phone number"
	case SSN:
		return "Social Security Number"
	case CreditCard:
		return "Credit card number"
	case IPAddress:
		return "IP address"
	case ZipCode:
		return "ZIP code"
	case Name:
		return "Person name"
	case Address:
		return "Physical address"
	case DOB:
		return "Date of birth"
	case Medical:
		return "Medical information"
	case Financial:
		return "Financial information"
	case Employer:
		return "Employer or company name"
	default:
		return "Unknown"
	}
}

// ByStart sorts entities by ascending Start offset. Ties keep their
// relative input order (callers should sort.SliceStable).
func ByStart(entities []Entity) func(i, j int) bool {
	return func(i, j int) bool { return entities[i].Start < entities[j].Start }
}
