// Package redactor applies a redaction strategy to detected entities and
// validates that the result no longer contains the original PII text.
//
// Replacement never mutates indices forward while splicing — positions of
// earlier, unprocessed occurrences would drift as soon as one replacement
// changed the string length. Instead, every occurrence to replace is
// collected up front, sorted by Start *descending*, and spliced in that
// order: once an occurrence near the end of the text is replaced, every
// occurrence still queued lies entirely before it and its offsets remain
// valid.
package redactor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"pii-scrubber/internal/entity"
)

// Strategy selects how a detected entity is rendered in the redacted output.
type Strategy string

// Supported redaction strategies.
const (
	StrategyReplace Strategy = "replace"
	StrategyHash    Strategy = "hash"
	StrategyMask    Strategy = "mask"
	StrategyRemove  Strategy = "remove"
)

// Options configures a Redactor.
type Options struct {
	Strategy Strategy
	HashKey  []byte // required for StrategyHash
}

// Redactor applies Options.Strategy to detected entities.
type Redactor struct {
	opts Options
}

// New returns a Redactor. An empty Strategy defaults to StrategyReplace.
func New(opts Options) *Redactor {
	if opts.Strategy == "" {
		opts.Strategy = StrategyReplace
	}
	return &Redactor{opts: opts}
}

// foldCaser performs locale-independent case folding so occurrence and
// boundary comparisons don't mishandle non-ASCII casing the way
// strings.ToLower/EqualFold can. Entities are compared as folded
// code-point runs; no NFC/NFD normalization is performed.
var foldCaser = cases.Fold()

func foldRune(r rune) rune {
	folded := foldCaser.String(string(r))
	for _, fr := range folded {
		return fr
	}
	return r
}

func equalFold(a, b string) bool {
	ar, br := []rune(a), []rune(b)
	if len(ar) != len(br) {
		return false
	}
	for i := range ar {
		if foldRune(ar[i]) != foldRune(br[i]) {
			return false
		}
	}
	return true
}

// occurrence is one concrete span in the original text to be replaced.
type occurrence struct {
	start, end int
	typ        entity.Type
	text       string // the exact matched substring (may differ from the entity's canonical Text for NAME variants)
}

// Apply renders the redacted text for the given entities.
func (r *Redactor) Apply(text string, entities []entity.Entity) string {
	occs := buildOccurrences(text, entities)
	return splice(text, occs, func(o occurrence) string {
		return r.placeholderFor(o.typ, o.text)
	})
}

// buildOccurrences computes the full set of spans to redact: every
// non-overlapping occurrence of each entity's trimmed text anywhere in the
// original text, plus, for NAME entities, boundary-restricted occurrences
// of name-token and possessive variants.
func buildOccurrences(text string, entities []entity.Entity) []occurrence {
	accepted := newRangeSet()
	var occs []occurrence

	// Generic pass: every entity's own exact text, anywhere in the source.
	for _, e := range entities {
		needle := strings.TrimSpace(e.Text)
		if needle == "" {
			continue
		}
		for _, m := range findAllFold(text, needle) {
			if e.Type == entity.Email && !emailBoundaryOK(text, m.start) {
				continue
			}
			if accepted.overlaps(m.start, m.end) {
				continue
			}
			accepted.add(m.start, m.end)
			occs = append(occs, occurrence{start: m.start, end: m.end, typ: e.Type, text: text[m.start:m.end]})
		}
	}

	// NAME variant pass.
	for _, e := range entities {
		if e.Type != entity.Name {
			continue
		}
		full := strings.TrimSpace(e.Text)
		if full == "" {
			continue
		}
		for _, variant := range nameVariants(full) {
			for _, m := range findAllFold(text, variant) {
				if accepted.overlaps(m.start, m.end) {
					continue
				}
				if !nameVariantBoundaryOK(text, m.start, m.end) {
					continue
				}
				accepted.add(m.start, m.end)
				occs = append(occs, occurrence{start: m.start, end: m.end, typ: entity.Name, text: text[m.start:m.end]})
			}
		}
	}

	return occs
}

// nameVariants returns the surface forms the redactor additionally hunts
// for beyond a NAME entity's exact text: first and last token (for
// multi-part names), and the possessive form of the full name and each
// token.
func nameVariants(full string) []string {
	tokens := strings.Fields(full)
	variants := []string{full + "'s"}
	if len(tokens) >= 2 {
		variants = append(variants, tokens[0], tokens[len(tokens)-1])
		for _, tk := range tokens {
			variants = append(variants, tk+"'s")
		}
	}
	return variants
}

// emailBoundaryOK requires the character preceding a match to be absent or
// whitespace/open-paren, so an email-shaped suffix of a longer token isn't
// treated as a standalone address.
func emailBoundaryOK(text string, start int) bool {
	if start == 0 {
		return true
	}
	switch text[start-1] {
	case ' ', '\n', '\t', '\r', '(':
		return true
	default:
		return false
	}
}

// nameVariantBoundaryOK requires the character immediately before and after
// the match to each be whitespace, one of ". , \n \t", or '(' / ')';
// start/end-of-string also counts.
func nameVariantBoundaryOK(text string, start, end int) bool {
	if start > 0 && !isNameBoundaryByte(text[start-1]) {
		return false
	}
	if end < len(text) && !isNameBoundaryByte(text[end]) {
		return false
	}
	return true
}

func isNameBoundaryByte(b byte) bool {
	switch b {
	case ' ', '\n', '\t', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

// match is a single located occurrence of a needle in text.
type match struct{ start, end int }

// findAllFold returns every non-overlapping, case-folded occurrence of
// needle in text, scanning left to right and only at rune boundaries.
func findAllFold(text, needle string) []match {
	if needle == "" {
		return nil
	}
	var out []match
	needleLen := len(needle)
	for i := 0; i+needleLen <= len(text); {
		if !utf8.RuneStart(text[i]) {
			i++
			continue
		}
		if equalFold(text[i:i+needleLen], needle) {
			out = append(out, match{start: i, end: i + needleLen})
			i += needleLen
			continue
		}
		i++
	}
	return out
}

// rangeSet tracks accepted [start,end) ranges for overlap testing.
type rangeSet struct{ ranges []match }

func newRangeSet() *rangeSet { return &rangeSet{} }

func (s *rangeSet) overlaps(start, end int) bool {
	for _, r := range s.ranges {
		if !(end <= r.start || r.end <= start) {
			return true
		}
	}
	return false
}

func (s *rangeSet) add(start, end int) {
	s.ranges = append(s.ranges, match{start: start, end: end})
}

// splice sorts occurrences by Start descending and replaces each in turn.
// When two occurrences still overlap at this stage (not expected given
// buildOccurrences' own overlap tracking, but defended here anyway), the
// first one encountered in the descending sort wins and the later
// (smaller Start) one is skipped.
func splice(text string, occs []occurrence, render func(occurrence) string) string {
	sort.Slice(occs, func(i, j int) bool { return occs[i].start > occs[j].start })

	out := text
	lastAcceptedStart := len(text) + 1
	for _, o := range occs {
		if o.end > lastAcceptedStart {
			continue // overlaps a later (already-applied) occurrence; skip
		}
		out = out[:o.start] + render(o) + out[o.end:]
		lastAcceptedStart = o.start
	}
	return out
}

// placeholderFor returns the literal token substituted for one occurrence,
// per the configured strategy.
func (r *Redactor) placeholderFor(t entity.Type, matched string) string {
	switch r.opts.Strategy {
	case StrategyHash:
		return fmt.Sprintf("[%s_%s]", hashBucket(t), hashToken(r.opts.HashKey, matched))
	case StrategyMask:
		return maskFor(t, matched)
	case StrategyRemove:
		return ""
	default:
		return replacePlaceholder(t)
	}
}

// replacePlaceholder returns the fixed placeholder for the `replace`
// strategy.
func replacePlaceholder(t entity.Type) string {
	switch t {
	case entity.Name:
		return "[NAME]"
	case entity.Email:
		return "[EMAIL]"
	case entity.Phone:
		return "[PHONE]"
	case entity.SSN:
		return "[SSN]"
	case entity.CreditCard:
		return "[CREDIT_CARD]"
	case entity.Address:
		return "[ADDRESS]"
	case entity.DOB:
		return "[DOB]"
	case entity.Medical:
		return "[MEDICAL_INFO]"
	case entity.Financial:
		return "[FINANCIAL_INFO]"
	case entity.Employer:
		return "[EMPLOYER]"
	case entity.IPAddress:
		return "[IP]"
	case entity.ZipCode:
		return "[ZIP]"
	default:
		return "[REDACTED]"
	}
}

// hashBucket is the TYPE portion of a hash-strategy placeholder.
func hashBucket(t entity.Type) string {
	if t == "" {
		return string(entity.Unknown)
	}
	return string(t)
}

// hashToken returns the first 8 hex characters of HMAC-SHA256(key, value).
func hashToken(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value)) //nolint:errcheck // hash.Hash.Write never returns an error
	sum := hex.EncodeToString(mac.Sum(nil))
	return sum[:8]
}

// maskFor applies type-specific partial masking.
func maskFor(t entity.Type, matched string) string {
	switch t {
	case entity.Email:
		return maskEmail(matched)
	case entity.Phone:
		return maskPhone(matched)
	case entity.Name:
		return maskName(matched)
	case entity.SSN, entity.CreditCard:
		return maskTail4(matched)
	default:
		return maskDefault(matched)
	}
}

func maskEmail(s string) string {
	at := strings.IndexByte(s, '@')
	if at < 0 || at == 0 {
		return maskDefault(s)
	}
	local := s[:at]
	domain := s[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	if dot <= 0 {
		return maskDefault(s)
	}
	tld := domain[dot:]
	return fmt.Sprintf("%c***@%c***%s", local[0], domain[0], tld)
}

func maskPhone(string) string { return "***-***-" + "####" }

func maskName(s string) string {
	tokens := strings.Fields(s)
	var initials strings.Builder
	for _, tk := range tokens {
		if tk == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(tk)
		initials.WriteRune(r)
		initials.WriteByte('.')
	}
	return initials.String() + strings.Repeat("*", min(3, max(1, len(s)/4)))
}

func maskTail4(s string) string {
	digits := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(s))
	}
	masked := strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
	return masked
}

func maskDefault(s string) string {
	n := len(s)
	if n > 8 {
		n = 8
	}
	return strings.Repeat("*", n)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Validate checks that no entity's exact trimmed text still appears in the
// redacted output, and that the output is non-empty if the input was
// non-empty. The comparison is case-sensitive and performs no Unicode
// normalization.
func Validate(original, redacted string, entities []entity.Entity) ValidationResult {
	var errs []string
	if original != "" && redacted == "" {
		errs = append(errs, "redacted output is empty but input was non-empty")
	}
	for _, e := range entities {
		needle := strings.TrimSpace(e.Text)
		if needle == "" {
			continue
		}
		if strings.Contains(redacted, needle) {
			errs = append(errs, fmt.Sprintf("entity text still present in redacted output: %q (%s)", needle, e.Type))
		}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
