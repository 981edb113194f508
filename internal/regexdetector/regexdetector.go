// Package regexdetector matches well-structured PII identifiers (emails,
// phone numbers, SSNs, credit cards, IP addresses, ZIP codes) with compiled
// regular expressions. Every match carries a fixed confidence of 1.0: these
// patterns are either a structural match or they aren't, so there's no
// gradient to score, unlike the free-text judgments an LLM detector makes.
//
// Detect is pure and never fails: a single malformed pattern is logged and
// skipped, the rest still run.
package regexdetector

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"pii-scrubber/internal/entity"
	"pii-scrubber/internal/logger"
)

// pattern pairs a compiled regex with the entity type it identifies and an
// optional post-validation function that filters out structurally-matched
// but implausible hits.
type pattern struct {
	re       *regexp.Regexp
	typ      entity.Type
	validate func(match string, text string, start int) bool
}

// RegexDetector matches structured identifiers in free-form text.
type RegexDetector struct {
	patterns []pattern
	log      *logger.Logger
}

// New compiles the detector's pattern set. log may be nil.
func New(log *logger.Logger) *RegexDetector {
	d := &RegexDetector{log: log}
	d.compilePatterns()
	return d
}

func (d *RegexDetector) compilePatterns() {
	specs := []struct {
		expr     string
		typ      entity.Type
		validate func(match, text string, start int) bool
	}{
		// Email: `(?i)` case-insensitive local part; preceding-character
		// check happens in validateEmail since Go's RE2 has no lookbehind.
		{`(?i)[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`, entity.Email, validateEmail},
		// Phone: North American / +CC, requires a separator or leading '+'.
		{`(\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`, entity.Phone, validatePhone},
		{`\b\d{3}-\d{2}-\d{4}\b`, entity.SSN, nil},
		{`\b(?:\d{4}[-\s]?){3}\d{4}\b`, entity.CreditCard, validateCreditCard},
		{`\b(?:\d{1,3}\.){3}\d{1,3}\b`, entity.IPAddress, validateIP},
		{`\b\d{5}(?:-\d{4})?\b`, entity.ZipCode, nil},
	}

	for _, s := range specs {
		re, err := regexp.Compile(s.expr)
		if err != nil {
			if d.log != nil {
				d.log.Warnf(logger.ActionCompilePattern, "skipping pattern for %s: %v", s.typ, err)
			}
			continue
		}
		d.patterns = append(d.patterns, pattern{re: re, typ: s.typ, validate: s.validate})
	}
}

// Detect returns every matched span, sorted by Start. It never fails: a
// panic inside a single pattern's validator is not expected, but Detect
// still iterates every remaining pattern even if one match is rejected.
func (d *RegexDetector) Detect(text string) []entity.Entity {
	var out []entity.Entity
	for _, p := range d.patterns {
		locs := p.re.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			start, end := loc[0], loc[1]
			match := text[start:end]
			if p.validate != nil && !p.validate(match, text, start) {
				continue
			}
			out = append(out, entity.Entity{
				Text:        match,
				Type:        p.typ,
				Start:       start,
				End:         end,
				Confidence:  1.0,
				Method:      entity.MethodRegex,
				Description: entity.TypeLabel(p.typ),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// validateEmail requires the character preceding the match to be
// whitespace, a newline/tab, '(', or start-of-string, preventing a match
// inside a longer token like "notanemail@@user@example.com".
func validateEmail(match, text string, start int) bool {
	if start == 0 {
		return true
	}
	prev := text[start-1]
	switch prev {
	case ' ', '\n', '\t', '\r', '(':
		return true
	default:
		return false
	}
}

// validatePhone rejects matches with no separator and no leading '+' — a
// bare 10-digit run is too ambiguous to flag as a phone number without some
// punctuation hinting at the grouping.
func validatePhone(match, text string, start int) bool {
	if strings.ContainsAny(match, "-. ()") {
		return true
	}
	return strings.HasPrefix(strings.TrimSpace(match), "+")
}

// validateCreditCard requires exactly 16 digits once separators are
// stripped; Luhn validation is intentionally not performed — the intent is
// PII suspicion, not card validity.
func validateCreditCard(match, _ string, _ int) bool {
	digits := 0
	for _, r := range match {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits == 16
}

// validateIP requires each of the four dot-separated components to be a
// valid octet in [0,255].
func validateIP(match, _ string, _ int) bool {
	parts := strings.Split(match, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if len(p) == 0 || len(p) > 3 {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}
