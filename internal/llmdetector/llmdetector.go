// Package llmdetector asks a large language model to find semantic PII
// (names, addresses, dates of birth, medical/financial references,
// employers) that the regex detector's structured patterns can't see.
//
// The flow is mask-then-ask-then-relocate: regions already claimed by
// regex matches are masked out before the text reaches the model, the
// model responds with entity text, categories and offsets, the offsets are
// ignored, and Detect relocates each returned entity back into the
// original text by searching for its text case-insensitively. An adaptive
// per-call timeout and retry-with-backoff guard the provider call, short-circuiting on
// authentication failures since those won't be fixed by retrying.
package llmdetector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"pii-scrubber/internal/entity"
	"pii-scrubber/internal/expense"
	"pii-scrubber/internal/llmcache"
	"pii-scrubber/internal/llmclient"
	"pii-scrubber/internal/logger"
	"pii-scrubber/internal/metrics"
)

// skipPlaceholder masks a skip region before the chunk text is sent to the
// model. Its length is deliberately not matched to the original span:
// fewer tokens, and no hint to the model about the redacted span's length.
const skipPlaceholder = "[DETECTED]"

// detectableCategories are the entity types the LLM is asked to find.
// Structured types (EMAIL, PHONE, SSN, CREDIT_CARD, IP_ADDRESS, ZIP_CODE)
// are the regex detector's job and are deliberately excluded here.
var detectableCategories = []entity.Type{
	entity.Name, entity.Address, entity.DOB, entity.Medical, entity.Financial, entity.Employer,
}

// systemPrompt establishes domain context and the do-not-flag list. It is a
// package-level constant, not a template, because it never varies with
// input.
const systemPrompt = `You are a PII detection assistant reviewing coaching session transcripts and assessment text.

Identify only genuine personally identifiable information. Do NOT flag:
- Assessment or instrument names (e.g. "DISC", "StrengthsFinder", "Enneagram")
- Coaching framework or methodology names (e.g. "GROW model", "OKRs")
- Generic job titles or roles without an attached person (e.g. "the manager", "a director")
- Generic company or organization types without a specific name (e.g. "a tech startup", "the client's firm")

Respond with strict JSON only, matching exactly the schema you are given. Do not include any text outside the JSON object.`

// Options configures a single Detect call.
type Options struct {
	// SkipRegions are ranges already covered by the regex detector; they are
	// masked out before the chunk text is sent to the model.
	SkipRegions []entity.Range

	BaseTimeoutMs      int
	MaxTimeoutMs       int
	TimeoutPerKbMs     int
	UseAdaptiveTimeout bool

	MaxRetries int

	Model string

	// SystemPrompt overrides the built-in systemPrompt when non-empty,
	// letting an operator tune the do-not-flag list for their own domain
	// without recompiling.
	SystemPrompt string
}

// DefaultOptions returns sensible defaults for the adaptive timeout and
// retry policy.
func DefaultOptions() Options {
	return Options{
		BaseTimeoutMs:      30_000,
		MaxTimeoutMs:       600_000,
		TimeoutPerKbMs:     10_000,
		UseAdaptiveTimeout: true,
		MaxRetries:         2,
		Model:              "gpt-4o-mini",
	}
}

// Detector finds semantic PII via a chat-completion model.
type Detector struct {
	client  llmclient.Client
	tracker expense.Tracker  // optional; may be nil
	cache   llmcache.Cache   // optional; may be nil
	log     *logger.Logger   // optional; may be nil
	metrics *metrics.Metrics // optional; may be nil
}

// New returns a Detector. tracker, cache, log, and m may each be nil.
func New(client llmclient.Client, tracker expense.Tracker, cache llmcache.Cache, log *logger.Logger, m *metrics.Metrics) *Detector {
	return &Detector{client: client, tracker: tracker, cache: cache, log: log, metrics: m}
}

// entityResponse mirrors the strict JSON schema the model is asked to
// return.
type entityResponse struct {
	Entities []struct {
		Text       string  `json:"text"`
		Type       string  `json:"type"`
		Start      int     `json:"start"`
		End        int     `json:"end"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
}

// Detect returns every semantic PII span the model found in text, with
// positions relocated into text's own coordinate space. It never fails:
// any error from the client, after retries are exhausted, yields an empty
// slice.
func (d *Detector) Detect(ctx context.Context, text string, opts Options) []entity.Entity {
	if d == nil || d.client == nil {
		return nil
	}

	masked := maskSkipRegions(text, opts.SkipRegions)
	// Cached entities carry offsets relocated into text, so the key covers
	// the original text as well as what the model was shown.
	cacheKey := text + "\x00" + masked

	if d.cache != nil {
		if cached, ok := d.cache.Get(cacheKey); ok {
			if d.metrics != nil {
				d.metrics.LLMCacheHits.Add(1)
			}
			return cached
		}
		if d.metrics != nil {
			d.metrics.LLMCacheMisses.Add(1)
		}
	}

	start := time.Now()
	if d.metrics != nil {
		defer func() { d.metrics.RecordLLMLatency(time.Since(start)) }()
	}

	timeout := adaptiveTimeout(len(text), opts)

	attempts := opts.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if d.metrics != nil {
				d.metrics.LLMRetries.Add(1)
			}
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				d.warnf(logger.ActionDetectLLM, "context cancelled during retry backoff: %v", ctx.Err())
				return nil
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := d.client.ChatJSON(callCtx, llmclient.Request{
			Model:       opts.Model,
			Messages:    buildMessages(masked, opts.SystemPrompt),
			Temperature: 0,
			JSONObject:  true,
			Attempt:     attempt,
		})
		cancel()

		if err == nil {
			entities := d.parseResponse(resp.Content, text)
			d.trackUsage(resp, opts, attempt, len(text), timeout)
			if d.cache != nil {
				d.cache.Set(cacheKey, entities)
			}
			return entities
		}

		lastErr = err
		if llmclient.IsAuthError(err) {
			if d.metrics != nil {
				d.metrics.LLMAuthErrors.Add(1)
			}
			d.warnf(logger.ActionDetectLLM, "authentication/validation error, not retrying: %v", err)
			return nil
		}
		if d.metrics != nil && callCtx.Err() == context.DeadlineExceeded {
			d.metrics.LLMTimeouts.Add(1)
		}
		d.warnf(logger.ActionDetectLLM, "attempt %d/%d failed: %v", attempt+1, attempts, err)
	}

	d.warnf(logger.ActionDetectLLM, "all attempts exhausted, last error: %v", lastErr)
	return nil
}

// maskSkipRegions replaces every [Start,End) range in skipRegions with the
// literal placeholder, processed in descending order so earlier (smaller)
// offsets stay valid as the string shrinks or grows.
func maskSkipRegions(text string, skipRegions []entity.Range) string {
	if len(skipRegions) == 0 {
		return text
	}
	ranges := append([]entity.Range(nil), skipRegions...)
	sortRangesDescending(ranges)

	out := text
	for _, r := range ranges {
		start, end := r.Start, r.End
		if start < 0 || end > len(out) || start >= end {
			continue
		}
		out = out[:start] + skipPlaceholder + out[end:]
	}
	return out
}

func sortRangesDescending(ranges []entity.Range) {
	for i := 1; i < len(ranges); i++ {
		for j := i; j > 0 && ranges[j-1].Start < ranges[j].Start; j-- {
			ranges[j-1], ranges[j] = ranges[j], ranges[j-1]
		}
	}
}

// adaptiveTimeout scales the per-call timeout with input size: larger
// chunks take longer for the model to scan, so a fixed timeout would
// either be too tight for long chunks or too generous for short ones.
func adaptiveTimeout(textLen int, opts Options) time.Duration {
	if !opts.UseAdaptiveTimeout {
		return time.Duration(opts.MaxTimeoutMs) * time.Millisecond
	}
	ms := opts.BaseTimeoutMs + (textLen/1000)*opts.TimeoutPerKbMs
	if ms > opts.MaxTimeoutMs {
		ms = opts.MaxTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

func buildMessages(maskedText, systemPromptOverride string) []llmclient.Message {
	var categories strings.Builder
	for i, c := range detectableCategories {
		if i > 0 {
			categories.WriteString("|")
		}
		categories.WriteString(string(c))
	}

	user := fmt.Sprintf(`Find every occurrence of personally identifiable information in the text below.

Categories to detect: %s

Respond with exactly this JSON shape and nothing else:
{"entities": [{"text": string, "type": "%s", "start": int, "end": int, "confidence": number}]}

Text:
%s`, categories.String(), categories.String(), maskedText)

	prompt := systemPrompt
	if systemPromptOverride != "" {
		prompt = systemPromptOverride
	}

	return []llmclient.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: user},
	}
}

// parseResponse defensively decodes the model's JSON and relocates each
// entity's position in the original (unmasked) chunk text. A malformed
// response, or one with no entities, yields an empty slice — it never
// causes Detect to fail.
func (d *Detector) parseResponse(raw string, originalChunkText string) []entity.Entity {
	var parsed entityResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		d.warnf(logger.ActionParseResponse, "malformed JSON from model: %v", err)
		return nil
	}

	var out []entity.Entity
	for _, re := range parsed.Entities {
		text := strings.TrimSpace(re.Text)
		if text == "" {
			continue
		}
		typ, ok := parseType(re.Type)
		if !ok {
			continue
		}
		idx := caseInsensitiveIndex(originalChunkText, text)
		if idx < 0 {
			continue
		}
		confidence := re.Confidence
		if confidence <= 0 {
			confidence = entity.DefaultConfidence
		}
		out = append(out, entity.Entity{
			Text:        originalChunkText[idx : idx+len(text)],
			Type:        typ,
			Start:       idx,
			End:         idx + len(text),
			Confidence:  confidence,
			Method:      entity.MethodLLM,
			Description: entity.TypeLabel(typ),
		})
	}
	return out
}

func parseType(s string) (entity.Type, bool) {
	t := entity.Type(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range detectableCategories {
		if c == t {
			return t, true
		}
	}
	return "", false
}

// caseInsensitiveIndex returns the byte offset of the first case-insensitive
// occurrence of needle in haystack, or -1 if not found. Comparison uses
// strings.EqualFold (simple Unicode case folding, not strings.ToLower) over
// a window of needle's byte length; it does not use the redactor's
// cases.Fold.
func caseInsensitiveIndex(haystack, needle string) int {
	if needle == "" {
		return -1
	}
	needleLen := len(needle)
	for i := 0; i+needleLen <= len(haystack); i++ {
		if strings.EqualFold(haystack[i:i+needleLen], needle) {
			return i
		}
	}
	return -1
}

func (d *Detector) trackUsage(resp llmclient.Response, opts Options, attempt int, textLen int, timeout time.Duration) {
	if d.tracker == nil || resp.Usage == nil {
		return
	}
	d.tracker.Track(expense.NewEvent(opts.Model, "pii_detection", resp.Usage.PromptTokens, resp.Usage.CompletionTokens, map[string]any{
		"attempt":         attempt,
		"textLength":      textLen,
		"timeout":         timeout.Milliseconds(),
		"adaptiveTimeout": opts.UseAdaptiveTimeout,
	}))
}

func (d *Detector) warnf(action logger.Action, format string, args ...any) {
	if d.log == nil {
		return
	}
	d.log.Warnf(action, format, args...)
}
