// Package chunker splits long text into overlapping windows at natural
// boundaries (paragraph, sentence, word) so each window can be detected
// independently while still tracking its absolute offsets in the source.
//
// Offsets are byte offsets into the source string, matching Go's native
// string/regexp semantics. To avoid ever splitting a multi-byte rune,
// every cut point — whether a refined natural boundary or the raw target
// — is snapped back to the start of the rune it falls in before a chunk is
// emitted (forward only if snapping back would leave the chunk empty).
//
// The algorithm favors the boundary whose match *end* lands closest to the
// target cut point over one that simply occurs first in the scan window —
// a paragraph break three characters from the target beats a sentence break
// ninety characters away, matching how a human would choose where to split.
package chunker

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Chunk is a contiguous window over some source text, with absolute byte
// offsets into that source.
//
// Invariants: Content == source[StartOffset:EndOffset]; chunks emitted by
// one Chunk call are contiguous with overlap (no gaps); the last chunk's
// EndOffset equals len(source).
type Chunk struct {
	Content     string
	StartOffset int
	EndOffset   int
	ChunkIndex  int
	TotalChunks int
	Metadata    map[string]string
}

// Options configures chunk boundaries. Zero-value Options is invalid; use
// DefaultOptions as a base.
type Options struct {
	MaxChunkSize       int
	OverlapSize        int
	PreserveBoundaries bool
}

// DefaultOptions mirrors the scrubber's default chunking configuration.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize:       5000,
		OverlapSize:        500,
		PreserveBoundaries: true,
	}
}

// Chunker splits text into Chunks according to Options.
type Chunker struct {
	opts Options
}

// New returns a Chunker. Non-positive MaxChunkSize/OverlapSize are clamped
// to sane minimums so the algorithm always makes forward progress.
func New(opts Options) *Chunker {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = 5000
	}
	if opts.OverlapSize < 0 {
		opts.OverlapSize = 0
	}
	if opts.OverlapSize >= opts.MaxChunkSize {
		opts.OverlapSize = opts.MaxChunkSize / 10
	}
	return &Chunker{opts: opts}
}

// Boundary preference patterns, most preferred first.
var (
	paragraphBoundary = regexp.MustCompile(`\n\n+`)
	sentenceBoundary  = regexp.MustCompile(`[.!?]\s+`)
	wordBoundary      = regexp.MustCompile(`\s+`)
)

// boundaryScanBack and boundaryScanForward bound the window searched for a
// natural boundary around the target cut point e.
const (
	boundaryScanBack    = 500
	boundaryScanForward = 100
)

// Chunk splits text into overlapping windows. metadata (may be nil) is
// copied onto every emitted chunk.
func (c *Chunker) Chunk(text string, metadata map[string]string) []Chunk {
	n := len(text)

	if n <= c.opts.MaxChunkSize {
		return []Chunk{{
			Content:     text,
			StartOffset: 0,
			EndOffset:   n,
			ChunkIndex:  0,
			TotalChunks: 1,
			Metadata:    metadata,
		}}
	}

	var chunks []Chunk
	p := 0
	for p < n {
		target := p + c.opts.MaxChunkSize
		if target > n {
			target = n
		}

		e := target
		if c.opts.PreserveBoundaries && target < n {
			if refined, ok := c.refineBoundary(text, p, target, n); ok {
				e = refined
			}
		}
		if e <= p {
			e = target
		}
		e = snapRuneBoundary(text, e)
		if e <= p {
			e = snapRuneBoundaryForward(text, target)
		}

		chunks = append(chunks, Chunk{
			Content:     text[p:e],
			StartOffset: p,
			EndOffset:   e,
			ChunkIndex:  len(chunks),
			Metadata:    metadata,
		})

		next := e - c.opts.OverlapSize
		if overlapCap := e - (e - p - 1); next < overlapCap {
			next = overlapCap
		}
		if next <= p {
			// Guarantee progress: force the next window to start where this
			// one ended.
			next = e
		}
		prev := p
		p = snapRuneBoundary(text, next)
		if p < next && p <= 0 {
			p = next
		}
		if p <= prev {
			// Snapping back undid the step; snap forward so p still advances.
			p = snapRuneBoundaryForward(text, next)
		}
	}

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

// snapRuneBoundary moves i backward, if necessary, to the start of a rune.
func snapRuneBoundary(text string, i int) int {
	if i <= 0 || i >= len(text) {
		return i
	}
	for i > 0 && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

// snapRuneBoundaryForward moves i forward, if necessary, to the start of a rune.
func snapRuneBoundaryForward(text string, i int) int {
	if i <= 0 || i >= len(text) {
		return i
	}
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}

// refineBoundary scans [max(p,e-scanBack), min(n,e+scanForward)) for the
// first-preference boundary class present, choosing the match whose end is
// nearest the target e. Returns ok=false if no boundary pattern matches
// anywhere in the window (caller falls back to the raw target).
func (c *Chunker) refineBoundary(text string, p, e, n int) (int, bool) {
	lo := e - boundaryScanBack
	if lo < p {
		lo = p
	}
	hi := e + boundaryScanForward
	if hi > n {
		hi = n
	}
	if lo >= hi {
		return 0, false
	}
	window := text[lo:hi]

	for _, re := range []*regexp.Regexp{paragraphBoundary, sentenceBoundary, wordBoundary} {
		locs := re.FindAllStringIndex(window, -1)
		if len(locs) == 0 {
			continue
		}
		best := -1
		bestDist := -1
		for _, loc := range locs {
			end := lo + loc[1]
			dist := end - e
			if dist < 0 {
				dist = -dist
			}
			if bestDist == -1 || dist < bestDist {
				bestDist = dist
				best = end
			}
		}
		if best > p && best <= n {
			return best, true
		}
	}
	return 0, false
}

// ValidateChunks checks that chunks reconstruct the original text: content
// matches offsets, chunks are non-empty, adjacent chunks overlap or at
// least touch (no gaps), and the last chunk reaches the end of source.
func ValidateChunks(source string, chunks []Chunk) []error {
	var errs []error
	for i, ch := range chunks {
		if ch.Content == "" {
			errs = append(errs, fmt.Errorf("chunk %d: empty content", i))
		}
		if ch.StartOffset < 0 || ch.EndOffset > len(source) || ch.StartOffset > ch.EndOffset {
			errs = append(errs, fmt.Errorf("chunk %d: invalid offsets [%d,%d)", i, ch.StartOffset, ch.EndOffset))
			continue
		}
		if got := source[ch.StartOffset:ch.EndOffset]; got != ch.Content {
			errs = append(errs, fmt.Errorf("chunk %d: content does not match offsets", i))
		}
		if i > 0 {
			prev := chunks[i-1]
			if ch.StartOffset > prev.EndOffset {
				errs = append(errs, fmt.Errorf("chunk %d: gap after chunk %d", i, i-1))
			}
		}
	}
	if len(chunks) > 0 {
		last := chunks[len(chunks)-1]
		if last.EndOffset != len(source) {
			errs = append(errs, fmt.Errorf("last chunk ends at %d, want %d", last.EndOffset, len(source)))
		}
	}
	return errs
}
