// Package chunker splits document content into text windows. The same
// primitive serves both stores: overlapping chunks sized for embedding, and
// larger non-overlapping windows sized for graph extraction.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// Config controls the chunking behaviour.
type Config struct {
	ChunkSize int // Target chunk size in bytes.
	Overlap   int // Byte overlap between consecutive chunks.
}

// Span is one slice of the original content. Start and End are byte offsets
// into the source string, so Span content can always be re-derived.
type Span struct {
	Start   int
	End     int
	Content string
}

// Chunker converts raw content into store-ready spans.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with sensible defaults.
func New(cfg Config) *Chunker {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1200
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 6
	}
	return &Chunker{cfg: cfg}
}

// Split cuts content into overlapping spans of roughly ChunkSize bytes.
// Cuts prefer paragraph boundaries, then sentence boundaries, then word
// boundaries, so no semantic unit is split without contextual continuity.
// Content at or below ChunkSize is returned as a single span.
func (c *Chunker) Split(content string) []Span {
	if content == "" {
		return nil
	}
	if len(content) <= c.cfg.ChunkSize {
		return []Span{{Start: 0, End: len(content), Content: content}}
	}

	var spans []Span
	start := 0
	for start < len(content) {
		end := cutPoint(content, start, c.cfg.ChunkSize)
		spans = append(spans, Span{Start: start, End: end, Content: content[start:end]})
		if end >= len(content) {
			break
		}

		next := end - c.cfg.Overlap
		if next <= start {
			next = end
		}
		start = runeStart(content, next)
	}
	return spans
}

// Windows cuts content into sequential, non-overlapping spans of at most
// maxBytes each. It is used to keep graph extraction inputs within the
// operation time budget; small content yields a single window.
func Windows(content string, maxBytes int) []Span {
	if content == "" {
		return nil
	}
	if maxBytes <= 0 || len(content) <= maxBytes {
		return []Span{{Start: 0, End: len(content), Content: content}}
	}

	var spans []Span
	start := 0
	for start < len(content) {
		end := cutPoint(content, start, maxBytes)
		spans = append(spans, Span{Start: start, End: end, Content: content[start:end]})
		start = end
	}
	return spans
}

// sentence enders considered when no paragraph break is available
var sentenceEnders = []string{". ", "! ", "? ", ".\n", "!\n", "?\n", "\n"}

// cutPoint returns the byte offset at which the span starting at start
// should end, given a size budget. It searches the second half of the
// budget window for a paragraph break, then a sentence ender, then a space,
// and falls back to a hard cut at a rune boundary.
func cutPoint(content string, start, budget int) int {
	limit := start + budget
	if limit >= len(content) {
		return len(content)
	}
	window := content[start:limit]
	half := len(window) / 2

	if i := strings.LastIndex(window, "\n\n"); i > half {
		return start + i + 2
	}
	best := -1
	for _, ender := range sentenceEnders {
		if i := strings.LastIndex(window, ender); i > half && i+len(ender) > best {
			best = i + len(ender)
		}
	}
	if best > 0 {
		return start + best
	}
	if i := strings.LastIndex(window, " "); i > half {
		return start + i + 1
	}
	return runeStart(content, limit)
}

// runeStart backs the offset up to the nearest UTF-8 rune boundary.
func runeStart(content string, i int) int {
	for i > 0 && i < len(content) && !utf8.RuneStart(content[i]) {
		i--
	}
	return i
}
