package chunker

import (
	"strings"
	"testing"
)

func TestSplitSmallContent(t *testing.T) {
	c := New(Config{ChunkSize: 100, Overlap: 20})
	spans := c.Split("short text")
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Start != 0 || spans[0].End != len("short text") {
		t.Fatalf("unexpected offsets: %+v", spans[0])
	}
}

func TestSplitEmpty(t *testing.T) {
	c := New(Config{})
	if spans := c.Split(""); spans != nil {
		t.Fatalf("expected nil for empty content, got %v", spans)
	}
}

func TestSplitCoversContentWithOverlap(t *testing.T) {
	paragraphs := make([]string, 12)
	for i := range paragraphs {
		paragraphs[i] = strings.Repeat("the quick brown fox jumps over the lazy dog. ", 3)
	}
	content := strings.Join(paragraphs, "\n\n")

	c := New(Config{ChunkSize: 200, Overlap: 40})
	spans := c.Split(content)
	if len(spans) < 2 {
		t.Fatalf("expected multiple spans, got %d", len(spans))
	}

	if spans[0].Start != 0 {
		t.Fatalf("first span must start at 0, got %d", spans[0].Start)
	}
	if spans[len(spans)-1].End != len(content) {
		t.Fatalf("last span must end at %d, got %d", len(content), spans[len(spans)-1].End)
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].Start > spans[i-1].End {
			t.Fatalf("gap between span %d (end %d) and span %d (start %d)",
				i-1, spans[i-1].End, i, spans[i].Start)
		}
		if spans[i].Start <= spans[i-1].Start {
			t.Fatalf("span %d does not make progress: %d <= %d", i, spans[i].Start, spans[i-1].Start)
		}
	}
	for i, s := range spans {
		if s.Content != content[s.Start:s.End] {
			t.Fatalf("span %d content does not match its offsets", i)
		}
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	content := strings.Repeat("word ", 30) + "\n\n" + strings.Repeat("tail ", 30)
	c := New(Config{ChunkSize: len(content) - 10, Overlap: 0})
	spans := c.Split(content)
	if len(spans) < 2 {
		t.Fatalf("expected at least 2 spans, got %d", len(spans))
	}
	if !strings.HasSuffix(spans[0].Content, "\n\n") {
		t.Fatalf("first span should end at the paragraph break, ends with %q",
			spans[0].Content[len(spans[0].Content)-10:])
	}
}

func TestSplitNeverBreaksRunes(t *testing.T) {
	content := strings.Repeat("héllo wörld æøå ", 100)
	c := New(Config{ChunkSize: 64, Overlap: 16})
	for i, s := range c.Split(content) {
		if !strings.Contains(content, s.Content) {
			t.Fatalf("span %d is not a substring, likely a broken rune", i)
		}
	}
}

func TestWindowsSingleWhenSmall(t *testing.T) {
	spans := Windows("small", 1000)
	if len(spans) != 1 || spans[0].Content != "small" {
		t.Fatalf("expected single window, got %v", spans)
	}
}

func TestWindowsSequentialNonOverlapping(t *testing.T) {
	content := strings.Repeat("sentence one. sentence two. sentence three. ", 50)
	spans := Windows(content, 300)
	if len(spans) < 3 {
		t.Fatalf("expected several windows, got %d", len(spans))
	}
	pos := 0
	for i, s := range spans {
		if s.Start != pos {
			t.Fatalf("window %d starts at %d, expected %d (windows must be contiguous)", i, s.Start, pos)
		}
		if len(s.Content) > 300 {
			t.Fatalf("window %d exceeds the size budget: %d bytes", i, len(s.Content))
		}
		pos = s.End
	}
	if pos != len(content) {
		t.Fatalf("windows cover %d bytes of %d", pos, len(content))
	}
}

func TestWindowsExactMultiple(t *testing.T) {
	// Three times the budget must produce exactly three windows when the
	// content has clean sentence boundaries.
	unit := strings.Repeat("a", 90) + ". "
	content := strings.Repeat(unit, 30) // ~2760 bytes
	spans := Windows(content, len(content)/3+len(unit))
	if len(spans) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(spans))
	}
}
