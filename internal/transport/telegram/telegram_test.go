package telegram

import (
	"strings"
	"testing"
)

func TestSplitTextShort(t *testing.T) {
	t.Parallel()
	got := splitText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %q", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	lines := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		lines = append(lines, strings.Repeat("x", 10))
	}
	s := strings.Join(lines, "\n")

	chunks := splitText(s, 100)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		// Chunks should start and end on full lines.
		for _, ln := range strings.Split(c, "\n") {
			if ln != "" && len(ln) != 10 {
				t.Fatalf("chunk %d split mid-line: %q", i, ln)
			}
		}
	}
}

func TestSplitTextNoNewlines(t *testing.T) {
	t.Parallel()
	s := strings.Repeat("a", 250)
	chunks := splitText(s, 100)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if total := len(chunks[0]) + len(chunks[1]) + len(chunks[2]); total != 250 {
		t.Fatalf("total runes = %d, want 250", total)
	}
}
