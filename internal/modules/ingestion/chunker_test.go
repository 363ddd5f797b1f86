package ingestion

import (
	"strings"
	"testing"
)

func TestSplitIntoChunksEmpty(t *testing.T) {
	if got := SplitIntoChunks("   ", 1200, 150); got != nil {
		t.Fatalf("SplitIntoChunks: got=%v want=nil", got)
	}
}

func TestSplitIntoChunksShortTextSingleChunk(t *testing.T) {
	got := SplitIntoChunks("one small paragraph.", 1200, 150)
	if len(got) != 1 {
		t.Fatalf("SplitIntoChunks: len=%d want=1", len(got))
	}
	if got[0].Index != 0 || got[0].Text != "one small paragraph." {
		t.Fatalf("SplitIntoChunks: %+v", got[0])
	}
}

func TestSplitIntoChunksPrefersSentenceBreak(t *testing.T) {
	// A sentence ender sits inside the lookback window; the first chunk
	// must end on it rather than mid-word.
	sentence := strings.Repeat("a", 1100) + ". " + strings.Repeat("b", 600)
	got := SplitIntoChunks(sentence, 1200, 150)
	if len(got) < 2 {
		t.Fatalf("SplitIntoChunks: len=%d want>=2", len(got))
	}
	if !strings.HasSuffix(got[0].Text, ".") {
		t.Fatalf("first chunk should end at sentence break, got suffix %q", got[0].Text[len(got[0].Text)-10:])
	}
}

func TestSplitIntoChunksFallsBackToWhitespace(t *testing.T) {
	// No sentence enders at all; breaking must land on a space inside the
	// last 100 runes instead of splitting a word.
	words := strings.Repeat("abcdefghi ", 200)
	got := SplitIntoChunks(words, 1200, 150)
	if len(got) < 2 {
		t.Fatalf("SplitIntoChunks: len=%d want>=2", len(got))
	}
	for i, ch := range got[:len(got)-1] {
		if strings.HasSuffix(ch.Text, "abcdefgh") && !strings.HasSuffix(ch.Text, "abcdefghi") {
			t.Fatalf("chunk %d split a word: %q", i, ch.Text[len(ch.Text)-12:])
		}
	}
}

func TestSplitIntoChunksOverlap(t *testing.T) {
	text := strings.Repeat("x", 3000)
	got := SplitIntoChunks(text, 1200, 150)
	if len(got) < 2 {
		t.Fatalf("SplitIntoChunks: len=%d want>=2", len(got))
	}
	// Hard boundary text has no break points; consecutive chunks share
	// the overlap region.
	first := got[0].Text
	second := got[1].Text
	if !strings.HasPrefix(second, first[len(first)-150:]) {
		t.Fatalf("chunks do not overlap")
	}
}

func TestSplitIntoChunksIndicesAscend(t *testing.T) {
	text := strings.Repeat("sentence one. ", 500)
	got := SplitIntoChunks(text, 1200, 150)
	for i, ch := range got {
		if ch.Index != i {
			t.Fatalf("chunk %d carries index %d", i, ch.Index)
		}
	}
}
