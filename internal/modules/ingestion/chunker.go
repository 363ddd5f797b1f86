package ingestion

import "strings"

// Chunk is one contiguous window of source text. Metadata carries
// caller-supplied facts about the window (dates, titles, timestamps).
type Chunk struct {
	Text        string
	Index       int
	PageNumbers []int
	PageRange   string
	Metadata    map[string]any
}

const (
	defaultChunkSize    = 1200
	defaultChunkOverlap = 150
	sentenceLookback    = 200
	whitespaceLookback  = 100
)

var sentenceEnders = ".!?"

// SplitIntoChunks splits long text into overlapping windows of roughly
// chunkSize runes. Each window prefers to end at sentence-ending punctuation
// within the last 200 runes, else at whitespace within the last 100, else at
// the hard boundary.
func SplitIntoChunks(text string, chunkSize, overlap int) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Work in runes so we never cut a UTF-8 sequence in half
	r := []rune(text)

	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkSize < 200 {
		chunkSize = 200
	}
	if overlap < 0 {
		overlap = defaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}

	out := make([]Chunk, 0, (len(r)/(chunkSize-overlap))+1)
	start := 0
	for start < len(r) {
		end := start + chunkSize
		if end >= len(r) {
			end = len(r)
		} else {
			end = breakPoint(r, start, end)
		}

		piece := strings.TrimSpace(string(r[start:end]))
		if piece != "" {
			out = append(out, Chunk{Text: piece, Index: len(out)})
		}
		if end == len(r) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// breakPoint slides the window end back to a natural boundary: a sentence
// ender in the last 200 runes wins over whitespace in the last 100.
func breakPoint(r []rune, start, end int) int {
	low := end - sentenceLookback
	if low < start+1 {
		low = start + 1
	}
	for i := end - 1; i >= low; i-- {
		if strings.ContainsRune(sentenceEnders, r[i]) {
			return i + 1
		}
	}
	low = end - whitespaceLookback
	if low < start+1 {
		low = start + 1
	}
	for i := end - 1; i >= low; i-- {
		if r[i] == ' ' || r[i] == '\n' || r[i] == '\t' {
			return i
		}
	}
	return end
}
