package index

import (
	"strings"
	"unicode"
)

// Chunking parameters. The overlap keeps context that straddles a chunk
// boundary retrievable from both sides.
const (
	ChunkSize    = 1000
	ChunkOverlap = 200
)

// SplitText splits text into chunks of at most size runes with the given
// overlap between consecutive chunks. Chunk boundaries prefer whitespace
// near the window edge so words are not cut mid-rune-sequence. Blank input
// yields no chunks.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap >= size {
		overlap = size / 2
	}

	runes := []rune(text)
	if len(strings.TrimSpace(text)) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Back up to the nearest whitespace within the last tenth of the
		// window; fall back to a hard cut when none exists.
		cut := end
		limit := end - size/10
		for cut > limit && !unicode.IsSpace(runes[cut-1]) {
			cut--
		}
		if cut == limit {
			cut = end
		}

		chunks = append(chunks, string(runes[start:cut]))
		start = cut - overlap
		if start < 0 {
			start = 0
		}
	}
	return chunks
}
