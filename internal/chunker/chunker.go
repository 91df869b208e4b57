// Package chunker splits extracted document text into overlapping,
// bounded-size pieces for vector indexing.
package chunker

import (
	"strings"

	"github.com/synai-app/synai/internal/thai"
)

const (
	// DefaultSize and DefaultOverlap are rune counts tuned for short
	// embedding inputs. Overlap keeps sentences that straddle a boundary
	// retrievable from both sides.
	DefaultSize    = 600
	DefaultOverlap = 120
)

// Split cuts text into chunks of at most size runes with the given overlap.
// Thai text is packed sentence by sentence so chunk boundaries never land
// inside a word; other scripts use a sliding window that snaps back to the
// last space.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if thai.Contains(text) {
		return splitSentencePack(text, size)
	}
	return splitWindow(text, size, overlap)
}

// splitSentencePack greedily packs whole sentences into chunks. A single
// sentence longer than size becomes its own oversized chunk rather than
// being cut mid-word.
func splitSentencePack(text string, size int) []string {
	sentences := thai.SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, s := range sentences {
		sLen := len([]rune(s))
		if curLen > 0 && curLen+1+sLen > size {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(s)
		curLen += sLen
	}
	flush()
	return chunks
}

// splitWindow slides a window over whitespace-collapsed text. The right
// edge snaps back to the last space when that space falls in the second
// half of the window, so chunks end on word boundaries when possible, and
// the next window starts overlap runes before the emitted boundary so no
// text is skipped.
func splitWindow(text string, size, overlap int) []string {
	collapsed := strings.Join(strings.Fields(text), " ")
	runes := []rune(collapsed)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{collapsed}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		cut := end
		for i := end - 1; i > start; i-- {
			if runes[i] == ' ' {
				if i-start > size/2 {
					cut = i
				}
				break
			}
		}

		chunk := strings.TrimSpace(string(runes[start:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		// Advance relative to the emitted boundary, not the nominal window
		// end: a snapped-back cut would otherwise leave the text between the
		// cut and the next window start in no chunk.
		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}
