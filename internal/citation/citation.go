// Package citation converts retrieval matches into user-facing source
// citations with relevance scores.
package citation

import (
	"math"
	"sort"
	"strings"

	"github.com/synai-app/synai/internal/vector"
)

// Citation is one cited source document.
type Citation struct {
	FileID    string  `json:"file_id"`
	FileName  string  `json:"file_name"`
	PageLabel string  `json:"page_label,omitempty"`
	Relevance float64 `json:"relevance"`
	Preview   string  `json:"preview"`
}

const previewLen = 200

// broadTerms mark queries asking about the document as a whole. Fallback
// matches served for such queries deserve a floor bump: the intro chunks
// really are relevant to "summarize this".
var broadTerms = []string{"summarize", "summary", "overview", "สรุป", "ภาพรวม"}

// Rank scores matches, deduplicates per file keeping the best, and returns
// citations sorted by descending relevance. names maps file IDs to display
// names; unknown IDs keep the raw ID.
func Rank(query string, matches []vector.Match, names map[string]string) []Citation {
	broad := isBroad(query)

	best := make(map[string]Citation)
	var order []string
	for _, m := range matches {
		score := scoreMatch(m.Distance, broad)
		c, seen := best[m.FileID]
		if !seen {
			order = append(order, m.FileID)
		}
		if !seen || score > c.Relevance {
			name := names[m.FileID]
			if name == "" {
				name = m.FileID
			}
			best[m.FileID] = Citation{
				FileID:    m.FileID,
				FileName:  name,
				PageLabel: m.PageLabel,
				Relevance: score,
				Preview:   preview(m.Text),
			}
		}
	}

	out := make([]Citation, 0, len(best))
	for _, id := range order {
		out = append(out, best[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Relevance > out[j].Relevance
	})
	return out
}

// scoreMatch maps a distance to a confidence in (0, 0.99]. Close matches
// get a small multiplicative bonus; broad queries get a higher floor.
func scoreMatch(distance float64, broad bool) float64 {
	score := 1 / (1 + distance*0.35)

	if broad {
		score = math.Max(0.70, score+0.10)
	} else {
		score = math.Max(0.45, score)
	}

	if distance < 0.4 {
		score *= 1.1
		if score > 0.99 {
			score = 0.99
		}
	}

	return math.Round(score*1000) / 1000
}

// PinnedRelevance is the score for documents attached to the current turn.
// A fresh upload may not be in the index yet, so it skips distance-based
// scoring entirely.
const PinnedRelevance = 0.99

// Pinned builds a citation for a freshly uploaded document.
func Pinned(fileID, name, text string) Citation {
	return Citation{
		FileID:    fileID,
		FileName:  name,
		Relevance: PinnedRelevance,
		Preview:   preview(text),
	}
}

func isBroad(query string) bool {
	q := strings.ToLower(query)
	for _, term := range broadTerms {
		if strings.Contains(q, term) {
			return true
		}
	}
	return false
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLen {
		return text
	}
	return string(runes[:previewLen]) + "..."
}
