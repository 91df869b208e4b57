package citation

import (
	"math"
	"strings"
	"testing"

	"github.com/synai-app/synai/internal/vector"
)

func match(fileID string, distance float64, text string) vector.Match {
	return vector.Match{
		Chunk:    vector.Chunk{ID: fileID + "_chunk_0", FileID: fileID, Text: text},
		Distance: distance,
	}
}

func TestScoreBounds(t *testing.T) {
	for _, d := range []float64{0, 0.1, 0.4, 0.6, 1.0, 1.8, 5.0} {
		for _, broad := range []bool{false, true} {
			s := scoreMatch(d, broad)
			if s < 0.45 || s > 0.99 {
				t.Errorf("scoreMatch(%v, broad=%v) = %v, out of [0.45, 0.99]", d, broad, s)
			}
		}
	}
}

func TestScoreMonotonicity(t *testing.T) {
	prev := math.Inf(1)
	for _, d := range []float64{0.05, 0.2, 0.45, 0.8, 1.2, 1.8} {
		s := scoreMatch(d, false)
		if s > prev {
			t.Errorf("score increased with distance: scoreMatch(%v) = %v > %v", d, s, prev)
		}
		prev = s
	}
}

func TestScoreCloseMatchBonus(t *testing.T) {
	near := scoreMatch(0.1, false)
	// 1/(1+0.1*0.35) = 0.9662..., ×1.1 caps at 0.99.
	if near != 0.99 {
		t.Errorf("scoreMatch(0.1) = %v, want 0.99", near)
	}
}

func TestScoreBroadQueryFloor(t *testing.T) {
	// A very distant match under a broad query gets the 0.70 floor.
	if s := scoreMatch(5.0, true); s != 0.70 {
		t.Errorf("scoreMatch(5.0, broad) = %v, want 0.70", s)
	}
	// A moderate match gets the +0.10 bump instead.
	if s := scoreMatch(1.8, true); s != 0.713 {
		t.Errorf("scoreMatch(1.8, broad) = %v, want 0.713", s)
	}
}

func TestScoreRoundedToThreeDecimals(t *testing.T) {
	s := scoreMatch(0.6, false)
	if s != math.Round(s*1000)/1000 {
		t.Errorf("score %v not rounded to 3 decimals", s)
	}
}

func TestRankDedupsPerFile(t *testing.T) {
	matches := []vector.Match{
		match("f1", 0.8, "first chunk"),
		match("f1", 0.2, "better chunk"),
		match("f2", 0.5, "other file"),
	}
	cites := Rank("what is the warranty", matches, map[string]string{
		"f1": "contract.pdf",
		"f2": "notes.txt",
	})

	if len(cites) != 2 {
		t.Fatalf("got %d citations, want 2 (dedup per file)", len(cites))
	}
	if cites[0].FileID != "f1" {
		t.Errorf("best citation = %q, want f1", cites[0].FileID)
	}
	if cites[0].Preview != "better chunk" {
		t.Errorf("kept the wrong chunk: %q", cites[0].Preview)
	}
	if cites[0].FileName != "contract.pdf" {
		t.Errorf("FileName = %q", cites[0].FileName)
	}
}

func TestRankSortsDescending(t *testing.T) {
	matches := []vector.Match{
		match("far", 1.5, "x"),
		match("near", 0.1, "x"),
		match("mid", 0.7, "x"),
	}
	cites := Rank("query", matches, nil)

	for i := 1; i < len(cites); i++ {
		if cites[i-1].Relevance < cites[i].Relevance {
			t.Fatalf("citations not sorted descending: %v then %v",
				cites[i-1].Relevance, cites[i].Relevance)
		}
	}
	if cites[0].FileID != "near" {
		t.Errorf("top citation = %q, want near", cites[0].FileID)
	}
}

func TestRankBroadQueryThai(t *testing.T) {
	cites := Rank("ช่วยสรุปเอกสารนี้", []vector.Match{match("f1", 5.0, "intro")}, nil)
	if len(cites) != 1 {
		t.Fatalf("got %d citations", len(cites))
	}
	if cites[0].Relevance != 0.70 {
		t.Errorf("Relevance = %v, want broad floor 0.70", cites[0].Relevance)
	}
}

func TestRankUnknownFileNameKeepsID(t *testing.T) {
	cites := Rank("q", []vector.Match{match("f9", 0.5, "text")}, nil)
	if cites[0].FileName != "f9" {
		t.Errorf("FileName = %q, want raw id", cites[0].FileName)
	}
}

func TestPreviewTruncation(t *testing.T) {
	long := strings.Repeat("a", 300)
	cites := Rank("q", []vector.Match{match("f1", 0.5, long)}, nil)
	if got := cites[0].Preview; len([]rune(got)) != previewLen+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("Preview length = %d, want %d + ellipsis", len([]rune(got)), previewLen)
	}

	cites = Rank("q", []vector.Match{match("f1", 0.5, "short")}, nil)
	if cites[0].Preview != "short" {
		t.Errorf("short preview altered: %q", cites[0].Preview)
	}
}
