package vector

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"
)

// hashEmbedder is a deterministic bag-of-words embedder. Texts sharing
// words get closer vectors, which is all the store tests need.
type hashEmbedder struct{ dim int }

func (h hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	dim := h.dim
	if dim == 0 {
		dim = 64
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, dim)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			f := fnv.New32a()
			f.Write([]byte(w))
			vec[f.Sum32()%uint32(dim)]++
		}
		out[i] = vec
	}
	return out, nil
}

func TestCollectionID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "user_alice"},
		{"auth0|12345", "user_auth0_12345"},
		{"user@example.com", "user_user_example_com"},
		{"ABC123", "user_ABC123"},
		{"", "user_"},
	}
	for _, tt := range tests {
		if got := CollectionID(tt.in); got != tt.want {
			t.Errorf("CollectionID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("file1_chunk_0")
	b := PointID("file1_chunk_0")
	c := PointID("file1_chunk_1")
	if a != b {
		t.Errorf("same chunk id gave different point ids: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different chunk ids collided")
	}
	if len(a) != 36 {
		t.Errorf("point id %q is not a UUID", a)
	}
}

func TestMemoryQueryRanksByRelevance(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(hashEmbedder{})
	col := CollectionID("alice")

	err := s.Upsert(ctx, col, []Chunk{
		{ID: "f1_chunk_0", Text: "the total revenue was ten million", FileID: "f1"},
		{ID: "f1_chunk_1", Text: "employees enjoyed the summer party", FileID: "f1"},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	matches, err := s.Query(ctx, col, "what was the total revenue", 10, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].ID != "f1_chunk_0" {
		t.Errorf("best match = %q, want the revenue chunk", matches[0].ID)
	}
	if matches[0].Distance > matches[1].Distance {
		t.Error("matches not sorted ascending by distance")
	}
}

func TestMemoryFilterByFile(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(hashEmbedder{})
	col := CollectionID("alice")

	s.Upsert(ctx, col, []Chunk{
		{ID: "f1_chunk_0", Text: "alpha", FileID: "f1"},
		{ID: "f2_chunk_0", Text: "alpha", FileID: "f2"},
		{ID: "f3_chunk_0", Text: "alpha", FileID: "f3"},
	})

	matches, err := s.Query(ctx, col, "alpha", 10, Filter{FileIDs: []string{"f1", "f3"}})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	for _, m := range matches {
		if m.FileID == "f2" {
			t.Error("filter leaked file f2")
		}
	}
}

func TestMemoryUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(hashEmbedder{})
	col := CollectionID("alice")

	chunk := Chunk{ID: "f1_chunk_0", Text: "original", FileID: "f1"}
	s.Upsert(ctx, col, []Chunk{chunk})
	chunk.Text = "rewritten"
	s.Upsert(ctx, col, []Chunk{chunk})

	chunks, err := s.Fetch(ctx, col, Filter{FileID: "f1"}, 10)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (re-upsert must overwrite)", len(chunks))
	}
	if chunks[0].Text != "rewritten" {
		t.Errorf("Text = %q, want %q", chunks[0].Text, "rewritten")
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(hashEmbedder{})
	col := CollectionID("alice")

	s.Upsert(ctx, col, []Chunk{
		{ID: "f1_chunk_0", Text: "keep", FileID: "f1"},
		{ID: "f2_chunk_0", Text: "drop", FileID: "f2"},
	})
	if err := s.Delete(ctx, col, Filter{FileID: "f2"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	chunks, _ := s.Fetch(ctx, col, Filter{}, 10)
	if len(chunks) != 1 || chunks[0].FileID != "f1" {
		t.Errorf("after delete: %v", chunks)
	}
}

func TestMemoryCollectionsIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(hashEmbedder{})

	s.Upsert(ctx, CollectionID("alice"), []Chunk{{ID: "f1_chunk_0", Text: "secret alpha", FileID: "f1", UserID: "alice"}})
	s.Upsert(ctx, CollectionID("bob"), []Chunk{{ID: "f2_chunk_0", Text: "secret beta", FileID: "f2", UserID: "bob"}})

	matches, err := s.Query(ctx, CollectionID("bob"), "secret alpha", 10, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, m := range matches {
		if m.UserID != "bob" {
			t.Errorf("collection isolation broken: got chunk of %q", m.UserID)
		}
	}
}

func TestMemoryUnknownCollection(t *testing.T) {
	s := NewMemory(hashEmbedder{})
	matches, err := s.Query(context.Background(), "user_nobody", "anything", 5, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("got %d matches from empty collection", len(matches))
	}
}

func TestQdrantBuildFilter(t *testing.T) {
	if buildFilter(Filter{}) != nil {
		t.Error("empty filter should build nil")
	}
	f := buildFilter(Filter{FileID: "f1", FileIDs: []string{"f2"}})
	if f == nil || len(f.Must) != 1 {
		t.Fatalf("filter = %v", f)
	}
	keywords := f.Must[0].GetField().GetMatch().GetKeywords().GetStrings()
	if len(keywords) != 2 || keywords[0] != "f1" || keywords[1] != "f2" {
		t.Errorf("keywords = %v", keywords)
	}
}
