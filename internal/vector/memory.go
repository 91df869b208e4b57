package vector

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node local runs.
// It keeps every chunk with its embedding and brute-forces cosine distance
// at query time.
type MemoryStore struct {
	embedder Embedder

	mu          sync.RWMutex
	collections map[string]map[string]memoryPoint // collection -> point id -> point
}

type memoryPoint struct {
	chunk  Chunk
	vector []float32
}

// NewMemory creates an empty in-memory store.
func NewMemory(embedder Embedder) *MemoryStore {
	return &MemoryStore{
		embedder:    embedder,
		collections: make(map[string]map[string]memoryPoint),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collections[collection]
	if col == nil {
		col = make(map[string]memoryPoint)
		s.collections[collection] = col
	}
	for i, c := range chunks {
		col[PointID(c.ID)] = memoryPoint{chunk: c, vector: vectors[i]}
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection, text string, k int, f Filter) ([]Match, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	query := vecs[0]

	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.collections[collection]
	if col == nil {
		return nil, nil
	}

	var matches []Match
	for _, p := range col {
		if !f.matches(p.chunk.FileID) {
			continue
		}
		matches = append(matches, Match{
			Chunk:    p.chunk,
			Distance: 1 - cosine(query, p.vector),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (s *MemoryStore) Fetch(ctx context.Context, collection string, f Filter, limit int) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.collections[collection]
	if col == nil {
		return nil, nil
	}

	var chunks []Chunk
	for _, p := range col {
		if !f.matches(p.chunk.FileID) {
			continue
		}
		chunks = append(chunks, p.chunk)
	}
	// Deterministic order for tests.
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ID < chunks[j].ID })
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection string, f Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.collections[collection]
	if col == nil {
		return nil
	}
	for id, p := range col {
		if f.matches(p.chunk.FileID) {
			delete(col, id)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Store = (*MemoryStore)(nil)
