package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/synai-app/synai/internal/extract"
	"github.com/synai-app/synai/internal/vector"
)

func TestIndexerWritesChunks(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemory(hashEmbedder{})
	ix := NewIndexer(store, 100, 20, nil)

	text := strings.Repeat("every good report needs plenty of words to fill chunks ", 10)
	n, err := ix.Index(ctx, "alice", "file-1", "report.txt", []byte(text))
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if n < 2 {
		t.Fatalf("chunks = %d, want several", n)
	}

	chunks, err := store.Fetch(ctx, vector.CollectionID("alice"), vector.Filter{FileID: "file-1"}, 100)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(chunks) != n {
		t.Errorf("stored %d chunks, indexer reported %d", len(chunks), n)
	}
	if chunks[0].ID != "file-1_chunk_0" {
		t.Errorf("chunk id = %q, want file-1_chunk_0", chunks[0].ID)
	}
	for _, c := range chunks {
		if c.UserID != "alice" || c.FileID != "file-1" {
			t.Errorf("chunk metadata wrong: %+v", c)
		}
	}
}

func TestIndexerReindexRemovesStaleChunks(t *testing.T) {
	ctx := context.Background()
	store := vector.NewMemory(hashEmbedder{})
	ix := NewIndexer(store, 100, 20, nil)

	long := strings.Repeat("many words in this longer early version of the file ", 10)
	if _, err := ix.Index(ctx, "alice", "file-1", "doc.txt", []byte(long)); err != nil {
		t.Fatalf("first Index: %v", err)
	}

	n, err := ix.Index(ctx, "alice", "file-1", "doc.txt", []byte("now just one tiny chunk"))
	if err != nil {
		t.Fatalf("second Index: %v", err)
	}
	if n != 1 {
		t.Fatalf("chunks = %d, want 1", n)
	}

	chunks, _ := store.Fetch(ctx, vector.CollectionID("alice"), vector.Filter{FileID: "file-1"}, 100)
	if len(chunks) != 1 {
		t.Errorf("stale chunks survived reindex: %d stored", len(chunks))
	}
}

func TestIndexerNoText(t *testing.T) {
	store := vector.NewMemory(hashEmbedder{})
	ix := NewIndexer(store, 0, 0, nil)

	_, err := ix.Index(context.Background(), "alice", "file-1", "photo.png", []byte{0x89})
	if !errors.Is(err, extract.ErrNoText) {
		t.Errorf("err = %v, want ErrNoText", err)
	}
}
