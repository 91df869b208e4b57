package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/synai-app/synai/internal/chunker"
	"github.com/synai-app/synai/internal/extract"
	"github.com/synai-app/synai/internal/vector"
)

// Indexer turns raw uploads into indexed chunks.
type Indexer struct {
	store     vector.Store
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

// NewIndexer creates an indexer with the given chunking parameters.
// Zero values fall back to the chunker defaults.
func NewIndexer(store vector.Store, chunkSize, overlap int, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, chunkSize: chunkSize, overlap: overlap, logger: logger}
}

// Index extracts, chunks and upserts one document into the owner's
// collection, replacing whatever was previously indexed for the file.
// It returns the number of chunks written. extract.ErrNoText is passed
// through so callers can mark the file as having no indexable content.
func (ix *Indexer) Index(ctx context.Context, userID, fileID, filename string, data []byte) (int, error) {
	units, err := extract.Extract(filename, data)
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			return 0, err
		}
		return 0, fmt.Errorf("extracting %s: %w", filename, err)
	}

	var chunks []vector.Chunk
	idx := 0
	for _, u := range units {
		for _, text := range chunker.Split(u.Text, ix.chunkSize, ix.overlap) {
			chunks = append(chunks, vector.Chunk{
				ID:         fmt.Sprintf("%s_chunk_%d", fileID, idx),
				Text:       text,
				FileID:     fileID,
				UserID:     userID,
				Page:       u.Page,
				PageLabel:  u.PageLabel,
				ChunkIndex: idx,
			})
			idx++
		}
	}
	if len(chunks) == 0 {
		return 0, extract.ErrNoText
	}

	collection := vector.CollectionID(userID)

	// Delete first so a shrinking document leaves no stale tail chunks.
	// Chunk IDs are deterministic, so surviving chunks are overwritten in
	// place and a crash between delete and upsert is repaired by rerunning.
	if err := ix.store.Delete(ctx, collection, vector.Filter{FileID: fileID}); err != nil {
		return 0, fmt.Errorf("clearing stale chunks for %s: %w", fileID, err)
	}
	if err := ix.store.Upsert(ctx, collection, chunks); err != nil {
		return 0, fmt.Errorf("indexing %s: %w", fileID, err)
	}

	ix.logger.Info("indexed document",
		"user", userID, "file", fileID, "name", filename, "chunks", len(chunks))
	return len(chunks), nil
}
