package temporal

import (
	"context"
	"errors"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/synai-app/synai/internal/docs"
	"github.com/synai-app/synai/internal/extract"
)

// ErrTypeNoText marks the non-retryable "document has no extractable text"
// activity failure.
const ErrTypeNoText = "no_text"

// Activities carries the dependencies the reindex activity needs.
type Activities struct {
	Docs   *docs.Service
	Logger *slog.Logger
}

// NewActivities creates the activity set. logger may be nil.
func NewActivities(svc *docs.Service, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{Docs: svc, Logger: logger}
}

// Reindex loads one document and runs it through extraction, chunking and
// the vector upsert. Safe to run repeatedly: the indexer deletes stale
// chunks first and chunk IDs are deterministic.
func (a *Activities) Reindex(ctx context.Context, in ReindexInput) (*ReindexOutput, error) {
	doc, err := a.Docs.Registry().Get(in.UserID, in.FileID)
	if err != nil {
		// Deleted between enqueue and execution; nothing to do.
		if errors.Is(err, docs.ErrNotFound) {
			a.Logger.Info("reindex target gone, skipping", "user", in.UserID, "file", in.FileID)
			return &ReindexOutput{}, nil
		}
		return nil, err
	}
	if doc.Processed && !doc.NoText {
		return &ReindexOutput{Chunks: doc.ChunkCount}, nil
	}

	if err := a.Docs.Index(ctx, in.UserID, in.FileID); err != nil {
		if errors.Is(err, extract.ErrNoText) {
			return nil, temporal.NewNonRetryableApplicationError(
				"document has no extractable text", ErrTypeNoText, err)
		}
		return nil, err
	}

	doc, err = a.Docs.Registry().Get(in.UserID, in.FileID)
	if err != nil {
		return nil, err
	}
	a.Logger.Info("background reindex complete",
		"user", in.UserID, "file", in.FileID, "chunks", doc.ChunkCount)
	return &ReindexOutput{Chunks: doc.ChunkCount, NoText: doc.NoText}, nil
}
