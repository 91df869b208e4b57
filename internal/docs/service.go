package docs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/synai-app/synai/internal/extract"
	"github.com/synai-app/synai/internal/retrieval"
	"github.com/synai-app/synai/internal/vector"
)

// RetryQueue schedules a later reindex attempt for a file that could not
// be indexed now. The Temporal client implements it; nil disables retries.
type RetryQueue interface {
	EnqueueReindex(ctx context.Context, userID, fileID string) error
}

// Service glues the registry, blob storage and indexer together. It
// implements retrieval.Preparer so searches can index lazily.
type Service struct {
	registry *Registry
	blobs    BlobStore
	indexer  *retrieval.Indexer
	store    vector.Store
	retry    RetryQueue
	logger   *slog.Logger
}

// NewService creates a document service. retry may be nil.
func NewService(registry *Registry, blobs BlobStore, indexer *retrieval.Indexer, store vector.Store, retry RetryQueue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		blobs:    blobs,
		indexer:  indexer,
		store:    store,
		retry:    retry,
		logger:   logger,
	}
}

// Registry exposes the underlying registry for listing and name lookups.
func (s *Service) Registry() *Registry { return s.registry }

// EnsureIndexed indexes any not-yet-processed files and returns the IDs
// that are searchable. A file that fails to index is dropped from the
// returned scope, logged, and queued for retry when the index was merely
// unreachable.
func (s *Service) EnsureIndexed(ctx context.Context, userID string, fileIDs []string) ([]string, error) {
	ready := make([]string, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		doc, err := s.registry.Get(userID, fileID)
		if err != nil {
			s.logger.Warn("search references unknown document", "user", userID, "file", fileID)
			continue
		}
		if doc.NoText {
			continue
		}
		if doc.Processed {
			ready = append(ready, fileID)
			continue
		}

		if err := s.Index(ctx, userID, fileID); err != nil {
			if errors.Is(err, extract.ErrNoText) {
				continue
			}
			s.logger.Warn("inline indexing failed, excluding file from search",
				"user", userID, "file", fileID, "error", err)
			if s.retry != nil && errors.Is(err, vector.ErrUnavailable) {
				if qerr := s.retry.EnqueueReindex(ctx, userID, fileID); qerr != nil {
					s.logger.Error("scheduling reindex failed", "file", fileID, "error", qerr)
				}
			}
			continue
		}
		ready = append(ready, fileID)
	}
	return ready, nil
}

// Index loads a document's content and (re)indexes it, updating the
// registry record. extract.ErrNoText permanently marks the document as
// unindexable.
func (s *Service) Index(ctx context.Context, userID, fileID string) error {
	doc, err := s.registry.Get(userID, fileID)
	if err != nil {
		return err
	}

	data, err := s.blobs.Read(ctx, userID, fileID)
	if err != nil {
		return err
	}

	n, err := s.indexer.Index(ctx, userID, fileID, doc.Name, data)
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			doc.NoText = true
			doc.Processed = true
			s.registry.Put(doc)
		}
		return err
	}

	doc.Processed = true
	doc.ChunkCount = n
	s.registry.Put(doc)
	return nil
}

// Delete removes a document's chunks and registry record.
func (s *Service) Delete(ctx context.Context, userID, fileID string) error {
	if err := s.store.Delete(ctx, vector.CollectionID(userID), vector.Filter{FileID: fileID}); err != nil {
		return err
	}
	s.registry.Remove(userID, fileID)
	return nil
}
