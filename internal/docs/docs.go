// Package docs tracks uploaded documents and their indexing state. Upload
// mechanics live elsewhere; this package is the registry the retrieval and
// chat layers consult.
package docs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned for unknown documents.
var ErrNotFound = errors.New("document not found")

// Document is one uploaded file owned by a user.
type Document struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Uploaded   time.Time `json:"uploaded"`
	Processed  bool      `json:"processed"`
	ChunkCount int       `json:"chunk_count"`
	// NoText marks documents that extracted to nothing. They stay listed
	// but are never (re)indexed.
	NoText bool `json:"no_text,omitempty"`
}

// Registry is an in-process document index keyed by owner.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Document
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]map[string]Document)}
}

// Put inserts or replaces a document record.
func (r *Registry) Put(doc Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	docs := r.byUser[doc.UserID]
	if docs == nil {
		docs = make(map[string]Document)
		r.byUser[doc.UserID] = docs
	}
	docs[doc.ID] = doc
}

// Get looks up one document.
func (r *Registry) Get(userID, fileID string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byUser[userID][fileID]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return doc, nil
}

// List returns a user's documents, newest first.
func (r *Registry) List(userID string) []Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Document, 0, len(r.byUser[userID]))
	for _, d := range r.byUser[userID] {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Uploaded.Equal(out[j].Uploaded) {
			return out[i].Uploaded.After(out[j].Uploaded)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Remove deletes a document record.
func (r *Registry) Remove(userID, fileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUser[userID], fileID)
}

// Names maps file IDs to display names for the given user. Unknown IDs are
// omitted.
func (r *Registry) Names(userID string, fileIDs []string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(fileIDs))
	for _, id := range fileIDs {
		if d, ok := r.byUser[userID][id]; ok {
			out[id] = d.Name
		}
	}
	return out
}

// BlobStore reads raw document content.
type BlobStore interface {
	Read(ctx context.Context, userID, fileID string) ([]byte, error)
}

// DirStore reads blobs from <root>/<userID>/<fileID> on the local
// filesystem.
type DirStore struct {
	root string
}

// NewDirStore creates a filesystem-backed blob store.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

func (d *DirStore) Read(ctx context.Context, userID, fileID string) ([]byte, error) {
	path := filepath.Join(d.root, filepath.Base(userID), filepath.Base(fileID))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
		}
		return nil, err
	}
	return data, nil
}

// Write stores blob content, creating the user directory as needed.
func (d *DirStore) Write(ctx context.Context, userID, fileID string, data []byte) error {
	dir := filepath.Join(d.root, filepath.Base(userID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, filepath.Base(fileID)), data, 0o644)
}
