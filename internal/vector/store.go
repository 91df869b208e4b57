// Package vector provides per-user vector collections over pluggable
// backends. Embedding happens inside the store so callers hand over text,
// not vectors.
package vector

import (
	"context"
	"errors"
	"strings"
)

// ErrUnavailable is returned when the vector backend cannot be reached.
// Retrieval treats it as "no results" rather than failing the chat turn.
var ErrUnavailable = errors.New("vector index unavailable")

// Chunk is one indexed piece of a document.
type Chunk struct {
	ID         string // "{fileID}_chunk_{index}"
	Text       string
	FileID     string
	UserID     string
	Page       int
	PageLabel  string
	ChunkIndex int
}

// Match is a chunk returned from a query with its distance from the query
// embedding. Lower is closer.
type Match struct {
	Chunk
	Distance float64
}

// Filter narrows queries and deletes to specific files. The zero value
// matches everything in the collection.
type Filter struct {
	FileID  string
	FileIDs []string
}

func (f Filter) empty() bool {
	return f.FileID == "" && len(f.FileIDs) == 0
}

func (f Filter) matches(fileID string) bool {
	if f.empty() {
		return true
	}
	if f.FileID != "" && f.FileID == fileID {
		return true
	}
	for _, id := range f.FileIDs {
		if id == fileID {
			return true
		}
	}
	return false
}

// Store is a per-collection vector index.
type Store interface {
	// Upsert embeds and writes chunks. Re-upserting the same chunk IDs
	// overwrites in place.
	Upsert(ctx context.Context, collection string, chunks []Chunk) error
	// Query embeds text and returns the k nearest chunks, ascending by
	// distance.
	Query(ctx context.Context, collection, text string, k int, f Filter) ([]Match, error)
	// Fetch returns up to limit chunks without ranking, for fallback
	// stages that scan rather than search.
	Fetch(ctx context.Context, collection string, f Filter, limit int) ([]Chunk, error)
	// Delete removes chunks matching the filter.
	Delete(ctx context.Context, collection string, f Filter) error
	// Close releases backend resources.
	Close() error
}

// CollectionID derives the collection name for a user. Every character
// outside [a-zA-Z0-9] becomes an underscore so arbitrary auth-provider IDs
// stay valid backend identifiers.
func CollectionID(userID string) string {
	var sb strings.Builder
	sb.WriteString("user_")
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
