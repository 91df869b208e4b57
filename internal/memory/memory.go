// Package memory keeps per-session conversation history in process.
// Sessions hold a rolling window so long chats neither grow unbounded nor
// lose the recent turns the orchestrator feeds back to the model.
package memory

import (
	"sync"
	"time"

	"github.com/synai-app/synai/internal/llm"
)

// keepLimit is how many messages a session retains. The orchestrator only
// ever asks for the last few, but keeping a bit more lets clients render
// recent history without a database round trip.
const keepLimit = 20

// Turn is one stored message with its timestamp.
type Turn struct {
	Role      llm.Role
	Content   string
	Timestamp time.Time
}

// Store holds conversation windows keyed by session ID.
type Store struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{sessions: make(map[string][]Turn)}
}

// Append records a message at the end of a session, evicting the oldest
// messages beyond the keep limit.
func (s *Store) Append(sessionID string, role llm.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[sessionID], Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(turns) > keepLimit {
		turns = turns[len(turns)-keepLimit:]
	}
	s.sessions[sessionID] = turns
}

// Recent returns up to n of the newest messages, oldest first.
func (s *Store) Recent(sessionID string, n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	if n <= 0 || n > len(turns) {
		n = len(turns)
	}
	out := make([]Turn, n)
	copy(out, turns[len(turns)-n:])
	return out
}

// Clear drops a session's history.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
