// Package usage accounts for LLM consumption per user. Records accumulate
// in process and aggregate over daily, weekly and monthly windows.
package usage

import (
	"sync"
	"time"
)

// Record is the usage of one completed chat turn.
type Record struct {
	UserID           string        `json:"user_id"`
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	Latency          time.Duration `json:"latency"`
	Timestamp        time.Time     `json:"timestamp"`
}

// Summary aggregates records over a window.
type Summary struct {
	Turns            int           `json:"turns"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	AvgLatency       time.Duration `json:"avg_latency"`
}

// Tracker collects usage records.
type Tracker struct {
	mu      sync.RWMutex
	records map[string][]Record // by user
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string][]Record),
		now:     time.Now,
	}
}

// Add appends a record, stamping it with the current time when unset.
func (t *Tracker) Add(r Record) {
	if r.Timestamp.IsZero() {
		r.Timestamp = t.now()
	}
	t.mu.Lock()
	t.records[r.UserID] = append(t.records[r.UserID], r)
	t.mu.Unlock()
}

// Daily summarizes the last 24 hours for a user.
func (t *Tracker) Daily(userID string) Summary {
	return t.window(userID, 24*time.Hour)
}

// Weekly summarizes the last 7 days for a user.
func (t *Tracker) Weekly(userID string) Summary {
	return t.window(userID, 7*24*time.Hour)
}

// Monthly summarizes the last 30 days for a user.
func (t *Tracker) Monthly(userID string) Summary {
	return t.window(userID, 30*24*time.Hour)
}

func (t *Tracker) window(userID string, span time.Duration) Summary {
	cutoff := t.now().Add(-span)

	t.mu.RLock()
	defer t.mu.RUnlock()

	var s Summary
	var totalLatency time.Duration
	for _, r := range t.records[userID] {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		s.Turns++
		s.PromptTokens += r.PromptTokens
		s.CompletionTokens += r.CompletionTokens
		totalLatency += r.Latency
	}
	s.TotalTokens = s.PromptTokens + s.CompletionTokens
	if s.Turns > 0 {
		s.AvgLatency = totalLatency / time.Duration(s.Turns)
	}
	return s
}
