package usage

import (
	"testing"
	"time"
)

func trackerAt(now time.Time) *Tracker {
	t := NewTracker()
	t.now = func() time.Time { return now }
	return t
}

func TestDailySummary(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	tr := trackerAt(now)

	tr.Add(Record{UserID: "alice", PromptTokens: 100, CompletionTokens: 50, Latency: 2 * time.Second, Timestamp: now.Add(-time.Hour)})
	tr.Add(Record{UserID: "alice", PromptTokens: 200, CompletionTokens: 100, Latency: 4 * time.Second, Timestamp: now.Add(-2 * time.Hour)})
	// Outside the daily window.
	tr.Add(Record{UserID: "alice", PromptTokens: 999, CompletionTokens: 999, Timestamp: now.Add(-25 * time.Hour)})

	s := tr.Daily("alice")
	if s.Turns != 2 {
		t.Errorf("Turns = %d, want 2", s.Turns)
	}
	if s.TotalTokens != 450 {
		t.Errorf("TotalTokens = %d, want 450", s.TotalTokens)
	}
	if s.AvgLatency != 3*time.Second {
		t.Errorf("AvgLatency = %v, want 3s", s.AvgLatency)
	}
}

func TestWindowsWiden(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	tr := trackerAt(now)

	tr.Add(Record{UserID: "alice", PromptTokens: 1, Timestamp: now.Add(-time.Hour)})
	tr.Add(Record{UserID: "alice", PromptTokens: 1, Timestamp: now.Add(-3 * 24 * time.Hour)})
	tr.Add(Record{UserID: "alice", PromptTokens: 1, Timestamp: now.Add(-20 * 24 * time.Hour)})

	if got := tr.Daily("alice").Turns; got != 1 {
		t.Errorf("Daily.Turns = %d, want 1", got)
	}
	if got := tr.Weekly("alice").Turns; got != 2 {
		t.Errorf("Weekly.Turns = %d, want 2", got)
	}
	if got := tr.Monthly("alice").Turns; got != 3 {
		t.Errorf("Monthly.Turns = %d, want 3", got)
	}
}

func TestUsersIsolated(t *testing.T) {
	tr := NewTracker()
	tr.Add(Record{UserID: "alice", PromptTokens: 10})

	if got := tr.Daily("bob").Turns; got != 0 {
		t.Errorf("bob sees %d of alice's turns", got)
	}
}

func TestAddStampsTimestamp(t *testing.T) {
	tr := NewTracker()
	tr.Add(Record{UserID: "alice", PromptTokens: 5})

	if got := tr.Daily("alice").Turns; got != 1 {
		t.Errorf("unstamped record not visible in daily window: %d turns", got)
	}
}

func TestEmptySummary(t *testing.T) {
	tr := NewTracker()
	s := tr.Daily("nobody")
	if s.Turns != 0 || s.TotalTokens != 0 || s.AvgLatency != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}
