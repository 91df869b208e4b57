package observability

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readEvents(t *testing.T, path string) []AuditEvent {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening audit log: %v", err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("parsing audit line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestAuditLoggerWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewAuditLogger(&AuditConfig{Enabled: true, OutputPath: path, SessionID: "s1"})
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}

	logger.LogChatTurn("alice", "sess-1", 2*time.Second, 100, 40, "")
	logger.LogIndexError("alice", "f1", errors.New("index down"))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	chat := events[0]
	if chat.EventType != AuditEventChat || !chat.Success {
		t.Errorf("chat event = %+v", chat)
	}
	if chat.UserID != "alice" || chat.SessionID != "sess-1" {
		t.Errorf("chat identity = %s/%s", chat.UserID, chat.SessionID)
	}
	if chat.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}

	fail := events[1]
	if fail.EventType != AuditEventIndexError || fail.Success {
		t.Errorf("index error event = %+v", fail)
	}
	if fail.ErrorDetail != "index down" {
		t.Errorf("ErrorDetail = %q", fail.ErrorDetail)
	}
}

func TestAuditEventSuccessFromFailureField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewAuditLogger(&AuditConfig{Enabled: true, OutputPath: path})
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}

	logger.Event("chat", map[string]any{"failure": ""})
	logger.Event("chat", map[string]any{"failure": "quota_exceeded"})
	logger.Close()

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if !events[0].Success || events[1].Success {
		t.Errorf("success flags = %v, %v", events[0].Success, events[1].Success)
	}
}

func TestAuditLoggerDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewAuditLogger(&AuditConfig{Enabled: false, OutputPath: path})
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	logger.LogSearch("alice", 1, 3, time.Second)
	logger.Close()

	if events := readEvents(t, path); len(events) != 0 {
		t.Errorf("disabled logger wrote %d events", len(events))
	}
}

func TestAuditLoggerDefaultSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, _ := NewAuditLogger(&AuditConfig{Enabled: true, OutputPath: path})
	logger.LogSearch("alice", 2, 7, time.Second)
	logger.Close()

	events := readEvents(t, path)
	if events[0].SessionID == "" {
		t.Error("session id not defaulted")
	}
}
