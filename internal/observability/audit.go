package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventChat        AuditEventType = "chat"
	AuditEventSearch      AuditEventType = "search"
	AuditEventIndex       AuditEventType = "index"
	AuditEventIndexError  AuditEventType = "index.error"
	AuditEventLLMRequest  AuditEventType = "llm.request"
	AuditEventLLMResponse AuditEventType = "llm.response"
	AuditEventLLMError    AuditEventType = "llm.error"
	AuditEventDocDelete   AuditEventType = "document.delete"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	SessionID   string         `json:"session_id"`
	UserID      string         `json:"user_id,omitempty"`
	Success     bool           `json:"success"`
	Duration    time.Duration  `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditLogger writes JSONL audit events.
type AuditLogger struct {
	mu        sync.Mutex
	writer    io.Writer
	sessionID string
	enabled   bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	SessionID  string
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stdout",
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	var writer io.Writer
	switch config.OutputPath {
	case "stdout", "":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		writer = f
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().UnixNano())
	}

	return &AuditLogger{
		writer:    writer,
		sessionID: sessionID,
		enabled:   config.Enabled,
	}, nil
}

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// Event records a generic event with detail fields. It satisfies the chat
// orchestrator's audit interface.
func (l *AuditLogger) Event(kind string, fields map[string]any) {
	success := true
	if f, ok := fields["failure"].(string); ok && f != "" {
		success = false
	}
	l.Log(&AuditEvent{
		EventType: AuditEventType(kind),
		Success:   success,
		Details:   fields,
	})
}

// LogChatTurn logs a completed chat turn.
func (l *AuditLogger) LogChatTurn(userID, sessionID string, duration time.Duration, promptTokens, completionTokens int, failure string) {
	l.Log(&AuditEvent{
		EventType: AuditEventChat,
		SessionID: sessionID,
		UserID:    userID,
		Success:   failure == "",
		Duration:  duration,
		Message:   "chat turn completed",
		Details: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"failure":           failure,
		},
	})
}

// LogSearch logs a retrieval run.
func (l *AuditLogger) LogSearch(userID string, fileCount, matches int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventSearch,
		UserID:    userID,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("search over %d files returned %d matches", fileCount, matches),
		Details: map[string]any{
			"file_count": fileCount,
			"matches":    matches,
		},
	})
}

// LogIndex logs a document indexing run.
func (l *AuditLogger) LogIndex(userID, fileID string, chunks int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventIndex,
		UserID:    userID,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("indexed %s into %d chunks", fileID, chunks),
		Details: map[string]any{
			"file_id": fileID,
			"chunks":  chunks,
		},
	})
}

// LogIndexError logs a failed indexing attempt.
func (l *AuditLogger) LogIndexError(userID, fileID string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventIndexError,
		UserID:      userID,
		Success:     false,
		Message:     fmt.Sprintf("indexing %s failed", fileID),
		ErrorDetail: err.Error(),
		Details: map[string]any{
			"file_id": fileID,
		},
	})
}

// LogLLMResponse logs an LLM response event.
func (l *AuditLogger) LogLLMResponse(provider, model string, duration time.Duration, inputTokens, outputTokens int) {
	l.Log(&AuditEvent{
		EventType: AuditEventLLMResponse,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("LLM response from %s/%s", provider, model),
		Details: map[string]any{
			"provider":      provider,
			"model":         model,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"total_tokens":  inputTokens + outputTokens,
		},
	})
}

// LogLLMError logs an LLM error event.
func (l *AuditLogger) LogLLMError(provider, model string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventLLMError,
		Success:     false,
		Message:     fmt.Sprintf("LLM error from %s/%s", provider, model),
		ErrorDetail: err.Error(),
		Details: map[string]any{
			"provider": provider,
			"model":    model,
		},
	})
}

// LogDocumentDelete logs a document removal.
func (l *AuditLogger) LogDocumentDelete(userID, fileID string) {
	l.Log(&AuditEvent{
		EventType: AuditEventDocDelete,
		UserID:    userID,
		Success:   true,
		Message:   fmt.Sprintf("deleted document %s", fileID),
		Details: map[string]any{
			"file_id": fileID,
		},
	})
}

// Close closes the audit logger (if using a file).
func (l *AuditLogger) Close() error {
	if closer, ok := l.writer.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}
