package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// FailureKind classifies a completion delegate failure. The chat orchestrator
// folds failures into the response content instead of surfacing them, so the
// classification is the only machine-readable trace of what went wrong.
type FailureKind string

const (
	FailureNone    FailureKind = ""
	FailureTimeout FailureKind = "timeout"
	FailureQuota   FailureKind = "quota_exceeded"
	FailureAuth    FailureKind = "auth_failure"
	FailureOther   FailureKind = "error"
)

// Classify maps a provider error onto a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "RESOURCE_EXHAUSTED"),
		strings.Contains(msg, "Too Many Requests"),
		strings.Contains(msg, "insufficient_quota"):
		return FailureQuota
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "Unauthorized"),
		strings.Contains(msg, "invalid api key"),
		strings.Contains(msg, "API key not valid"):
		return FailureAuth
	}
	return FailureOther
}

// Retryable reports whether an error is worth retrying. Quota and auth
// failures never clear on retry; timeouts and server errors usually do.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	switch Classify(err) {
	case FailureTimeout:
		return true
	case FailureAuth:
		return false
	case FailureQuota:
		// Per-minute rate limits recover; daily token limits do not.
		msg := err.Error()
		if strings.Contains(msg, "tokens per day") || strings.Contains(msg, "TPD") {
			return false
		}
		return true
	}

	msg := err.Error()
	// Server errors (5xx) are retryable.
	if strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "504") {
		return true
	}
	// Remaining client errors are not.
	if strings.Contains(msg, "400") || strings.Contains(msg, "404") {
		return false
	}

	// Default: retry unknown errors, conservative for flaky LLM endpoints.
	return true
}
