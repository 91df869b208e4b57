package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func getReport(t *testing.T, h http.Handler, path string) (int, HealthReport) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var report HealthReport
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decoding %s response: %v", path, err)
	}
	return rec.Code, report
}

func staticCheck(name string, critical bool, status Status) Check {
	return Check{
		Name:     name,
		Critical: critical,
		Run: func(ctx context.Context) CheckResult {
			return CheckResult{Status: status}
		},
	}
}

func TestHealthReportsWorstStatus(t *testing.T) {
	s := NewHealthServer("v1")
	s.RegisterCheck(staticCheck("vector-store", false, StatusDegraded))
	s.RegisterCheck(staticCheck("blob-store", true, StatusHealthy))

	code, report := getReport(t, s.Handler(), "/health")
	if code != http.StatusOK {
		t.Errorf("status code = %d, degraded must still be 200", code)
	}
	if report.Status != StatusDegraded {
		t.Errorf("overall = %q, want degraded", report.Status)
	}
	if report.Version != "v1" {
		t.Errorf("version = %q", report.Version)
	}
}

func TestHealthDownDependencyIs503(t *testing.T) {
	s := NewHealthServer("")
	s.RegisterCheck(staticCheck("blob-store", true, StatusDown))

	code, report := getReport(t, s.Handler(), "/health")
	if code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", code)
	}
	if report.Status != StatusDown {
		t.Errorf("overall = %q, want down", report.Status)
	}
}

func TestHealthChecksKeepRegistrationOrder(t *testing.T) {
	s := NewHealthServer("")
	s.RegisterCheck(staticCheck("vector-store", false, StatusHealthy))
	s.RegisterCheck(staticCheck("blob-store", true, StatusHealthy))
	s.RegisterCheck(staticCheck("llm", false, StatusHealthy))

	_, report := getReport(t, s.Handler(), "/health")
	want := []string{"vector-store", "blob-store", "llm"}
	if len(report.Checks) != len(want) {
		t.Fatalf("got %d checks, want %d", len(report.Checks), len(want))
	}
	for i, name := range want {
		if report.Checks[i].Name != name {
			t.Errorf("check %d = %q, want %q", i, report.Checks[i].Name, name)
		}
	}
}

func TestRegisterCheckReplacesByName(t *testing.T) {
	s := NewHealthServer("")
	s.RegisterCheck(staticCheck("llm", false, StatusDegraded))
	s.RegisterCheck(staticCheck("llm", false, StatusHealthy))

	_, report := getReport(t, s.Handler(), "/health")
	if len(report.Checks) != 1 {
		t.Fatalf("got %d checks, want 1 after replacement", len(report.Checks))
	}
	if report.Checks[0].Status != StatusHealthy {
		t.Errorf("replacement did not take: %q", report.Checks[0].Status)
	}
}

func TestReadinessFlag(t *testing.T) {
	s := NewHealthServer("")

	code, _ := getReport(t, s.Handler(), "/ready")
	if code != http.StatusServiceUnavailable {
		t.Errorf("not ready yet, got %d", code)
	}

	s.SetReady(true)
	code, _ = getReport(t, s.Handler(), "/ready")
	if code != http.StatusOK {
		t.Errorf("ready, got %d", code)
	}
}

func TestReadinessGatedByCriticalChecks(t *testing.T) {
	s := NewHealthServer("")
	s.SetReady(true)
	// A degraded vector store must not block readiness: chat still answers
	// without retrieval context.
	s.RegisterCheck(staticCheck("vector-store", false, StatusDegraded))
	s.RegisterCheck(staticCheck("blob-store", true, StatusHealthy))

	code, _ := getReport(t, s.Handler(), "/ready")
	if code != http.StatusOK {
		t.Errorf("degraded non-critical check blocked readiness: %d", code)
	}

	// A down critical dependency must.
	s.RegisterCheck(staticCheck("blob-store", true, StatusDown))
	code, report := getReport(t, s.Handler(), "/ready")
	if code != http.StatusServiceUnavailable {
		t.Errorf("down critical check did not block readiness: %d", code)
	}
	if len(report.Checks) != 1 || report.Checks[0].Name != "blob-store" {
		t.Errorf("failing check not reported: %+v", report.Checks)
	}
}

func TestLiveness(t *testing.T) {
	s := NewHealthServer("")

	code, _ := getReport(t, s.Handler(), "/live")
	if code != http.StatusOK {
		t.Errorf("fresh server not live: %d", code)
	}

	s.SetLive(false)
	code, _ = getReport(t, s.Handler(), "/live")
	if code != http.StatusServiceUnavailable {
		t.Errorf("SetLive(false) ignored: %d", code)
	}
}

func TestKubernetesAliases(t *testing.T) {
	s := NewHealthServer("")
	s.SetReady(true)
	for _, path := range []string{"/healthz", "/readyz", "/livez"} {
		code, _ := getReport(t, s.Handler(), path)
		if code != http.StatusOK {
			t.Errorf("%s = %d, want 200", path, code)
		}
	}
}

func TestVectorStoreCheckDegrades(t *testing.T) {
	c := VectorStoreCheck(func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	if c.Critical {
		t.Error("vector store must not gate readiness")
	}
	result := c.Run(context.Background())
	if result.Status != StatusDegraded {
		t.Errorf("status = %q, want degraded", result.Status)
	}

	ok := VectorStoreCheck(func(ctx context.Context) error { return nil })
	if got := ok.Run(context.Background()); got.Status != StatusHealthy {
		t.Errorf("status = %q, want healthy", got.Status)
	}
}

func TestBlobStoreCheck(t *testing.T) {
	dir := t.TempDir()
	c := BlobStoreCheck(dir)
	if !c.Critical {
		t.Error("blob store must gate readiness")
	}
	if got := c.Run(context.Background()); got.Status != StatusHealthy {
		t.Errorf("status = %q, want healthy", got.Status)
	}

	missing := BlobStoreCheck(filepath.Join(dir, "nope"))
	got := missing.Run(context.Background())
	if got.Status != StatusDown {
		t.Errorf("status = %q, want down for missing dir", got.Status)
	}
}

func TestLLMCheckNilPing(t *testing.T) {
	c := LLMCheck("openai", nil)
	got := c.Run(context.Background())
	if got.Status != StatusHealthy {
		t.Errorf("status = %q, want healthy for configured provider", got.Status)
	}
	if got.Details["provider"] != "openai" {
		t.Errorf("details = %v", got.Details)
	}

	failing := LLMCheck("openai", func(ctx context.Context) error {
		return errors.New("401 unauthorized")
	})
	if got := failing.Run(context.Background()); got.Status != StatusDegraded {
		t.Errorf("status = %q, want degraded", got.Status)
	}
}
