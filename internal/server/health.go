// Package server carries the backend's operational surface: dependency
// probes over HTTP and ordered teardown of the retrieval stack's clients.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"
)

// Status grades a dependency. Degraded means the backend keeps answering
// with reduced quality (chat without retrieval context); down means it
// cannot serve its purpose at all.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// worse reports whether a outranks b in severity.
func (a Status) worse(b Status) bool {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusDown: 2}
	return rank[a] > rank[b]
}

// CheckResult is one probe's outcome.
type CheckResult struct {
	Name    string            `json:"name"`
	Status  Status            `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// Check probes one dependency. Critical checks gate readiness: a critical
// dependency that is down makes /ready fail so traffic is routed away,
// while a degraded non-critical one only shows up in /health.
type Check struct {
	Name     string
	Critical bool
	Run      func(ctx context.Context) CheckResult
}

// HealthReport is the /health and /ready response body.
type HealthReport struct {
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []CheckResult `json:"checks,omitempty"`
}

// probeTimeout bounds a single endpoint's worth of dependency probes.
const probeTimeout = 5 * time.Second

// HealthServer serves /health, /ready and /live. Checks run in
// registration order so the report is stable across requests.
type HealthServer struct {
	mu      sync.RWMutex
	checks  []Check
	version string
	ready   bool
	live    bool
	stopCh  chan struct{}
}

// NewHealthServer creates a health server reporting the given version.
// It starts live but not ready.
func NewHealthServer(version string) *HealthServer {
	return &HealthServer{
		version: version,
		live:    true,
		stopCh:  make(chan struct{}),
	}
}

// RegisterCheck adds a probe, replacing any existing one with the same name.
func (s *HealthServer) RegisterCheck(c Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.checks {
		if existing.Name == c.Name {
			s.checks[i] = c
			return
		}
	}
	s.checks = append(s.checks, c)
}

// SetReady flips the readiness flag.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetLive flips the liveness flag.
func (s *HealthServer) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Handler returns the probe endpoints.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/live", s.handleLive)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/livez", s.handleLive)
	return mux
}

// ListenAndServe serves the probe endpoints until Shutdown.
func (s *HealthServer) ListenAndServe(addr string) error {
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  probeTimeout,
		WriteTimeout: probeTimeout,
	}
	go func() {
		<-s.stopCh
		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()
		srv.Shutdown(ctx)
	}()
	return srv.ListenAndServe()
}

// Shutdown stops the probe endpoint. Called once, by the drain.
func (s *HealthServer) Shutdown() {
	close(s.stopCh)
}

func (s *HealthServer) snapshot() (checks []Check, version string, ready, live bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checks = make([]Check, len(s.checks))
	copy(checks, s.checks)
	return checks, s.version, s.ready, s.live
}

// handleHealth runs every probe and reports the worst status seen. Only a
// down dependency turns the response into a 503.
func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	checks, version, _, _ := s.snapshot()

	report := HealthReport{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make([]CheckResult, 0, len(checks)),
	}
	for _, c := range checks {
		result := c.Run(ctx)
		result.Name = c.Name
		report.Checks = append(report.Checks, result)
		if result.Status.worse(report.Status) {
			report.Status = result.Status
		}
	}

	code := http.StatusOK
	if report.Status == StatusDown {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, report)
}

// handleReady gates traffic: the readiness flag must be set and every
// critical probe must not be down. A degraded vector store does not block
// readiness because chat still answers without retrieval context.
func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	checks, _, ready, _ := s.snapshot()

	report := HealthReport{Status: StatusHealthy, Timestamp: time.Now().UTC()}
	if !ready {
		report.Status = StatusDown
		s.writeJSON(w, http.StatusServiceUnavailable, report)
		return
	}

	for _, c := range checks {
		if !c.Critical {
			continue
		}
		result := c.Run(ctx)
		result.Name = c.Name
		if result.Status == StatusDown {
			report.Status = StatusDown
			report.Checks = append(report.Checks, result)
		}
	}
	if report.Status == StatusDown {
		s.writeJSON(w, http.StatusServiceUnavailable, report)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *HealthServer) handleLive(w http.ResponseWriter, r *http.Request) {
	_, _, _, live := s.snapshot()

	report := HealthReport{Status: StatusHealthy, Timestamp: time.Now().UTC()}
	if !live {
		report.Status = StatusDown
		s.writeJSON(w, http.StatusServiceUnavailable, report)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *HealthServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// VectorStoreCheck probes the vector index. Degraded rather than down, and
// not critical: retrieval falls back to empty context and the service keeps
// answering.
func VectorStoreCheck(pingFn func(ctx context.Context) error) Check {
	return Check{
		Name: "vector-store",
		Run: func(ctx context.Context) CheckResult {
			if err := pingFn(ctx); err != nil {
				return CheckResult{
					Status:  StatusDegraded,
					Message: "vector store unreachable: " + err.Error(),
				}
			}
			return CheckResult{Status: StatusHealthy, Message: "vector store reachable"}
		},
	}
}

// BlobStoreCheck probes the document upload directory. Critical: without
// the originals nothing can be indexed or re-indexed.
func BlobStoreCheck(dir string) Check {
	return Check{
		Name:     "blob-store",
		Critical: true,
		Run: func(ctx context.Context) CheckResult {
			if _, err := os.Stat(dir); err != nil {
				return CheckResult{
					Status:  StatusDown,
					Message: "upload directory inaccessible: " + err.Error(),
					Details: map[string]string{"dir": dir},
				}
			}
			return CheckResult{
				Status:  StatusHealthy,
				Message: "upload directory accessible",
				Details: map[string]string{"dir": dir},
			}
		},
	}
}

// LLMCheck reports the completion provider. A nil ping only confirms that
// a provider is configured; a failing ping degrades rather than downs,
// since retrieval and indexing still work.
func LLMCheck(providerName string, pingFn func(ctx context.Context) error) Check {
	return Check{
		Name: "llm",
		Run: func(ctx context.Context) CheckResult {
			details := map[string]string{"provider": providerName}
			if pingFn == nil {
				return CheckResult{
					Status:  StatusHealthy,
					Message: "provider configured",
					Details: details,
				}
			}
			if err := pingFn(ctx); err != nil {
				return CheckResult{
					Status:  StatusDegraded,
					Message: "provider degraded: " + err.Error(),
					Details: details,
				}
			}
			return CheckResult{Status: StatusHealthy, Message: "provider reachable", Details: details}
		},
	}
}
