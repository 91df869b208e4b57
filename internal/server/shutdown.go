package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// Phase orders teardown. The backend drains outward-in: stop taking work,
// drain background workers, flush telemetry, write the last audit records,
// and only then close the storage clients nothing can still touch.
type Phase int

const (
	PhaseListeners Phase = iota
	PhaseWorkers
	PhaseTelemetry
	PhaseAudit
	PhaseStores
)

func (p Phase) String() string {
	switch p {
	case PhaseListeners:
		return "listeners"
	case PhaseWorkers:
		return "workers"
	case PhaseTelemetry:
		return "telemetry"
	case PhaseAudit:
		return "audit"
	case PhaseStores:
		return "stores"
	}
	return "unknown"
}

// Hook is one teardown step.
type Hook struct {
	Name  string
	Phase Phase
	Fn    func(ctx context.Context) error
}

// DefaultDrainTimeout bounds how long teardown may take overall.
const DefaultDrainTimeout = 30 * time.Second

// Drain runs registered hooks in phase order once a signal arrives or
// Trigger is called. Hooks within a phase run in registration order, and a
// failing hook never blocks the ones after it.
type Drain struct {
	mu      sync.Mutex
	hooks   []Hook
	timeout time.Duration
	logger  *slog.Logger

	watching bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
}

// NewDrain creates a drain with the given overall timeout. A non-positive
// timeout gets the default; a nil logger gets slog's default.
func NewDrain(timeout time.Duration, logger *slog.Logger) *Drain {
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Drain{
		timeout: timeout,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Register adds a teardown hook. Safe to call before Watch only.
func (d *Drain) Register(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Watch starts listening for shutdown signals (SIGTERM and SIGINT when none
// are given) in the background. Calling it twice is a no-op.
func (d *Drain) Watch(signals ...os.Signal) {
	d.mu.Lock()
	if d.watching {
		d.mu.Unlock()
		return
	}
	d.watching = true
	d.mu.Unlock()

	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGTERM, syscall.SIGINT}
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)

	go func() {
		select {
		case sig := <-sigCh:
			d.logger.Info("shutdown signal received", "signal", sig.String())
		case <-d.stopCh:
		}
		signal.Stop(sigCh)
		d.run()
	}()
}

// Trigger starts teardown without a signal. Idempotent.
func (d *Drain) Trigger() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
}

// Stopping closes as soon as teardown begins.
func (d *Drain) Stopping() <-chan struct{} {
	return d.stopCh
}

// Wait blocks until every hook has run.
func (d *Drain) Wait() {
	<-d.doneCh
}

func (d *Drain) run() {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	d.mu.Lock()
	hooks := make([]Hook, len(d.hooks))
	copy(hooks, d.hooks)
	d.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Phase < hooks[j].Phase
	})

	for _, h := range hooks {
		if err := h.Fn(ctx); err != nil {
			d.logger.Warn("teardown hook failed", "hook", h.Name, "phase", h.Phase.String(), "error", err)
		}
	}

	d.doneOnce.Do(func() {
		close(d.doneCh)
	})
}

// StopTemporalWorker drains the background reindex worker.
func StopTemporalWorker(stopFn func()) Hook {
	return Hook{
		Name:  "temporal-worker",
		Phase: PhaseWorkers,
		Fn: func(ctx context.Context) error {
			stopFn()
			return nil
		},
	}
}

// FlushTracing shuts the trace exporter down, flushing buffered spans.
func FlushTracing(shutdownFn func(ctx context.Context) error) Hook {
	return Hook{
		Name:  "tracing",
		Phase: PhaseTelemetry,
		Fn:    shutdownFn,
	}
}

// FlushAudit closes the audit log after telemetry, so teardown itself can
// still be recorded.
func FlushAudit(closeFn func() error) Hook {
	return Hook{
		Name:  "audit-log",
		Phase: PhaseAudit,
		Fn: func(ctx context.Context) error {
			return closeFn()
		},
	}
}

// StopVectorStore closes the vector index client once in-flight searches
// are done.
func StopVectorStore(closeFn func() error) Hook {
	return Hook{
		Name:  "vector-store",
		Phase: PhaseStores,
		Fn: func(ctx context.Context) error {
			return closeFn()
		},
	}
}

// GracefulServer couples the health endpoint with ordered teardown: the
// moment draining starts, readiness flips off and the endpoint stops, so
// load balancers route away before any client is closed.
type GracefulServer struct {
	Health *HealthServer
	Drain  *Drain
}

// NewGracefulServer wires a health server into a drain.
func NewGracefulServer(version string, timeout time.Duration, logger *slog.Logger) *GracefulServer {
	health := NewHealthServer(version)
	drain := NewDrain(timeout, logger)

	drain.Register(Hook{
		Name:  "health-endpoint",
		Phase: PhaseListeners,
		Fn: func(ctx context.Context) error {
			health.SetReady(false)
			health.Shutdown()
			return nil
		},
	})

	return &GracefulServer{Health: health, Drain: drain}
}

// Start begins watching for signals and serves the health endpoint.
func (g *GracefulServer) Start(addr string) error {
	g.Drain.Watch()
	go g.Health.ListenAndServe(addr)
	g.Health.SetReady(true)
	return nil
}

// Register adds a teardown hook.
func (g *GracefulServer) Register(h Hook) {
	g.Drain.Register(h)
}

// Wait blocks until teardown completes.
func (g *GracefulServer) Wait() {
	g.Drain.Wait()
}
