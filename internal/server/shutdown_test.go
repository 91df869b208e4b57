package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

// recorder collects hook invocations in order.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) hook(name string, phase Phase) Hook {
	return Hook{
		Name:  name,
		Phase: phase,
		Fn: func(ctx context.Context) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.names = append(r.names, name)
			return nil
		},
	}
}

func TestDrainRunsPhasesInOrder(t *testing.T) {
	r := &recorder{}
	d := NewDrain(time.Second, nil)
	// Registered deliberately out of phase order.
	d.Register(r.hook("vector-store", PhaseStores))
	d.Register(r.hook("audit-log", PhaseAudit))
	d.Register(r.hook("health-endpoint", PhaseListeners))
	d.Register(r.hook("tracing", PhaseTelemetry))
	d.Register(r.hook("reindex-worker", PhaseWorkers))

	d.Watch()
	d.Trigger()
	d.Wait()

	want := []string{"health-endpoint", "reindex-worker", "tracing", "audit-log", "vector-store"}
	if len(r.names) != len(want) {
		t.Fatalf("ran %d hooks, want %d", len(r.names), len(want))
	}
	for i, name := range want {
		if r.names[i] != name {
			t.Errorf("hook %d = %q, want %q (full order: %v)", i, r.names[i], name, r.names)
		}
	}
}

func TestDrainSamePhaseKeepsRegistrationOrder(t *testing.T) {
	r := &recorder{}
	d := NewDrain(time.Second, nil)
	d.Register(r.hook("first", PhaseStores))
	d.Register(r.hook("second", PhaseStores))
	d.Register(r.hook("third", PhaseStores))

	d.Watch()
	d.Trigger()
	d.Wait()

	if len(r.names) != 3 || r.names[0] != "first" || r.names[2] != "third" {
		t.Errorf("order = %v", r.names)
	}
}

func TestDrainTriggerIdempotent(t *testing.T) {
	r := &recorder{}
	d := NewDrain(time.Second, nil)
	d.Register(r.hook("only", PhaseStores))

	d.Watch()
	d.Trigger()
	d.Trigger()
	d.Wait()

	if len(r.names) != 1 {
		t.Errorf("hook ran %d times, want 1", len(r.names))
	}
}

func TestDrainFailingHookDoesNotBlockLaterOnes(t *testing.T) {
	r := &recorder{}
	d := NewDrain(time.Second, nil)
	d.Register(Hook{
		Name:  "flaky-tracing",
		Phase: PhaseTelemetry,
		Fn: func(ctx context.Context) error {
			return errors.New("exporter gone")
		},
	})
	d.Register(r.hook("vector-store", PhaseStores))

	d.Watch()
	d.Trigger()
	d.Wait()

	if len(r.names) != 1 || r.names[0] != "vector-store" {
		t.Errorf("later hook did not run after a failure: %v", r.names)
	}
}

func TestDrainHooksShareDeadline(t *testing.T) {
	var deadline bool
	d := NewDrain(time.Second, nil)
	d.Register(Hook{
		Name:  "checks-deadline",
		Phase: PhaseStores,
		Fn: func(ctx context.Context) error {
			_, deadline = ctx.Deadline()
			return nil
		},
	})

	d.Watch()
	d.Trigger()
	d.Wait()

	if !deadline {
		t.Error("hook context carries no deadline")
	}
}

func TestDrainStoppingSignals(t *testing.T) {
	d := NewDrain(time.Second, nil)
	select {
	case <-d.Stopping():
		t.Fatal("Stopping closed before Trigger")
	default:
	}

	d.Watch()
	d.Trigger()

	select {
	case <-d.Stopping():
	case <-time.After(time.Second):
		t.Fatal("Stopping did not close after Trigger")
	}
}

func TestGracefulServerFlipsReadinessOnDrain(t *testing.T) {
	g := NewGracefulServer("test", time.Second, nil)
	g.Drain.Watch()
	g.Health.SetReady(true)

	if code, _ := getReport(t, g.Health.Handler(), "/ready"); code != http.StatusOK {
		t.Fatalf("ready before drain, got %d", code)
	}

	g.Drain.Trigger()
	g.Wait()

	// The listeners-phase hook flipped readiness before anything closed.
	if code, _ := getReport(t, g.Health.Handler(), "/ready"); code != http.StatusServiceUnavailable {
		t.Errorf("still ready after drain: %d", code)
	}
}

func TestGracefulServerHookOrder(t *testing.T) {
	r := &recorder{}
	g := NewGracefulServer("test", time.Second, nil)
	g.Register(StopVectorStore(func() error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.names = append(r.names, "vector-store")
		return nil
	}))
	g.Register(r.hook("tracing", PhaseTelemetry))

	g.Drain.Watch()
	g.Drain.Trigger()
	g.Wait()

	// tracing (telemetry) before vector-store (stores), after the built-in
	// health-endpoint hook.
	if len(r.names) != 2 || r.names[0] != "tracing" || r.names[1] != "vector-store" {
		t.Errorf("order = %v", r.names)
	}
}

func TestHookConstructors(t *testing.T) {
	stopped := false
	w := StopTemporalWorker(func() { stopped = true })
	if w.Phase != PhaseWorkers {
		t.Errorf("worker phase = %v", w.Phase)
	}
	if err := w.Fn(context.Background()); err != nil || !stopped {
		t.Errorf("worker hook: err=%v stopped=%v", err, stopped)
	}

	tr := FlushTracing(func(ctx context.Context) error { return nil })
	if tr.Phase != PhaseTelemetry {
		t.Errorf("tracing phase = %v", tr.Phase)
	}

	au := FlushAudit(func() error { return errors.New("disk full") })
	if au.Phase != PhaseAudit {
		t.Errorf("audit phase = %v", au.Phase)
	}
	if err := au.Fn(context.Background()); err == nil {
		t.Error("audit hook swallowed the close error")
	}

	vs := StopVectorStore(func() error { return nil })
	if vs.Phase != PhaseStores {
		t.Errorf("vector store phase = %v", vs.Phase)
	}
}
