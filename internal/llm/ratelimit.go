package llm

import (
	"context"
	"sync"
	"time"
)

// rateLimitedProvider throttles calls to an upstream provider using a
// sliding one-minute window. Hosted completion APIs enforce per-minute
// request quotas; throttling locally keeps bursts from burning retries.
type rateLimitedProvider struct {
	inner  Provider
	limit  int
	window time.Duration

	mu    sync.Mutex
	calls []time.Time
}

// WrapWithRateLimit wraps a provider with a requests-per-minute cap.
// A non-positive rpm disables throttling.
func WrapWithRateLimit(p Provider, rpm int) Provider {
	if rpm <= 0 {
		return p
	}
	return &rateLimitedProvider{
		inner:  p,
		limit:  rpm,
		window: time.Minute,
	}
}

func (r *rateLimitedProvider) Name() string { return r.inner.Name() }

func (r *rateLimitedProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Complete(ctx, prompt, opts)
}

func (r *rateLimitedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

func (r *rateLimitedProvider) wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-r.window)
		kept := r.calls[:0]
		for _, t := range r.calls {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		r.calls = kept

		if len(r.calls) < r.limit {
			r.calls = append(r.calls, now)
			r.mu.Unlock()
			return nil
		}
		sleep := r.calls[0].Add(r.window).Sub(now)
		r.mu.Unlock()

		if sleep < 10*time.Millisecond {
			sleep = 10 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}
