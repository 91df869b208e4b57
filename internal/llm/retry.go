package llm

import (
	"context"
	"fmt"
	"time"
)

// retryProvider wraps a Provider with per-request timeout and exponential
// backoff retry on transient failures.
type retryProvider struct {
	inner      Provider
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// WrapWithRetry wraps a provider so every call carries a deadline and
// transient failures are retried with exponential backoff.
func WrapWithRetry(p Provider, cfg ProviderConfig) Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 1 * time.Second
	}
	return &retryProvider{
		inner:      p,
		timeout:    timeout,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

func (r *retryProvider) Name() string { return r.inner.Name() }

func (r *retryProvider) Complete(ctx context.Context, prompt *Prompt, opts *RequestOptions) (*Response, error) {
	var resp *Response
	err := r.do(ctx, func(attemptCtx context.Context) error {
		var err error
		resp, err = r.inner.Complete(attemptCtx, prompt, opts)
		return err
	})
	return resp, err
}

func (r *retryProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := r.do(ctx, func(attemptCtx context.Context) error {
		var err error
		vecs, err = r.inner.Embed(attemptCtx, texts)
		return err
	})
	return vecs, err
}

func (r *retryProvider) do(ctx context.Context, call func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := call(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !Retryable(err) {
			return err
		}
	}
	return fmt.Errorf("after %d attempts: %w", r.maxRetries+1, lastErr)
}
