package providers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/erangalds/t-tool-calling-with-llms/internal/schema"
)

// RetryPolicy bounds retries of transient provider failures.
type RetryPolicy struct {
	MaxAttempts         int // total attempts including the first
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryPolicy makes three attempts with randomized exponential waits
// capped at 40s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         3,
		InitialInterval:     time.Second,
		MaxInterval:         40 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	def := DefaultRetryPolicy()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = def.InitialInterval
	}
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval <= 0 {
		b.MaxInterval = def.MaxInterval
	}
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = def.Multiplier
	}
	b.RandomizationFactor = p.RandomizationFactor
	if b.RandomizationFactor < 0 || b.RandomizationFactor > 1 {
		b.RandomizationFactor = def.RandomizationFactor
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// RetryingProvider decorates an LLMProvider with bounded retries of
// transient failures. Non-transient errors are returned immediately.
type RetryingProvider struct {
	inner  schema.LLMProvider
	policy RetryPolicy
}

// WithRetry wraps p with policy.
func WithRetry(p schema.LLMProvider, policy RetryPolicy) *RetryingProvider {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	return &RetryingProvider{inner: p, policy: policy}
}

func (r *RetryingProvider) DefaultModel() string { return r.inner.DefaultModel() }

// Chat implements schema.LLMProvider. After the last failed attempt the error
// wraps schema.ErrTransientNetwork.
func (r *RetryingProvider) Chat(
	ctx context.Context,
	conv *schema.Conversation,
	tools []schema.ToolSpec,
	opts schema.ChatOptions,
) (schema.LLMResponse, error) {
	var resp schema.LLMResponse
	attempts := 0

	op := func() error {
		attempts++
		var err error
		resp, err = r.inner.Chat(ctx, conv, tools, opts)
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("Provider call failed, retrying",
			"attempt", attempts, "max_attempts", r.policy.MaxAttempts, "wait", wait, "err", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.policy.backOff(), uint64(r.policy.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil:
		return resp, nil
	case IsTransient(err):
		return schema.LLMResponse{}, fmt.Errorf("%w: gave up after %d attempts: %w", schema.ErrTransientNetwork, attempts, err)
	default:
		return schema.LLMResponse{}, err
	}
}
