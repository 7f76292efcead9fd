package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrRetryBudgetExhausted is returned when a caller has no retry tokens
// left in the current window.
var ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

// RetryBudgetConfig bounds how many retries a window of calls may spend,
// independent of per-call backoff: it caps the aggregate retry rate across
// many concurrent operations rather than a single operation's attempt count.
type RetryBudgetConfig struct {
	// TokensPerInterval is how many retry tokens are minted per Interval.
	TokensPerInterval int
	Interval          time.Duration
	MaxTokens         int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// DefaultRetryBudgetConfig returns sensible defaults: 10 retry tokens per
// second, capped at 100 banked tokens.
func DefaultRetryBudgetConfig() RetryBudgetConfig {
	return RetryBudgetConfig{
		TokensPerInterval: 10,
		Interval:          time.Second,
		MaxTokens:         100,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
	}
}

// RetryBudget gates retries behind a token bucket so a thundering herd of
// failing callers cannot retry-storm a degraded dependency; once the
// budget is exhausted, callers fall back to a single exponential backoff
// attempt via cenkalti/backoff rather than retrying freely.
type RetryBudget struct {
	mu       sync.Mutex
	cfg      RetryBudgetConfig
	tokens   int
	lastFill time.Time
}

// NewRetryBudget creates a RetryBudget, starting full.
func NewRetryBudget(cfg RetryBudgetConfig) *RetryBudget {
	if cfg.TokensPerInterval <= 0 {
		cfg.TokensPerInterval = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 100
	}
	return &RetryBudget{cfg: cfg, tokens: cfg.MaxTokens, lastFill: time.Now()}
}

func (b *RetryBudget) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastFill)
	if elapsed < b.cfg.Interval {
		return
	}
	periods := int(elapsed / b.cfg.Interval)
	b.tokens += periods * b.cfg.TokensPerInterval
	if b.tokens > b.cfg.MaxTokens {
		b.tokens = b.cfg.MaxTokens
	}
	b.lastFill = now
}

// withdraw attempts to spend one retry token.
func (b *RetryBudget) withdraw() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Do executes fn, retrying on error as long as the budget has tokens. Once
// the budget is exhausted it makes one final attempt through a bounded
// exponential backoff (cenkalti/backoff) instead of giving up immediately.
func (b *RetryBudget) Do(ctx context.Context, maxAttempts int, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if !b.withdraw() {
				return b.fallbackBackoff(ctx, fn)
			}
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return lastErr
}

func (b *RetryBudget) fallbackBackoff(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	if b.cfg.InitialBackoff > 0 {
		bo.InitialInterval = b.cfg.InitialBackoff
	}
	if b.cfg.MaxBackoff > 0 {
		bo.MaxInterval = b.cfg.MaxBackoff
	}
	bo.MaxElapsedTime = 0

	withMax := backoff.WithMaxRetries(bo, 1)
	withCtx := backoff.WithContext(withMax, ctx)

	err := backoff.Retry(fn, withCtx)
	if err != nil {
		return errors.Join(ErrRetryBudgetExhausted, err)
	}
	return nil
}

// AvailableTokens returns the current retry token count.
func (b *RetryBudget) AvailableTokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}
