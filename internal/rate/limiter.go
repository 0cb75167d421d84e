package rate

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goCred/ttlstore"
)

// Limiter enforces fixed-window budgets on top of a [ttlstore.Store].
type Limiter struct {
	store  ttlstore.Store
	logger *slog.Logger
}

// New creates a [Limiter] over store. A nil logger falls back to slog.Default.
func New(store ttlstore.Store, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		store:  store,
		logger: logger,
	}
}

// CheckAndConsume records one hit on key and reports whether the caller is
// over maxAttempts within window. Backend failures and nonsensical counter
// values report false.
func (l *Limiter) CheckAndConsume(ctx context.Context, key string, maxAttempts int, window time.Duration) bool {
	count, err := l.store.IncrementWithTTL(ctx, key, window)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limiter unavailable, allowing request",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return false
	}
	if count <= 0 {
		l.logger.WarnContext(ctx, "rate limiter returned non-positive count, allowing request",
			slog.String("key", key),
			slog.Int64("count", count),
		)
		return false
	}

	return count > int64(maxAttempts)
}

// Reset removes the counter for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.store.Delete(ctx, key)
}
