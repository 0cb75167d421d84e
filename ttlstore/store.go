package ttlstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned by Get when the key is absent or expired.
	ErrNotFound = errors.New("ttlstore: key not found")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("ttlstore: backend unavailable")
)

// Store is a TTL-aware key-value store.
//
// IncrementWithTTL must be atomic: the counter is created at 1 with the given
// TTL when absent, and incremented without touching its TTL otherwise.
//
// Take deletes key and reports whether it was present; of several concurrent
// Take calls on one key at most one observes true.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
	Take(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// ScriptRunner is implemented by Redis-backed stores. Read-modify-write
// operations on their keys run as Lua scripts against Scripter.
type ScriptRunner interface {
	Scripter() redis.Scripter
}

// Updater is implemented by in-process stores. fn receives the current
// value of key, or nil when it is absent, and returns the replacement; a nil
// replacement deletes the key. No other write to the store interleaves with
// fn, and the key keeps its expiry.
type Updater interface {
	Update(ctx context.Context, key string, fn func(value []byte) []byte) error
}
