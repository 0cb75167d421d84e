package ttlstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v2"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory implements [Store] in process memory. Values are copied on the way
// in and out. Expiry is enforced against the injected clock on every read so
// tests can advance time without sleeping.
type Memory struct {
	mu    sync.Mutex
	cache *ttlcache.Cache
	now   func() time.Time
}

// NewMemory returns an empty in-memory store using the wall clock.
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock returns an empty in-memory store that reads time from now.
func NewMemoryWithClock(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	cache := ttlcache.NewCache()
	cache.SkipTTLExtensionOnHit(true)
	return &Memory{cache: cache, now: now}
}

// Close stops the background expiry goroutine.
func (m *Memory) Close() error {
	return m.cache.Close()
}

func (m *Memory) load(key string) (memoryEntry, bool, error) {
	raw, err := m.cache.Get(key)
	if err != nil {
		if errors.Is(err, ttlcache.ErrNotFound) {
			return memoryEntry{}, false, nil
		}
		return memoryEntry{}, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	entry, ok := raw.(memoryEntry)
	if !ok {
		return memoryEntry{}, false, fmt.Errorf("%w: unexpected entry type", ErrUnavailable)
	}
	if !m.now().Before(entry.expiresAt) {
		_ = m.cache.Remove(key)
		return memoryEntry{}, false, nil
	}
	return entry, true, nil
}

func (m *Memory) store(key string, entry memoryEntry) error {
	ttl := entry.expiresAt.Sub(m.now())
	if ttl <= 0 {
		_ = m.cache.Remove(key)
		return nil
	}
	if err := m.cache.SetWithTTL(key, entry, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok, err := m.load(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

func (m *Memory) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: non-positive ttl for %q", ErrUnavailable, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store(key, memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(ttl),
	})
}

func (m *Memory) IncrementWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok, err := m.load(key)
	if err != nil {
		return 0, err
	}

	var n int64
	if ok {
		n, err = strconv.ParseInt(string(entry.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: counter %q is not an integer", ErrUnavailable, key)
		}
	} else {
		entry.expiresAt = m.now().Add(ttl)
	}
	n++
	entry.value = []byte(strconv.FormatInt(n, 10))

	if err := m.store(key, entry); err != nil {
		return 0, err
	}
	return n, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.cache.Remove(key); err != nil && !errors.Is(err, ttlcache.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (m *Memory) Take(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok, err := m.load(key)
	if err != nil || !ok {
		return false, err
	}
	if err := m.cache.Remove(key); err != nil && !errors.Is(err, ttlcache.ErrNotFound) {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return true, nil
}

// Update implements [Updater].
func (m *Memory) Update(_ context.Context, key string, fn func(value []byte) []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok, err := m.load(key)
	if err != nil {
		return err
	}
	var current []byte
	if ok {
		current = append([]byte(nil), entry.value...)
	}

	next := fn(current)
	if next == nil {
		if !ok {
			return nil
		}
		if err := m.cache.Remove(key); err != nil && !errors.Is(err, ttlcache.ErrNotFound) {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	}
	if !ok {
		return fmt.Errorf("%w: update of absent key %q", ErrUnavailable, key)
	}
	entry.value = append([]byte(nil), next...)
	return m.store(key, entry)
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok, err := m.load(key)
	return ok, err
}
