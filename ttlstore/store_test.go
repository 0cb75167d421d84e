package ttlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, NewRedis(rdb)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRedisGetMissingReturnsNotFound(t *testing.T) {
	_, s := newTestRedis(t)

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisSetGetExpire(t *testing.T) {
	mr, s := newTestRedis(t)
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("unexpected get: %q %v", got, err)
	}
	ok, err := s.Exists(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("expected key to exist: %v %v", ok, err)
	}

	mr.FastForward(time.Minute + time.Second)

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestRedisIncrementSetsTTLOnlyOnCreate(t *testing.T) {
	mr, s := newTestRedis(t)
	ctx := context.Background()

	n, err := s.IncrementWithTTL(ctx, "c", 60*time.Second)
	if err != nil || n != 1 {
		t.Fatalf("expected 1, got %d %v", n, err)
	}

	mr.FastForward(40 * time.Second)

	n, err = s.IncrementWithTTL(ctx, "c", 60*time.Second)
	if err != nil || n != 2 {
		t.Fatalf("expected 2, got %d %v", n, err)
	}
	if ttl := mr.TTL("c"); ttl > 20*time.Second {
		t.Fatalf("ttl must not be extended, got %v", ttl)
	}

	mr.FastForward(21 * time.Second)

	n, err = s.IncrementWithTTL(ctx, "c", 60*time.Second)
	if err != nil || n != 1 {
		t.Fatalf("expected fresh window, got %d %v", n, err)
	}
}

func TestRedisIncrementRearmsCounterWithoutTTL(t *testing.T) {
	mr, s := newTestRedis(t)

	if err := mr.Set("c", "4"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	n, err := s.IncrementWithTTL(context.Background(), "c", time.Minute)
	if err != nil || n != 5 {
		t.Fatalf("expected 5, got %d %v", n, err)
	}
	if ttl := mr.TTL("c"); ttl <= 0 {
		t.Fatalf("expected ttl to be armed, got %v", ttl)
	}
}

func TestRedisUnavailable(t *testing.T) {
	mr, s := newTestRedis(t)
	mr.Close()

	if _, err := s.IncrementWithTTL(context.Background(), "c", time.Minute); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRedisDeleteMissingIsNotError(t *testing.T) {
	_, s := newTestRedis(t)

	if err := s.Delete(context.Background(), "nope"); err != nil {
		t.Fatalf("delete of missing key failed: %v", err)
	}
}

func TestMemoryExpiresAgainstClock(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemoryWithClock(clock.Now)
	defer m.Close()
	ctx := context.Background()

	if err := m.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	clock.Advance(59 * time.Second)
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("expected live key, got %v", err)
	}
	clock.Advance(time.Second)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound at expiry, got %v", err)
	}
}

func TestMemoryIncrementKeepsWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemoryWithClock(clock.Now)
	defer m.Close()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := m.IncrementWithTTL(ctx, "c", time.Minute)
		if err != nil || n != i {
			t.Fatalf("increment %d: got %d %v", i, n, err)
		}
		clock.Advance(15 * time.Second)
	}

	clock.Advance(15 * time.Second)
	n, err := m.IncrementWithTTL(ctx, "c", time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected new window after original ttl, got %d %v", n, err)
	}
}

func TestMemoryIncrementConcurrent(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = m.IncrementWithTTL(context.Background(), "c", time.Minute)
		}()
	}
	wg.Wait()

	got, err := m.Get(context.Background(), "c")
	if err != nil || string(got) != "32" {
		t.Fatalf("expected 32, got %q %v", got, err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	buf := []byte("abc")
	if err := m.SetWithTTL(ctx, "k", buf, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	buf[0] = 'x'

	got, _ := m.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("store must copy input, got %q", got)
	}
}

var (
	_ ScriptRunner = (*Redis)(nil)
	_ Updater      = (*Memory)(nil)
)

func countTakes(t *testing.T, s Store, key string, workers int) int {
	t.Helper()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		taken int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			ok, err := s.Take(context.Background(), key)
			if err != nil {
				t.Errorf("take failed: %v", err)
				return
			}
			if ok {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return taken
}

func TestRedisTakeIsSingleUse(t *testing.T) {
	mr, s := newTestRedis(t)
	if err := s.SetWithTTL(context.Background(), "mark", []byte("1"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if taken := countTakes(t, s, "mark", 40); taken != 1 {
		t.Fatalf("expected exactly one take, got %d", taken)
	}
	if mr.Exists("mark") {
		t.Fatal("key should be gone after take")
	}
}

func TestMemoryTakeIsSingleUse(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	if err := m.SetWithTTL(context.Background(), "mark", []byte("1"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	if taken := countTakes(t, m, "mark", 40); taken != 1 {
		t.Fatalf("expected exactly one take, got %d", taken)
	}
	if ok, _ := m.Exists(context.Background(), "mark"); ok {
		t.Fatal("key should be gone after take")
	}
}

func TestMemoryTakeExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemoryWithClock(clock.Now)
	defer m.Close()
	ctx := context.Background()

	_ = m.SetWithTTL(ctx, "mark", []byte("1"), time.Minute)
	clock.Advance(time.Minute)

	if ok, err := m.Take(ctx, "mark"); err != nil || ok {
		t.Fatalf("expired key must not be taken, ok=%v err=%v", ok, err)
	}
}

func TestMemoryUpdateKeepsExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemoryWithClock(clock.Now)
	defer m.Close()
	ctx := context.Background()

	_ = m.SetWithTTL(ctx, "k", []byte("a"), time.Minute)
	clock.Advance(30 * time.Second)

	err := m.Update(ctx, "k", func(value []byte) []byte {
		return append(value, 'b')
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got, _ := m.Get(ctx, "k"); string(got) != "ab" {
		t.Fatalf("unexpected value %q", got)
	}

	clock.Advance(30 * time.Second)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update must not extend expiry, got %v", err)
	}
}

func TestMemoryUpdateNilDeletes(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	_ = m.SetWithTTL(ctx, "k", []byte("a"), time.Minute)
	if err := m.Update(ctx, "k", func([]byte) []byte { return nil }); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if ok, _ := m.Exists(ctx, "k"); ok {
		t.Fatal("nil replacement should delete the key")
	}

	var seen []byte
	called := false
	err := m.Update(ctx, "missing", func(value []byte) []byte {
		called = true
		seen = value
		return nil
	})
	if err != nil || !called || seen != nil {
		t.Fatalf("absent key should be passed as nil, called=%v seen=%q err=%v", called, seen, err)
	}
}

func TestMemoryUpdateConcurrent(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()
	_ = m.SetWithTTL(ctx, "k", []byte{0}, time.Minute)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = m.Update(ctx, "k", func(value []byte) []byte {
				return []byte{value[0] + 1}
			})
		}()
	}
	wg.Wait()

	got, _ := m.Get(ctx, "k")
	if len(got) != 1 || got[0] != workers {
		t.Fatalf("expected %d serialized updates, got %v", workers, got)
	}
}
