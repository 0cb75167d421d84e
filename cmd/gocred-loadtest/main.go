package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goCred "github.com/MrEthical07/goCred"
	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type sessionState struct {
	token string
	mu    sync.Mutex
}

// codeBox keeps the last code per identifier so the verify phase can answer.
type codeBox struct {
	codes sync.Map
}

func (b *codeBox) SendCode(_ context.Context, identifier, code string) error {
	b.codes.Store(identifier, code)
	return nil
}

func (b *codeBox) code(identifier string) string {
	v, _ := b.codes.Load(identifier)
	s, _ := v.(string)
	return s
}

type counterTokens struct {
	n atomic.Uint64
}

func (c *counterTokens) GenerateAccessToken(_ context.Context, subject goCred.AccessSubject) (string, error) {
	return fmt.Sprintf("%s.%s.%d", subject.OwnerID, subject.SessionID, c.n.Add(1)), nil
}

func main() {
	var (
		sessions    = flag.Int("sessions", 10000, "number of sessions to seed")
		identifiers = flag.Int("identifiers", 10000, "number of phone numbers for the code phase")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		configPath  = flag.String("config", "", "optional goCred config file")
		targetRate  = flag.Float64("rate", 0, "target operations per second per phase; 0 means unpaced")
	)
	flag.Parse()

	if *sessions <= 0 || *identifiers <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, identifiers, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfg, err := goCred.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	cfg.SMS.Enabled = true
	cfg.Email.Enabled = false
	cfg.SMS.SendLimit = *ops
	cfg.SMS.SendLimitPerIP = 0
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	box := &codeBox{}
	engine, err := goCred.New().
		WithConfig(cfg).
		WithRedis(client).
		WithSMSTransport(box).
		WithTokenGenerator(&counterTokens{}).
		WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]sessionState, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := 0; i < *sessions; i++ {
		pair, err := engine.IssueSession(ctx, fmt.Sprintf("owner-%d", i), goCred.DeviceMeta{UserAgent: "loadtest"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue session failed: %v\n", err)
			os.Exit(1)
		}
		states[i].token = pair.RefreshToken
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	codeStats := runCodePhase(ctx, engine, box, pacer(*targetRate), *identifiers, *ops, *concurrency)
	rotateStats := runRotatePhase(ctx, engine, states, pacer(*targetRate), *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("issue+verify", codeStats)
	printStats("rotate", rotateStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("counters: issued=%d verified=%d rotated=%d rotate_invalid=%d\n",
		snap.Counters[goCred.MetricCodeIssued],
		snap.Counters[goCred.MetricCodeVerified],
		snap.Counters[goCred.MetricSessionRotated],
		snap.Counters[goCred.MetricSessionRotateInvalid],
	)
}

// pacer returns nil for an unpaced run.
func pacer(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond / 10)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func wait(ctx context.Context, limiter *rate.Limiter) {
	if limiter != nil {
		_ = limiter.Wait(ctx)
	}
}

func phone(i int) string {
	return fmt.Sprintf("1555%07d", i)
}

func runCodePhase(ctx context.Context, engine *goCred.Engine, box *codeBox, limiter *rate.Limiter, identifiers, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
		locks     = make([]sync.Mutex, identifiers)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				wait(ctx, limiter)
				idx := r.Intn(identifiers)
				id := phone(idx)

				locks[idx].Lock()
				t0 := time.Now()
				err := engine.SendPhoneCode(ctx, id)
				if err == nil {
					err = engine.VerifyPhone(ctx, id, box.code(id))
				}
				d := time.Since(t0)
				locks[idx].Unlock()

				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runRotatePhase(ctx context.Context, engine *goCred.Engine, states []sessionState, limiter *rate.Limiter, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				wait(ctx, limiter)
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				pair, err := engine.Rotate(ctx, state.token, goCred.DeviceMeta{UserAgent: "loadtest"})
				d := time.Since(t0)
				if err == nil {
					state.token = pair.RefreshToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
