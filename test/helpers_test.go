//go:build integration
// +build integration

package test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	goCred "github.com/MrEthical07/goCred"
	"github.com/MrEthical07/goCred/jwt"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the set of Redis backends to test.
// miniredis is always available.
// Real Redis standalone is used when REDIS_ADDR is set (e.g. "127.0.0.1:6379").
// A throwaway container is started when GOCRED_IT_CONTAINERS=1 and Docker is reachable.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "redis",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				if err := rdb.Ping(context.Background()).Err(); err != nil {
					t.Skipf("redis at %s unreachable: %v", addr, err)
				}
				if err := rdb.FlushDB(context.Background()).Err(); err != nil {
					t.Fatalf("flushdb: %v", err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}
	if os.Getenv("GOCRED_IT_CONTAINERS") == "1" {
		modes = append(modes, redisMode{
			name:  "redis-container",
			setup: redisContainer,
		})
	}
	return modes
}

func redisContainer(t *testing.T) (redis.UniversalClient, func()) {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		t.Fatalf("connection string: %v", err)
	}
	opts, err := redis.ParseURL(uri)
	if err != nil {
		_ = testcontainers.TerminateContainer(ctr)
		t.Fatalf("parse %q: %v", uri, err)
	}
	rdb := redis.NewClient(opts)
	return rdb, func() {
		_ = rdb.Close()
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	}
}

// inbox records the last code sent to each identifier.
type inbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func newInbox() *inbox {
	return &inbox{codes: map[string]string{}}
}

func (b *inbox) SendCode(_ context.Context, identifier, code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[identifier] = code
	return nil
}

func (b *inbox) last(identifier string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[identifier]
}

type integrationEnv struct {
	engine *goCred.Engine
	tokens *jwt.Manager
	inbox  *inbox
}

func newIntegrationEngine(t *testing.T, client redis.UniversalClient) *integrationEnv {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	tokens, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Minute,
		SigningMethod: jwt.MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "gocred",
		Audience:      "api",
		Leeway:        30 * time.Second,
		KeyID:         "k1",
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	cfg := goCred.DefaultConfig()
	cfg.Email.Enabled = true

	box := newInbox()
	engine, err := goCred.New().
		WithConfig(cfg).
		WithRedis(client).
		WithSMSTransport(box).
		WithEmailTransport(box).
		WithTokenGenerator(tokens).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &integrationEnv{engine: engine, tokens: tokens, inbox: box}
}
