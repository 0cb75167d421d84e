package goCred

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goCred/internal/audit"
	"github.com/MrEthical07/goCred/internal/limiters"
	"github.com/MrEthical07/goCred/internal/rate"
	"github.com/MrEthical07/goCred/internal/stores"
	"github.com/MrEthical07/goCred/session"
	"github.com/MrEthical07/goCred/ttlstore"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	ttlStore     ttlstore.Store
	sessionStore session.Repository
	transports   map[Channel]Transport
	tokens       TokenGenerator

	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config:     DefaultConfig(),
		transports: make(map[Channel]Transport, 2),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing the default TTL store and the default
// session store. A *redis.Client, *redis.ClusterClient or *redis.Ring all
// satisfy it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithTTLStore overrides the store used for codes, verified marks and rate
// counters. It must also implement [ttlstore.ScriptRunner] or
// [ttlstore.Updater] so code checks run atomically.
func (b *Builder) WithTTLStore(store ttlstore.Store) *Builder {
	b.ttlStore = store
	return b
}

// WithSessionStore overrides the session backend, e.g. session/postgres or
// session/dynamo.
func (b *Builder) WithSessionStore(store session.Repository) *Builder {
	b.sessionStore = store
	return b
}

func (b *Builder) WithSMSTransport(t Transport) *Builder {
	b.transports[ChannelSMS] = t
	return b
}

func (b *Builder) WithEmailTransport(t Transport) *Builder {
	b.transports[ChannelEmail] = t
	return b
}

// WithTokenGenerator sets the access token minter used by IssueSession and
// Rotate.
func (b *Builder) WithTokenGenerator(g TokenGenerator) *Builder {
	b.tokens = g
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. A Builder can be
// built only once.
//
// Each enabled channel needs a transport and a TTL store (explicit or via
// WithRedis). Sessions need a token generator and a session store (explicit
// or via WithRedis); without them the session methods return
// ErrEngineNotReady.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "gocred"))

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- TTL STORE --------
	store := b.ttlStore
	if store == nil && b.redis != nil {
		store = ttlstore.NewRedis(b.redis)
	}
	if cfg.SMS.Enabled || cfg.Email.Enabled {
		if store == nil {
			return nil, errors.New("redis client or TTL store required for verification channels")
		}
		if !atomicCodeStore(store) {
			return nil, fmt.Errorf("TTL store %T must implement ttlstore.ScriptRunner or ttlstore.Updater", store)
		}
	}

	limiter := rate.New(store, logger)

	// -------- CHANNELS --------
	channels := make(map[Channel]*channel, 2)
	for _, def := range []struct {
		name Channel
		cfg  ChannelConfig
	}{{ChannelSMS, cfg.SMS}, {ChannelEmail, cfg.Email}} {
		if !def.cfg.Enabled {
			continue
		}
		transport := b.transports[def.name]
		if transport == nil {
			return nil, fmt.Errorf("%s transport required", def.name)
		}
		channels[def.name] = &channel{
			name:      def.name,
			cfg:       def.cfg,
			normalize: normalizerFor(def.name),
			transport: transport,
			codes:     stores.NewCodeStore(store, def.cfg.KeyPrefix),
			limiter: limiters.NewCodeIssueLimiter(limiter, limiters.CodeIssueConfig{
				KeyPrefix:     def.cfg.KeyPrefix,
				MaxSends:      def.cfg.sendLimit(),
				Window:        def.cfg.ResendCooldown,
				MaxSendsPerIP: def.cfg.SendLimitPerIP,
			}),
		}
	}

	// -------- SESSION STORE --------
	sessions := b.sessionStore
	if sessions == nil && b.redis != nil {
		sessions = session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.Retention).WithClock(now)
	}

	engine := &Engine{
		config:   cfg,
		channels: channels,
		sessions: sessions,
		tokens:   b.tokens,
		logger:   logger,
		now:      now,
		metrics:  NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	for _, c := range channels {
		c.deps = engine.codeDeps(c)
	}
	engine.sessionDeps = engine.newSessionDeps()

	b.built = true

	return engine, nil
}

func atomicCodeStore(store ttlstore.Store) bool {
	switch store.(type) {
	case ttlstore.ScriptRunner, ttlstore.Updater:
		return true
	}
	return false
}
