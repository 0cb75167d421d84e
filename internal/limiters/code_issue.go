package limiters

import (
	"context"
	"time"

	"github.com/MrEthical07/goCred/internal/rate"
)

// CodeIssueConfig bounds how often codes may be sent for one channel.
type CodeIssueConfig struct {
	// KeyPrefix namespaces counters per channel, e.g. "sms".
	KeyPrefix string
	// MaxSends is the number of sends allowed per Window for one identifier.
	MaxSends int
	Window   time.Duration
	// MaxSendsPerIP enables the per-client-IP counter when positive.
	MaxSendsPerIP int
}

// CodeIssueLimiter throttles code issuance per identifier and per client IP.
type CodeIssueLimiter struct {
	limiter *rate.Limiter
	config  CodeIssueConfig
}

func NewCodeIssueLimiter(limiter *rate.Limiter, cfg CodeIssueConfig) *CodeIssueLimiter {
	return &CodeIssueLimiter{
		limiter: limiter,
		config:  cfg,
	}
}

// Window returns the configured cooldown window.
func (l *CodeIssueLimiter) Window() time.Duration {
	if l == nil {
		return 0
	}
	return l.config.Window
}

// Limited consumes one send for identifier (and ip when configured) and
// reports whether either counter is over budget.
func (l *CodeIssueLimiter) Limited(ctx context.Context, identifier, ip string) bool {
	if l == nil || l.limiter == nil {
		return false
	}
	if l.limiter.CheckAndConsume(ctx, l.IdentifierKey(identifier), l.config.MaxSends, l.config.Window) {
		return true
	}
	if l.config.MaxSendsPerIP > 0 && ip != "" {
		return l.limiter.CheckAndConsume(ctx, l.ipKey(ip), l.config.MaxSendsPerIP, l.config.Window)
	}
	return false
}

// Reset clears the per-identifier counter.
func (l *CodeIssueLimiter) Reset(ctx context.Context, identifier string) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	return l.limiter.Reset(ctx, l.IdentifierKey(identifier))
}

// IdentifierKey is the counter key for a normalized identifier.
func (l *CodeIssueLimiter) IdentifierKey(identifier string) string {
	return "rl:" + l.config.KeyPrefix + ":send:" + identifier
}

func (l *CodeIssueLimiter) ipKey(ip string) string {
	return "rl:" + l.config.KeyPrefix + ":sendip:" + ip
}
