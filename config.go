package goCred

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds every engine policy. Instances are built once during
// initialization and treated as immutable afterwards.
type Config struct {
	SMS     ChannelConfig `mapstructure:"sms"`
	Email   ChannelConfig `mapstructure:"email"`
	Session SessionConfig `mapstructure:"session"`
	Audit   AuditConfig   `mapstructure:"audit"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

/*
====================================
CHANNEL CONFIG
====================================
*/

// ChannelConfig is the verification code policy of one channel.
type ChannelConfig struct {
	Enabled bool `mapstructure:"enabled"`

	CodeLength  int           `mapstructure:"code_length" validate:"min=4,max=10"`
	CodeTTL     time.Duration `mapstructure:"code_ttl" validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1,max=100"`

	// ResendCooldown is the issuance rate window and the RetryAfter reported
	// to throttled callers.
	ResendCooldown time.Duration `mapstructure:"resend_cooldown" validate:"gt=0"`
	// SendLimit is the number of issuances allowed per window. Zero means
	// MaxAttempts.
	SendLimit int `mapstructure:"send_limit" validate:"min=0"`
	// SendLimitPerIP additionally caps issuances per client IP. Zero disables.
	SendLimitPerIP int `mapstructure:"send_limit_per_ip" validate:"min=0"`

	// VerifiedTTL is how long a successful verification stays readable
	// through IsVerified. Zero disables the mark.
	VerifiedTTL time.Duration `mapstructure:"verified_ttl" validate:"min=0"`

	KeyPrefix string `mapstructure:"key_prefix" validate:"required,excludesall=:"`
}

func (c ChannelConfig) sendLimit() int {
	if c.SendLimit > 0 {
		return c.SendLimit
	}
	return c.MaxAttempts
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig is the refresh session policy.
type SessionConfig struct {
	RefreshTTL time.Duration `mapstructure:"refresh_ttl" validate:"gt=0"`
	// RedisPrefix namespaces session keys of the built-in Redis store.
	RedisPrefix string `mapstructure:"redis_prefix" validate:"required"`
	// Retention keeps expired or revoked records readable in the Redis store
	// so replays are rejected as revoked rather than unknown.
	Retention time.Duration `mapstructure:"retention" validate:"min=0"`
}

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size" validate:"min=0"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultChannelConfig(prefix string) ChannelConfig {
	return ChannelConfig{
		Enabled:        true,
		CodeLength:     6,
		CodeTTL:        5 * time.Minute,
		MaxAttempts:    3,
		ResendCooldown: 60 * time.Second,
		VerifiedTTL:    10 * time.Minute,
		KeyPrefix:      prefix,
	}
}

// DefaultConfig returns the production defaults: six digit codes valid for
// five minutes, three attempts, a sixty second resend window and thirty day
// refresh sessions.
func DefaultConfig() Config {
	return Config{
		SMS:   defaultChannelConfig("sms"),
		Email: defaultChannelConfig("email"),
		Session: SessionConfig{
			RefreshTTL:  30 * 24 * time.Hour,
			RedisPrefix: "cs",
			Retention:   24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

var configValidator = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(section string, v any) error {
	err := configValidator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%s %s failed %q", section, fe.StructField(), fe.Tag())
	}
	return err
}

// Validate checks field ranges and cross-field rules. It returns the first
// violation found.
func (c *Config) Validate() error {
	for _, ch := range []struct {
		name string
		cfg  ChannelConfig
	}{{"SMS", c.SMS}, {"Email", c.Email}} {
		if !ch.cfg.Enabled {
			continue
		}
		if err := validateStruct(ch.name, ch.cfg); err != nil {
			return err
		}
		if ch.cfg.VerifiedTTL > 0 && ch.cfg.VerifiedTTL < ch.cfg.CodeTTL {
			return fmt.Errorf("%s VerifiedTTL must be >= CodeTTL when set", ch.name)
		}
		if ch.cfg.SendLimitPerIP > 0 && ch.cfg.SendLimitPerIP < ch.cfg.sendLimit() {
			return fmt.Errorf("%s SendLimitPerIP must be >= the per-identifier send limit", ch.name)
		}
	}
	if c.SMS.Enabled && c.Email.Enabled && c.SMS.KeyPrefix == c.Email.KeyPrefix {
		return errors.New("SMS and Email KeyPrefix must differ")
	}

	if err := validateStruct("Session", c.Session); err != nil {
		return err
	}
	if err := validateStruct("Audit", c.Audit); err != nil {
		return err
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
