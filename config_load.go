package goCred

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment prefix LoadConfig honours, for example
// GOCRED_SMS_CODE_TTL=2m overrides sms.code_ttl.
const EnvPrefix = "GOCRED"

// LoadConfig reads a YAML, JSON or TOML file on top of DefaultConfig,
// applies GOCRED_* environment overrides and validates the result. The file
// type is inferred from the extension. An empty path loads defaults and the
// environment only.
func LoadConfig(pathFile string) (Config, error) {
	v := newConfigViper()

	if pathFile != "" {
		filename := path.Base(pathFile)
		configName := filename[:len(filename)-len(path.Ext(filename))]

		v.AddConfigPath(path.Dir(pathFile))
		v.SetConfigName(configName)
		if ext := strings.TrimPrefix(path.Ext(filename), "."); ext != "" {
			v.SetConfigType(ext)
		}
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", pathFile, err)
		}
	}

	return decodeConfig(v)
}

// LoadConfigFromBytes is LoadConfig for in-memory content. configType is a
// format supported by viper ("yaml", "json", "toml").
func LoadConfigFromBytes(configType string, data []byte) (Config, error) {
	if strings.TrimSpace(configType) == "" {
		return Config{}, errors.New("config type is required")
	}

	v := newConfigViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	return decodeConfig(v)
}

func newConfigViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults double as the key registry AutomaticEnv needs for Unmarshal.
	def := DefaultConfig()
	for _, ch := range []struct {
		key string
		cfg ChannelConfig
	}{{"sms", def.SMS}, {"email", def.Email}} {
		v.SetDefault(ch.key+".enabled", ch.cfg.Enabled)
		v.SetDefault(ch.key+".code_length", ch.cfg.CodeLength)
		v.SetDefault(ch.key+".code_ttl", ch.cfg.CodeTTL)
		v.SetDefault(ch.key+".max_attempts", ch.cfg.MaxAttempts)
		v.SetDefault(ch.key+".resend_cooldown", ch.cfg.ResendCooldown)
		v.SetDefault(ch.key+".send_limit", ch.cfg.SendLimit)
		v.SetDefault(ch.key+".send_limit_per_ip", ch.cfg.SendLimitPerIP)
		v.SetDefault(ch.key+".verified_ttl", ch.cfg.VerifiedTTL)
		v.SetDefault(ch.key+".key_prefix", ch.cfg.KeyPrefix)
	}

	v.SetDefault("session.refresh_ttl", def.Session.RefreshTTL)
	v.SetDefault("session.redis_prefix", def.Session.RedisPrefix)
	v.SetDefault("session.retention", def.Session.Retention)

	v.SetDefault("audit.enabled", def.Audit.Enabled)
	v.SetDefault("audit.buffer_size", def.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", def.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", def.Metrics.EnableLatencyHistograms)

	return v
}

func decodeConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
