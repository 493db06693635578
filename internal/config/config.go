// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

// Package config loads authcore configuration. Sources are layered, later
// ones winning: built-in defaults, an optional YAML file, AUTHCORE_*
// environment variables, then command-line flags.
package config

import (
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/cinebook/authcore/internal/auth"
)

// EnvPrefix prefixes every environment variable. Nested keys are separated
// by a double underscore: AUTHCORE_TOKEN__ACCESS_TTL sets token.access_ttl.
const EnvPrefix = "AUTHCORE_"

// Reset token store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

var knownStores = []string{StorePostgres, StoreRedis}

// Config is the full authcore configuration. It is read once at startup and
// never mutated afterwards.
type Config struct {
	Database    DatabaseConfig `koanf:"database"`
	Token       TokenConfig    `koanf:"token"`
	Reset       ResetConfig    `koanf:"reset"`
	Redis       RedisConfig    `koanf:"redis"`
	Google      GoogleConfig   `koanf:"google"`
	Hasher      HasherConfig   `koanf:"hasher"`
	Events      EventsConfig   `koanf:"events"`
	Log         LogConfig      `koanf:"log"`
	Metrics     MetricsConfig  `koanf:"metrics"`
	CallTimeout time.Duration  `koanf:"call_timeout"`
}

// DatabaseConfig locates the PostgreSQL account store.
type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns"`
}

// TokenConfig holds the signing triple and token lifetimes in seconds.
// Zero and negative lifetimes are passed through unchanged.
type TokenConfig struct {
	Secret     string `koanf:"secret" jsonschema:"minLength=32"`
	Audience   string `koanf:"audience"`
	Issuer     string `koanf:"issuer"`
	AccessTTL  int    `koanf:"access_ttl"`
	RefreshTTL int    `koanf:"refresh_ttl"`
}

// TTLs converts the configured lifetimes.
func (t TokenConfig) TTLs() auth.TokenTTLs {
	return auth.TokenTTLs{
		Access:  time.Duration(t.AccessTTL) * time.Second,
		Refresh: time.Duration(t.RefreshTTL) * time.Second,
	}
}

// ResetConfig configures the password reset flow.
type ResetConfig struct {
	TTL   time.Duration `koanf:"ttl"`
	Store string        `koanf:"store" jsonschema:"enum=postgres,enum=redis"`
	// LinkURL is the page that receives ?token=... in reset emails.
	LinkURL    string        `koanf:"link_url"`
	PurgeEvery time.Duration `koanf:"purge_every"`
}

// RedisConfig locates the Redis reset store.
type RedisConfig struct {
	URL string `koanf:"url"`
}

// GoogleConfig enables federated login when ClientID is set.
type GoogleConfig struct {
	ClientID string `koanf:"client_id"`
}

// HasherConfig is the argon2id work factor.
type HasherConfig struct {
	MemoryKiB   uint32 `koanf:"memory_kib" jsonschema:"minimum=1,maximum=1048576"`
	Iterations  uint32 `koanf:"iterations" jsonschema:"minimum=1,maximum=64"`
	Parallelism uint8  `koanf:"parallelism" jsonschema:"minimum=1"`
}

// Params converts the work factor.
func (h HasherConfig) Params() auth.Argon2Params {
	return auth.Argon2Params{
		Iterations:  h.Iterations,
		MemoryKiB:   h.MemoryKiB,
		Parallelism: h.Parallelism,
	}
}

// EventsConfig enables publishing security events to Kafka when brokers are set.
type EventsConfig struct {
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Format string `koanf:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level"`
}

// MetricsConfig configures the observability server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	def := auth.DefaultArgon2Params()
	return map[string]any{
		"database.max_conns": 10,
		"token.issuer":       "authcore",
		"token.access_ttl":   int(auth.DefaultAccessTTL / time.Second),
		"token.refresh_ttl":  int(auth.DefaultRefreshTTL / time.Second),
		"reset.ttl":          auth.DefaultResetTTL.String(),
		"reset.store":        StorePostgres,
		"reset.purge_every":  "1h",
		"reset.link_url":     "http://localhost:3000/reset-password",
		"hasher.memory_kib":  def.MemoryKiB,
		"hasher.iterations":  def.Iterations,
		"hasher.parallelism": def.Parallelism,
		"events.kafka_topic": "authcore.security-events",
		"log.format":         "json",
		"log.level":          "info",
		"metrics.addr":       "127.0.0.1:9100",
		"call_timeout":       auth.DefaultCallTimeout.String(),
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"database-url":     "database.url",
	"token-secret":     "token.secret",
	"token-audience":   "token.audience",
	"token-issuer":     "token.issuer",
	"access-ttl":       "token.access_ttl",
	"refresh-ttl":      "token.refresh_ttl",
	"reset-ttl":        "reset.ttl",
	"reset-store":      "reset.store",
	"redis-url":        "redis.url",
	"google-client-id": "google.client_id",
	"kafka-brokers":    "events.kafka_brokers",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"metrics-addr":     "metrics.addr",
	"call-timeout":     "call_timeout",
}

// RegisterFlags adds the overridable settings to fs. Only flags the user
// actually sets take part in Load.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.String("token-secret", "", "HMAC signing secret (at least 32 bytes)")
	fs.String("token-audience", "", "token audience")
	fs.String("token-issuer", "", "token issuer")
	fs.Int("access-ttl", 0, "access token lifetime in seconds")
	fs.Int("refresh-ttl", 0, "refresh token lifetime in seconds")
	fs.Duration("reset-ttl", 0, "password reset token lifetime")
	fs.String("reset-store", "", "reset token store (postgres or redis)")
	fs.String("redis-url", "", "Redis URL for the redis reset store")
	fs.String("google-client-id", "", "Google OAuth client id (empty disables federated login)")
	fs.StringSlice("kafka-brokers", nil, "Kafka brokers for security events (empty disables)")
	fs.String("log-format", "", "log format (json or text)")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.Duration("call-timeout", 0, "timeout for each store or provider call")
}

// Load builds a Config. path may be empty; fs may be nil.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("source", "defaults").Wrap(err)
	}

	if path != "" {
		if err := ValidateFile(path); err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("source", "file").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("source", "env").Wrap(err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode configuration").Wrap(err)
	}
	return &cfg, nil
}

// emptyDisables lists the keys where an empty value switches a feature off.
var emptyDisables = map[string]bool{
	"metrics.addr":     true,
	"google.client_id": true,
}

// envValue turns AUTHCORE_TOKEN__ACCESS_TTL into token.access_ttl. Other
// empty values are skipped so the file or default value stays in effect.
func envValue(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "__", ".")
	if strings.TrimSpace(value) == "" && !emptyDisables[key] {
		return "", nil
	}
	return key, value
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if len(c.Token.Secret) < auth.MinSecretLength {
		return oops.Code("CONFIG_INVALID").
			With("key", "token.secret").
			Errorf("token.secret must be at least %d bytes", auth.MinSecretLength)
	}
	if c.Token.Audience == "" {
		return oops.Code("CONFIG_INVALID").With("key", "token.audience").Errorf("token.audience is required")
	}
	if c.Token.Issuer == "" {
		return oops.Code("CONFIG_INVALID").With("key", "token.issuer").Errorf("token.issuer is required")
	}
	if !slices.Contains(knownStores, c.Reset.Store) {
		return oops.Code("CONFIG_INVALID").
			With("key", "reset.store").
			Errorf("reset.store must be one of %s, got %q", strings.Join(knownStores, ", "), c.Reset.Store)
	}
	if c.Reset.Store == StoreRedis && c.Redis.URL == "" {
		return oops.Code("CONFIG_INVALID").With("key", "redis.url").Errorf("redis.url is required for the redis reset store")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.format").
			Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	return nil
}
