package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server captures process-level configuration. Every field can be set through
// a KLOK_-prefixed environment variable (dots become underscores) or a config file.
type Server struct {
	Addr           string
	Environment    string
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	AdminTokenHash string

	Logging        LoggingConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Kafka          KafkaConfig
	Reconciliation ReconciliationConfig
	Compliance     ComplianceConfig
	RateLimit      RateLimitConfig
}

type LoggingConfig struct {
	Level         string
	Format        string
	IncludeCaller bool
}

// DatabaseConfig selects Postgres persistence. An empty URL runs the
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings. An empty URL disables the
// distributed reconciliation lock and dedupe ledger.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox relay. No brokers means the relay is not started.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelayInterval time.Duration
	RelayBatch    int
}

type ReconciliationConfig struct {
	Enabled        bool
	Interval       time.Duration
	BatchSize      int
	RecordTimeout  time.Duration
	Concurrency    int
	PagesPerSecond float64
	LockTTL        time.Duration
}

// RateLimitConfig bounds /v1 traffic per tenant. Zero requests disables it.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type ComplianceConfig struct {
	// JurisdictionDir holds optional YAML overrides, one file per country.
	JurisdictionDir     string
	RequirementCacheTTL time.Duration
}

// NewViper returns a viper instance with klok's env binding and defaults.
// The CLI binds its flags into the same instance.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("KLOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("environment", "development")
	// Use a default for development - should be overridden in production
	v.SetDefault("jwt.signing_key", "dev-secret-key-change-in-production")
	v.SetDefault("jwt.issuer", "klok")
	v.SetDefault("jwt.audience", "klok-api")
	v.SetDefault("admin.token_hash", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.include_caller", false)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.audit_topic", "klok.audit.compliance")
	v.SetDefault("kafka.relay_interval", 2*time.Second)
	v.SetDefault("kafka.relay_batch", 100)

	v.SetDefault("reconciliation.enabled", true)
	v.SetDefault("reconciliation.interval", time.Hour)
	v.SetDefault("reconciliation.batch_size", 100)
	v.SetDefault("reconciliation.record_timeout", 5*time.Second)
	v.SetDefault("reconciliation.concurrency", 4)
	v.SetDefault("reconciliation.pages_per_second", 10.0)
	v.SetDefault("reconciliation.lock_ttl", 15*time.Minute)

	v.SetDefault("compliance.jurisdiction_dir", "")
	v.SetDefault("compliance.requirement_cache_ttl", 10*time.Minute)

	v.SetDefault("ratelimit.requests", 600)
	v.SetDefault("ratelimit.window", time.Minute)
	return v
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Load(NewViper())
}

// Load reads a Server config out of an already populated viper instance.
func Load(v *viper.Viper) Server {
	return Server{
		Addr:           v.GetString("addr"),
		Environment:    v.GetString("environment"),
		JWTSigningKey:  v.GetString("jwt.signing_key"),
		JWTIssuer:      v.GetString("jwt.issuer"),
		JWTAudience:    v.GetString("jwt.audience"),
		AdminTokenHash: v.GetString("admin.token_hash"),
		Logging: LoggingConfig{
			Level:         v.GetString("log.level"),
			Format:        v.GetString("log.format"),
			IncludeCaller: v.GetBool("log.include_caller"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(v.GetString("kafka.brokers")),
			AuditTopic:    v.GetString("kafka.audit_topic"),
			RelayInterval: v.GetDuration("kafka.relay_interval"),
			RelayBatch:    v.GetInt("kafka.relay_batch"),
		},
		Reconciliation: ReconciliationConfig{
			Enabled:        v.GetBool("reconciliation.enabled"),
			Interval:       v.GetDuration("reconciliation.interval"),
			BatchSize:      v.GetInt("reconciliation.batch_size"),
			RecordTimeout:  v.GetDuration("reconciliation.record_timeout"),
			Concurrency:    v.GetInt("reconciliation.concurrency"),
			PagesPerSecond: v.GetFloat64("reconciliation.pages_per_second"),
			LockTTL:        v.GetDuration("reconciliation.lock_ttl"),
		},
		Compliance: ComplianceConfig{
			JurisdictionDir:     v.GetString("compliance.jurisdiction_dir"),
			RequirementCacheTTL: v.GetDuration("compliance.requirement_cache_ttl"),
		},
		RateLimit: RateLimitConfig{
			Requests: v.GetInt("ratelimit.requests"),
			Window:   v.GetDuration("ratelimit.window"),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
