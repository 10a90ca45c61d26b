package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	liststrings "adminconsole/pkg/platform/strings"
)

// Config is the full process configuration, loaded once in main.
type Config struct {
	Server    Server
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Detector  DetectorConfig
	Recorder  RecorderConfig
	BulkLimit BulkLimitConfig
	LogLevel  slog.Level
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	TokenTTL        time.Duration
	ShutdownTimeout time.Duration
	// BootstrapEmail and BootstrapPassword seed a superadmin into an empty
	// principal store so a fresh console can be logged into.
	BootstrapEmail    string
	BootstrapPassword string
}

// DatabaseConfig selects the postgres backend. An empty URL keeps all stores in memory.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the shared bulk-operation limiter. An empty URL keeps the
// limiter in process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional SIEM feed of persisted security events.
type KafkaConfig struct {
	Brokers       []string
	SecurityTopic string
}

// DetectorConfig holds abuse detection thresholds.
type DetectorConfig struct {
	// MaxRequestsPerMinute includes the request being checked.
	MaxRequestsPerMinute   int
	MaxFailedLoginsPerHour int
	SuspiciousAgents       []string
}

// RecorderConfig sizes the asynchronous security event writer.
type RecorderConfig struct {
	BufferSize   int
	Workers      int
	WriteTimeout time.Duration
}

// BulkLimitConfig bounds bulk operations per actor.
type BulkLimitConfig struct {
	MaxOperations int
	Window        time.Duration
}

// Defaults for the abuse detector.
const (
	DefaultMaxRequestsPerMinute   = 100
	DefaultMaxFailedLoginsPerHour = 10
)

// DefaultSuspiciousAgents lists scanner and scripting clients flagged (not blocked)
// by the abuse detector.
var DefaultSuspiciousAgents = []string{"sqlmap", "nikto", "nmap", "masscan", "zgrab", "dirbuster", "gobuster"}

// FromEnv builds a Config from environment variables so main stays lean.
// Malformed values fall back to defaults and are reported through the returned warnings.
func FromEnv() (Config, []string) {
	l := &loader{}

	cfg := Config{
		Server: Server{
			Addr:              l.str("ADDR", ":8080"),
			JWTSigningKey:     l.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			TokenTTL:          l.duration("TOKEN_TTL", 8*time.Hour),
			ShutdownTimeout:   l.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
			BootstrapEmail:    l.str("BOOTSTRAP_ADMIN_EMAIL", ""),
			BootstrapPassword: l.str("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		Database: DatabaseConfig{
			URL:             l.str("DATABASE_URL", ""),
			MaxOpenConns:    l.integer("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    l.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: l.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          l.str("REDIS_URL", ""),
			PoolSize:     l.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: l.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  l.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  l.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: l.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       liststrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			SecurityTopic: l.str("KAFKA_SECURITY_TOPIC", "console.security-events"),
		},
		Detector: DetectorConfig{
			MaxRequestsPerMinute:   l.integer("ABUSE_MAX_REQUESTS_PER_MINUTE", DefaultMaxRequestsPerMinute),
			MaxFailedLoginsPerHour: l.integer("ABUSE_MAX_FAILED_LOGINS_PER_HOUR", DefaultMaxFailedLoginsPerHour),
			SuspiciousAgents:       DefaultSuspiciousAgents,
		},
		Recorder: RecorderConfig{
			BufferSize:   l.integer("SECURITY_LOG_BUFFER", 1024),
			Workers:      l.integer("SECURITY_LOG_WORKERS", 2),
			WriteTimeout: l.duration("SECURITY_LOG_WRITE_TIMEOUT", 5*time.Second),
		},
		BulkLimit: BulkLimitConfig{
			MaxOperations: l.integer("BULK_MAX_OPERATIONS", 5),
			Window:        l.duration("BULK_WINDOW", time.Minute),
		},
		LogLevel: l.level("LOG_LEVEL", slog.LevelInfo),
	}

	if agents := liststrings.SplitList(os.Getenv("ABUSE_SUSPICIOUS_AGENTS")); agents != nil {
		cfg.Detector.SuspiciousAgents = agents
	}

	return cfg, l.warnings
}

type loader struct {
	warnings []string
}

func (l *loader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (l *loader) integer(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		l.warnings = append(l.warnings, fmt.Sprintf("%s=%q is not a positive integer, using %d", key, raw, def))
		return def
	}
	return v
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		l.warnings = append(l.warnings, fmt.Sprintf("%s=%q is not a positive duration, using %s", key, raw, def))
		return def
	}
	return v
}

func (l *loader) level(key string, def slog.Level) slog.Level {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("%s=%q is not a log level, using %s", key, raw, def))
		return def
	}
	return lvl
}
