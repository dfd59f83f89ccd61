// Package config provides application configuration loaded from environment
// variables (optionally seeded from a .env file) with defaults and validation.
// It centralizes server timeouts, logging, storage, analysis-engine access,
// event broadcasting, notification, rate limiting, and observability settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// EngineConfig describes how to reach the external analysis engine.
type EngineConfig struct {
	BaseURL       string        // ENGINE_URL
	SubmitTimeout time.Duration // bound on a single submission round-trip
	StatusTimeout time.Duration // bound on a single status lookup
	MaxUploadSize int64         // bytes accepted for one uploaded scan
}

// BroadcastConfig tunes the event fan-out hub and its upstream reconnects.
type BroadcastConfig struct {
	SubscriberBuffer  int           // per-subscriber bounded buffer
	ReconnectInitial  time.Duration // first backoff interval
	ReconnectMax      time.Duration // backoff ceiling
	ReconnectRetries  int           // consecutive failures before giving up
	HeartbeatInterval time.Duration // SSE keep-alive cadence towards clients
}

// JobsConfig controls retention of tracked analysis jobs.
type JobsConfig struct {
	Retention     time.Duration // terminal jobs older than this are swept
	SweepSchedule string        // cron spec, e.g. "@every 10m"
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Storage
	DBPath string

	// Pipeline
	Engine        EngineConfig
	Broadcast     BroadcastConfig
	Jobs          JobsConfig
	ToastDuration time.Duration

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL           time.Duration
	IdempotencyPurgeSchedule string // cron spec

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadFile seeds the process environment from a .env file and then calls
// Load. Variables already present in the environment win over the file. A
// missing file is not an error.
func LoadFile(path string) (Config, error) {
	if strings.TrimSpace(path) != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return Load()
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DBPath: getenv("DB_PATH", "data/scan-pipeline.db"),

		Engine: EngineConfig{
			BaseURL:       strings.TrimRight(getenv("ENGINE_URL", "http://127.0.0.1:8000"), "/"),
			SubmitTimeout: getdur("ENGINE_SUBMIT_TIMEOUT", 30*time.Second),
			StatusTimeout: getdur("ENGINE_STATUS_TIMEOUT", 10*time.Second),
			MaxUploadSize: int64(getint("MAX_UPLOAD_BYTES", 50<<20)),
		},
		Broadcast: BroadcastConfig{
			SubscriberBuffer:  getint("BROADCAST_SUBSCRIBER_BUFFER", 64),
			ReconnectInitial:  getdur("BROADCAST_RECONNECT_INITIAL", 500*time.Millisecond),
			ReconnectMax:      getdur("BROADCAST_RECONNECT_MAX", 30*time.Second),
			ReconnectRetries:  getint("BROADCAST_RECONNECT_RETRIES", 10),
			HeartbeatInterval: getdur("BROADCAST_HEARTBEAT", 15*time.Second),
		},
		Jobs: JobsConfig{
			Retention:     getdur("JOB_RETENTION", time.Hour),
			SweepSchedule: getenv("JOB_SWEEP_SCHEDULE", "@every 10m"),
		},
		ToastDuration: getdur("TOAST_DURATION", 5*time.Second),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL:           getdur("IDEMPOTENCY_TTL", 24*time.Hour),
		IdempotencyPurgeSchedule: getenv("IDEMPOTENCY_PURGE_SCHEDULE", "@every 1h"),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "scan-pipeline"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 ||
		cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if !strings.HasPrefix(cfg.Engine.BaseURL, "http://") && !strings.HasPrefix(cfg.Engine.BaseURL, "https://") {
		return errors.New("ENGINE_URL must be an http(s) URL")
	}
	if cfg.Engine.SubmitTimeout <= 0 || cfg.Engine.StatusTimeout <= 0 {
		return errors.New("engine timeouts must be positive durations")
	}
	if cfg.Engine.MaxUploadSize <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.Broadcast.SubscriberBuffer < 1 {
		return errors.New("BROADCAST_SUBSCRIBER_BUFFER must be >= 1")
	}
	if cfg.Broadcast.ReconnectInitial <= 0 || cfg.Broadcast.ReconnectMax < cfg.Broadcast.ReconnectInitial {
		return errors.New("BROADCAST_RECONNECT_INITIAL must be > 0 and <= BROADCAST_RECONNECT_MAX")
	}
	// Zero would mean unlimited retries to the backoff policy.
	if cfg.Broadcast.ReconnectRetries < 1 {
		return errors.New("BROADCAST_RECONNECT_RETRIES must be >= 1")
	}
	if cfg.Broadcast.HeartbeatInterval <= 0 {
		return errors.New("BROADCAST_HEARTBEAT must be > 0")
	}
	if cfg.Jobs.Retention <= 0 {
		return errors.New("JOB_RETENTION must be > 0")
	}
	if strings.TrimSpace(cfg.Jobs.SweepSchedule) == "" {
		return errors.New("JOB_SWEEP_SCHEDULE must not be empty")
	}
	if cfg.ToastDuration <= 0 {
		return errors.New("TOAST_DURATION must be > 0")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.IdempotencyPurgeSchedule) == "" {
		return errors.New("IDEMPOTENCY_PURGE_SCHEDULE must not be empty")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (cfg Config) Addr() string { return ":" + cfg.Port }

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
