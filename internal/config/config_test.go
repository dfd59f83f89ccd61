package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8080" || cfg.APIBasePath != "/api/v1" || cfg.GinMode != "release" {
		t.Fatalf("server defaults unexpected: %+v", cfg)
	}
	if cfg.Engine.BaseURL != "http://127.0.0.1:8000" || cfg.Engine.SubmitTimeout != 30*time.Second {
		t.Fatalf("engine defaults unexpected: %+v", cfg.Engine)
	}
	if cfg.Broadcast.SubscriberBuffer != 64 || cfg.Broadcast.ReconnectRetries != 10 {
		t.Fatalf("broadcast defaults unexpected: %+v", cfg.Broadcast)
	}
	if cfg.ToastDuration != 5*time.Second {
		t.Fatalf("toast default = %v; want 5s", cfg.ToastDuration)
	}
	if cfg.Jobs.SweepSchedule != "@every 10m" || cfg.Jobs.Retention != time.Hour {
		t.Fatalf("jobs defaults unexpected: %+v", cfg.Jobs)
	}
	if cfg.Addr() != ":8080" {
		t.Fatalf("Addr() = %q", cfg.Addr())
	}
}

func TestLoad_OverridesAndNormalization(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("ENGINE_URL", "http://engine:9000/")
	t.Setenv("ENGINE_SUBMIT_TIMEOUT", "3s")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("BROADCAST_SUBSCRIBER_BUFFER", "8")
	t.Setenv("BROADCAST_RECONNECT_RETRIES", "3")
	t.Setenv("TOAST_DURATION", "250ms")
	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.Engine.BaseURL != "http://engine:9000" || cfg.Engine.SubmitTimeout != 3*time.Second || cfg.Engine.MaxUploadSize != 1024 {
		t.Fatalf("engine unexpected: %+v", cfg.Engine)
	}
	if cfg.Broadcast.SubscriberBuffer != 8 || cfg.Broadcast.ReconnectRetries != 3 {
		t.Fatalf("broadcast unexpected: %+v", cfg.Broadcast)
	}
	if cfg.ToastDuration != 250*time.Millisecond {
		t.Fatalf("toast duration = %v", cfg.ToastDuration)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate fallbacks unexpected: rps=%v burst=%d", cfg.RateRPS, cfg.RateBurst)
	}
	if want := []string{"https://a.com", "http://b"}; !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Fatalf("CORS = %v; want %v", cfg.CORS.AllowedOrigins, want)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"negative timeout", map[string]string{"READ_TIMEOUT": "-1s"}, "timeouts"},
		{"bad engine url", map[string]string{"ENGINE_URL": "ftp://x"}, "ENGINE_URL"},
		{"zero upload", map[string]string{"MAX_UPLOAD_BYTES": "0"}, "MAX_UPLOAD_BYTES"},
		{"zero buffer", map[string]string{"BROADCAST_SUBSCRIBER_BUFFER": "0"}, "BROADCAST_SUBSCRIBER_BUFFER"},
		{"negative retries", map[string]string{"BROADCAST_RECONNECT_RETRIES": "-1"}, "BROADCAST_RECONNECT_RETRIES"},
		{"zero retries", map[string]string{"BROADCAST_RECONNECT_RETRIES": "0"}, "BROADCAST_RECONNECT_RETRIES"},
		{"inverted backoff", map[string]string{"BROADCAST_RECONNECT_INITIAL": "1m", "BROADCAST_RECONNECT_MAX": "1s"}, "BROADCAST_RECONNECT_INITIAL"},
		{"zero toast", map[string]string{"TOAST_DURATION": "0s"}, "TOAST_DURATION"},
		{"negative rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"zero burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"sampler range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadFile_SeedsEnvironmentAndToleratesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TOAST_DURATION=750ms\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv never overrides variables that already exist.
	if _, set := os.LookupEnv("TOAST_DURATION"); set {
		t.Skip("TOAST_DURATION already set in environment")
	}
	t.Cleanup(func() { _ = os.Unsetenv("TOAST_DURATION") })

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.ToastDuration != 750*time.Millisecond {
		t.Fatalf("TOAST_DURATION from file = %v", cfg.ToastDuration)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be tolerated: %v", err)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"api":      "/api",
		"/api/v1/": "/api/v1",
		" /x ":     "/x",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}
