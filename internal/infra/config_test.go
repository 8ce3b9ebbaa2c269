package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "OUTPUT_DIR", "OUTPUT_URL_PREFIX", "POLL_INTERVAL_SECONDS", "MAX_VIDEO_DURATION_SECONDS", "ALLOWED_ORIGINS", "DATABASE_URL", "HTTP_WRITE_TIMEOUT_SECONDS", "HTTP_DOWNLOAD_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT_SECONDS", "DB_MAX_CONNS"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8000" {
		t.Fatalf("Port mismatch: got %q", cfg.Port)
	}
	if cfg.OutputDir != "outputs" || cfg.OutputURLPrefix != "/outputs" {
		t.Fatalf("output settings mismatch: %q %q", cfg.OutputDir, cfg.OutputURLPrefix)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("PollInterval mismatch: %v", cfg.PollInterval)
	}
	if cfg.OperationRetention != time.Hour || cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("retention settings mismatch: %v %v", cfg.OperationRetention, cfg.SweepInterval)
	}
	if cfg.MaxVideoDuration != 148 {
		t.Fatalf("MaxVideoDuration mismatch: %d", cfg.MaxVideoDuration)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("AllowedOrigins mismatch: %#v", cfg.AllowedOrigins)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL should be optional, got %q", cfg.DatabaseURL)
	}
	if cfg.HTTPDownloadTimeout != 10*time.Minute || cfg.ShutdownTimeout != 30*time.Second {
		t.Fatalf("timeout settings mismatch: %v %v", cfg.HTTPDownloadTimeout, cfg.ShutdownTimeout)
	}
	if cfg.DBMaxConns != 4 {
		t.Fatalf("DBMaxConns mismatch: %d", cfg.DBMaxConns)
	}
}

func TestLoadConfigDownloadTimeoutNeverBelowWriteTimeout(t *testing.T) {
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "120")
	t.Setenv("HTTP_DOWNLOAD_TIMEOUT_SECONDS", "60")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.HTTPDownloadTimeout != 2*time.Minute {
		t.Fatalf("HTTPDownloadTimeout = %v, want 2m", cfg.HTTPDownloadTimeout)
	}
}

func TestLoadConfigTrimsURLPrefix(t *testing.T) {
	t.Setenv("OUTPUT_URL_PREFIX", "/media/videos/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.OutputURLPrefix != "/media/videos" {
		t.Fatalf("OutputURLPrefix mismatch: %q", cfg.OutputURLPrefix)
	}
}

func TestLoadConfigSplitsOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.AllowedOrigins) != len(expected) {
		t.Fatalf("AllowedOrigins mismatch: got %#v want %#v", cfg.AllowedOrigins, expected)
	}
	for i, origin := range expected {
		if cfg.AllowedOrigins[i] != origin {
			t.Fatalf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], origin)
		}
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero poll interval", key: "POLL_INTERVAL_SECONDS", value: "0"},
		{name: "negative timeout", key: "SEGMENT_TIMEOUT_SECONDS", value: "-1"},
		{name: "duration below one segment", key: "MAX_VIDEO_DURATION_SECONDS", value: "5"},
		{name: "absolute url prefix", key: "OUTPUT_URL_PREFIX", value: "https://cdn.example.com/videos"},
		{name: "relative url prefix", key: "OUTPUT_URL_PREFIX", value: "outputs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
