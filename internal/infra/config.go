package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv          string
	Port            string
	DatabaseURL     string
	LogFile         string
	OutputDir       string
	OutputURLPrefix string
	AllowedOrigins  []string

	GeminiAPIKey  string
	GeminiBaseURL string
	VeoModel      string

	PollInterval       time.Duration
	SegmentTimeout     time.Duration
	SegmentEstimate    time.Duration
	OperationRetention time.Duration
	SweepInterval      time.Duration
	MaxVideoDuration   int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// HTTPDownloadTimeout replaces HTTPWriteTimeout on routes that stream
	// artifacts (segment bundles and output files).
	HTTPDownloadTimeout time.Duration
	ShutdownTimeout     time.Duration
	RateLimitPerMin     int

	DBMaxConns int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8000"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		LogFile:            os.Getenv("LOG_FILE"),
		OutputDir:          getEnv("OUTPUT_DIR", "outputs"),
		OutputURLPrefix:    strings.TrimRight(getEnv("OUTPUT_URL_PREFIX", "/outputs"), "/"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "*")),
		GeminiAPIKey:       strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VeoModel:           getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		PollInterval:       time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 10)),
		SegmentTimeout:     time.Second * time.Duration(getEnvInt("SEGMENT_TIMEOUT_SECONDS", 900)),
		SegmentEstimate:    time.Second * time.Duration(getEnvInt("SEGMENT_ESTIMATE_SECONDS", 90)),
		OperationRetention: time.Minute * time.Duration(getEnvInt("OPERATION_RETENTION_MINUTES", 60)),
		SweepInterval:      time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 300)),
		MaxVideoDuration:   getEnvInt("MAX_VIDEO_DURATION_SECONDS", 148),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 4),

		HTTPDownloadTimeout: time.Second * time.Duration(getEnvInt("HTTP_DOWNLOAD_TIMEOUT_SECONDS", 600)),
		ShutdownTimeout:     time.Second * time.Duration(getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30)),
	}

	if cfg.OutputURLPrefix == "" {
		cfg.OutputURLPrefix = "/outputs"
	}
	if !strings.HasPrefix(cfg.OutputURLPrefix, "/") {
		return nil, fmt.Errorf("OUTPUT_URL_PREFIX must be a path starting with /, got %q", cfg.OutputURLPrefix)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.SegmentTimeout <= 0 {
		return nil, fmt.Errorf("SEGMENT_TIMEOUT_SECONDS must be positive")
	}
	if cfg.MaxVideoDuration < 8 {
		return nil, fmt.Errorf("MAX_VIDEO_DURATION_SECONDS must be at least 8")
	}

	if cfg.HTTPDownloadTimeout < cfg.HTTPWriteTimeout {
		cfg.HTTPDownloadTimeout = cfg.HTTPWriteTimeout
	}
	if cfg.DBMaxConns < 1 {
		cfg.DBMaxConns = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
