package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	APIBaseURL         string
	HTTPTimeout        time.Duration
	PollInterval       time.Duration
	SlowPollInterval   time.Duration
	NotFoundRetryDelay time.Duration
	NotFoundThreshold  int
	MinDurationSeconds int
	MaxDurationSeconds int
	Resolutions        []string
	DownloadDir        string

	// Stub backend settings, used by cmd/stubserver only.
	Port                string
	StubVisibilityDelay time.Duration
	StubStepInterval    time.Duration
	HTTPReadTimeout     time.Duration
	HTTPWriteTimeout    time.Duration
	HTTPIdleTimeout     time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	// Optional .env files; absence is not an error.
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		APIBaseURL:          getEnv("API_BASE_URL", "http://localhost:8080"),
		HTTPTimeout:         getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		PollInterval:        getEnvDuration("POLL_INTERVAL", 2*time.Second),
		SlowPollInterval:    getEnvDuration("SLOW_POLL_INTERVAL", 5*time.Second),
		NotFoundRetryDelay:  getEnvDuration("NOT_FOUND_RETRY_DELAY", 2*time.Second),
		NotFoundThreshold:   getEnvInt("NOT_FOUND_THRESHOLD", 5),
		MinDurationSeconds:  getEnvInt("MIN_DURATION_SECONDS", 1),
		MaxDurationSeconds:  getEnvInt("MAX_DURATION_SECONDS", 10),
		Resolutions:         getEnvList("RESOLUTIONS", defaultResolutions()),
		DownloadDir:         getEnv("DOWNLOAD_DIR", "."),
		Port:                getEnv("PORT", "8080"),
		StubVisibilityDelay: getEnvDuration("STUB_VISIBILITY_DELAY", 5*time.Second),
		StubStepInterval:    getEnvDuration("STUB_STEP_INTERVAL", 2*time.Second),
		HTTPReadTimeout:     time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:    time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:     time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.MinDurationSeconds < 1 {
		return nil, fmt.Errorf("MIN_DURATION_SECONDS must be at least 1")
	}
	if cfg.MaxDurationSeconds < cfg.MinDurationSeconds {
		return nil, fmt.Errorf("MAX_DURATION_SECONDS must be >= MIN_DURATION_SECONDS")
	}
	if cfg.NotFoundThreshold < 1 {
		return nil, fmt.Errorf("NOT_FOUND_THRESHOLD must be at least 1")
	}

	return cfg, nil
}

func defaultResolutions() []string {
	return []string{"480x480", "854x480", "720x720", "1280x720", "1080x1080", "1920x1080"}
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
