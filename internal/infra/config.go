package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	// Credit ledger service.
	LedgerBaseURL string
	LedgerToken   string
	ImageCost     int
	VideoCost     int

	// Render provider.
	ProviderBaseURL string
	ProviderToken   string

	// Chat transport delivery endpoint.
	TransportBaseURL string
	TransportToken   string

	// Catalog and palette collaborators.
	CatalogBaseURL  string
	CatalogCacheTTL time.Duration
	PaletteBaseURL  string

	PollMaxAttempts int
	PollInterval    time.Duration
	VideoDeadline   time.Duration

	// Optional attempt history store. Empty means in-memory only.
	DatabaseURL string

	// Optional distributed video guard. Empty means in-process guard.
	RedisURL   string
	GuardLease time.Duration

	SessionIdleTimeout time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		LedgerBaseURL:      os.Getenv("LEDGER_BASE_URL"),
		LedgerToken:        os.Getenv("LEDGER_TOKEN"),
		ImageCost:          getEnvInt("IMAGE_CREDIT_COST", 1),
		VideoCost:          getEnvInt("VIDEO_CREDIT_COST", 3),
		ProviderBaseURL:    os.Getenv("PROVIDER_BASE_URL"),
		ProviderToken:      os.Getenv("PROVIDER_TOKEN"),
		TransportBaseURL:   os.Getenv("TRANSPORT_BASE_URL"),
		TransportToken:     os.Getenv("TRANSPORT_TOKEN"),
		CatalogBaseURL:     os.Getenv("CATALOG_BASE_URL"),
		CatalogCacheTTL:    time.Minute * time.Duration(getEnvInt("CATALOG_CACHE_MINUTES", 5)),
		PaletteBaseURL:     os.Getenv("PALETTE_BASE_URL"),
		PollMaxAttempts:    getEnvInt("POLL_MAX_ATTEMPTS", 60),
		PollInterval:       time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		VideoDeadline:      time.Minute * time.Duration(getEnvInt("VIDEO_DEADLINE_MINUTES", 5)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		GuardLease:         time.Minute * time.Duration(getEnvInt("GUARD_LEASE_MINUTES", 6)),
		SessionIdleTimeout: time.Minute * time.Duration(getEnvInt("SESSION_IDLE_MINUTES", 30)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.LedgerBaseURL == "" {
		return nil, fmt.Errorf("LEDGER_BASE_URL is required")
	}

	if cfg.ProviderBaseURL == "" {
		return nil, fmt.Errorf("PROVIDER_BASE_URL is required")
	}

	if cfg.TransportBaseURL == "" {
		return nil, fmt.Errorf("TRANSPORT_BASE_URL is required")
	}

	if cfg.CatalogBaseURL == "" {
		return nil, fmt.Errorf("CATALOG_BASE_URL is required")
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
