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

// Config holds all service settings, populated from environment variables.
type Config struct {
	PostgresDSN string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string

	ShutdownTimeout time.Duration

	// Batch run settings.
	RunInterval  time.Duration // 0 disables the scheduler
	RunTimeout   time.Duration
	WindowMonths int

	// External provider settings.
	ProviderTimeout   time.Duration
	GeocoderUserAgent string
	GeocodeCacheSize  int

	// Optional Kafka event publishing.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from the environment (and an optional .env file),
// applying defaults where unset. A missing PG_DSN is the one configuration
// error that must abort the service before any user is processed.
func Load() (*Config, error) {
	// .env is a local-dev convenience; absence is not an error.
	_ = godotenv.Load()

	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	runInterval, err := envDuration("RUN_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	runTimeout, err := envDuration("RUN_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	providerTimeout, err := envDuration("PROVIDER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	windowMonths, err := envInt("WINDOW_MONTHS", 6)
	if err != nil {
		return nil, err
	}
	cacheSize, err := envInt("GEOCODE_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		PostgresDSN:       os.Getenv("PG_DSN"),
		HTTPAddr:          envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          envOrDefault("LOG_LEVEL", "info"),
		LogFormat:         envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		RunInterval:       runInterval,
		RunTimeout:        runTimeout,
		WindowMonths:      windowMonths,
		ProviderTimeout:   providerTimeout,
		GeocoderUserAgent: envOrDefault("GEOCODER_USER_AGENT", "RegenAgro/1.0"),
		GeocodeCacheSize:  cacheSize,
		KafkaBrokers:      brokers,
		KafkaTopic:        envOrDefault("KAFKA_TOPIC", "enviro-aggregate-events"),
		KafkaEnabled:      kafkaEnabled,
	}

	if cfg.PostgresDSN == "" {
		return nil, errors.New("PG_DSN is required")
	}
	if cfg.WindowMonths <= 0 {
		return nil, errors.New("WINDOW_MONTHS must be positive")
	}
	if cfg.RunTimeout <= 0 {
		return nil, errors.New("RUN_TIMEOUT must be positive")
	}
	if cfg.ProviderTimeout <= 0 {
		return nil, errors.New("PROVIDER_TIMEOUT must be positive")
	}
	if cfg.RunInterval < 0 {
		return nil, errors.New("RUN_INTERVAL must not be negative")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseBrokers(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
