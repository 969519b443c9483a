package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Resolver backends.
const (
	BackendLive      = "live"
	BackendSynthetic = "synthetic"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Resolver configuration.
	ResolverBackend string
	ParcelBaseURL   string
	ParcelTimeout   time.Duration

	// Address API configuration.
	GeocoderBaseURL   string
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int
	SearchDebounce    time.Duration

	// Session configuration.
	SessionTTL       time.Duration
	SnapshotMaxBytes int64
	SnapshotScale    float64

	// Optional Redis parcel cache. Disabled when RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// Optional Kafka event forwarding.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaEventsTopic string

	// ReportBrandingFile points at an optional YAML file overriding the
	// report header and footer text.
	ReportBrandingFile string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first and never
// overrides variables already present in the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	parcelTimeout, err := parseDuration("PARCEL_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	debounce, err := parseDuration("SEARCH_DEBOUNCE", "300ms")
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parseDuration("SESSION_TTL", "30m")
	if err != nil {
		return nil, err
	}
	redisTTL, err := parseDuration("REDIS_TTL", "24h")
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("GEOCODER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	maxBytes, err := parsePositiveInt("SNAPSHOT_MAX_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}
	redisDB, err := parseNonNegativeInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	scale, err := parseScale()
	if err != nil {
		return nil, err
	}

	brokers := sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		ResolverBackend:    strings.ToLower(sharedcfg.EnvOrDefault("RESOLVER_BACKEND", BackendLive)),
		ParcelBaseURL:      sharedcfg.EnvOrDefault("PARCEL_BASE_URL", "https://apicarto.ign.fr/api/cadastre"),
		ParcelTimeout:      parcelTimeout,
		GeocoderBaseURL:    sharedcfg.EnvOrDefault("GEOCODER_BASE_URL", "https://api-adresse.data.gouv.fr"),
		GeocoderTimeout:    geocoderTimeout,
		GeocoderCacheSize:  cacheSize,
		SearchDebounce:     debounce,
		SessionTTL:         sessionTTL,
		SnapshotMaxBytes:   int64(maxBytes),
		SnapshotScale:      scale,
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		RedisTTL:           redisTTL,
		KafkaEnabled:       kafkaEnabled,
		KafkaBrokers:       brokers,
		KafkaEventsTopic:   sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "cadastral-events"),
		ReportBrandingFile: os.Getenv("REPORT_BRANDING_FILE"),
	}

	if cfg.ResolverBackend != BackendLive && cfg.ResolverBackend != BackendSynthetic {
		return nil, fmt.Errorf("invalid RESOLVER_BACKEND %q: want %q or %q", cfg.ResolverBackend, BackendLive, BackendSynthetic)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required when Kafka is enabled")
	}

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseNonNegativeInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseScale() (float64, error) {
	s := os.Getenv("SNAPSHOT_SCALE")
	if s == "" {
		return 1, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f > 4 {
		return 0, errors.New("invalid SNAPSHOT_SCALE: want a value in (0, 4]")
	}
	return f, nil
}
