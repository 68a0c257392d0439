// Package config loads the gateway configuration from the environment.
//
// A .env file in the working directory is loaded first when present; variables already
// set in the environment win.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"admission-gateway/internal/logger"
	"admission-gateway/middleware/admission/domain"
)

type Config struct {
	ListenAddr  string
	UpstreamURL string

	Admission   AdmissionConfig
	Concurrency ConcurrencyConfig
	Stats       StatsConfig
	Log         logger.Config
}

type AdmissionConfig struct {
	Enabled      bool
	Threshold    int
	Window       time.Duration
	Shards       int
	CleanupEvery time.Duration
	KeyHeader    string
	TrustXFF     bool
	AddHeaders   bool
	// LogInterval throttles the suspicious user-agent diagnostic.
	LogInterval time.Duration
}

func (a AdmissionConfig) Tracker() domain.TrackerConfig {
	return domain.TrackerConfig{Threshold: a.Threshold, Window: a.Window}
}

type ConcurrencyConfig struct {
	Max     int
	Timeout time.Duration
}

type StatsConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
	TTL           time.Duration
	Bucket        string
	TrackKeys     bool
}

// Load reads the configuration and validates it. UPSTREAM_URL is not required here;
// binaries that proxy check it themselves.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:  getenvDefault("LISTEN_ADDR", ":8080"),
		UpstreamURL: os.Getenv("UPSTREAM_URL"),
		Admission: AdmissionConfig{
			Enabled:      getenvBoolDefault("ADMISSION_ENABLED", true),
			Threshold:    getenvIntDefault("ADMISSION_THRESHOLD", domain.DefaultThreshold),
			Window:       getenvDurationDefault("ADMISSION_WINDOW", domain.DefaultWindow),
			Shards:       getenvIntDefault("ADMISSION_SHARDS", 32),
			CleanupEvery: getenvDurationDefault("ADMISSION_CLEANUP_EVERY", 2*time.Minute),
			KeyHeader:    os.Getenv("ADMISSION_KEY_HEADER"),
			TrustXFF:     getenvBoolDefault("TRUST_XFF", false),
			AddHeaders:   getenvBoolDefault("ADD_ADMISSION_HEADERS", false),
			LogInterval:  getenvDurationDefault("ADMISSION_LOG_INTERVAL", time.Second),
		},
		Concurrency: ConcurrencyConfig{
			Max:     getenvIntDefault("CONCURRENCY_MAX", 100),
			Timeout: getenvDurationDefault("CONCURRENCY_TIMEOUT", 0),
		},
		Stats: StatsConfig{
			Enabled:       getenvBoolDefault("ADMISSION_STATS_ENABLED", false),
			RedisAddr:     os.Getenv("ADMISSION_STATS_REDIS_ADDR"),
			RedisPassword: os.Getenv("ADMISSION_STATS_REDIS_PASSWORD"),
			RedisDB:       getenvIntDefault("ADMISSION_STATS_REDIS_DB", 0),
			Prefix:        getenvDefault("ADMISSION_STATS_PREFIX", "admission:stats"),
			TTL:           getenvDurationDefault("ADMISSION_STATS_TTL", 24*time.Hour),
			Bucket:        getenvDefault("ADMISSION_STATS_BUCKET", "minute"),
			TrackKeys:     getenvBoolDefault("ADMISSION_STATS_TRACK_KEYS", false),
		},
		Log: logger.Config{
			Level:  getenvDefault("LOG_LEVEL", "info"),
			Format: getenvDefault("LOG_FORMAT", "console"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Admission.Threshold <= 0 {
		return errors.New("ADMISSION_THRESHOLD must be > 0")
	}
	if c.Admission.Window <= 0 {
		return errors.New("ADMISSION_WINDOW must be > 0")
	}
	if c.Admission.Shards <= 0 {
		return errors.New("ADMISSION_SHARDS must be > 0")
	}
	if c.Concurrency.Max < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.RedisAddr) == "" {
		return errors.New("ADMISSION_STATS_REDIS_ADDR is required when ADMISSION_STATS_ENABLED=true")
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Unparsable numeric, boolean and duration values fall back to the default.

func getenvIntDefault(k string, def int) int {
	i, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return def
	}
	return d
}
