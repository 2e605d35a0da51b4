package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
)

// Config holds environment-driven settings for the terminal core.
type Config struct {
	Port string

	// Account
	AccountDescriptor string
	AccountBalance    float64

	// Instrument universe file (YAML)
	UniversePath string

	// Journal
	JournalPath   string
	EnableJournal bool

	// Simulated venue
	SimStartPrice float64
	SimSpread     float64
	SimStep       float64
	SimIntervalMs int
	SimSeed       int64

	// Logging
	LogLevel       string
	LogDevelopment bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		AccountDescriptor: getEnv("ACCOUNT_DESCRIPTOR", "sim-account"),
		AccountBalance:    getEnvFloat("ACCOUNT_BALANCE", 25000),
		UniversePath:      getEnv("UNIVERSE_PATH", "./config/instruments.yaml"),
		JournalPath:       getEnv("JOURNAL_PATH", "./data/journal.db"),
		EnableJournal:     getEnv("ENABLE_JOURNAL", "true") == "true",
		SimStartPrice:     getEnvFloat("SIM_START_PRICE", 100),
		SimSpread:         getEnvFloat("SIM_SPREAD", 0.02),
		SimStep:           getEnvFloat("SIM_STEP", 0.5),
		SimIntervalMs:     getEnvInt("SIM_INTERVAL_MS", 250),
		SimSeed:           int64(getEnvInt("SIM_SEED", 0)),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogDevelopment:    getEnv("LOG_DEVELOPMENT", "false") == "true",
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	var err error
	if c.AccountDescriptor == "" {
		err = multierr.Append(err, errors.New("ACCOUNT_DESCRIPTOR must not be empty"))
	}
	if c.AccountBalance < 0 {
		err = multierr.Append(err, errors.New("ACCOUNT_BALANCE must not be negative"))
	}
	if c.SimIntervalMs <= 0 {
		err = multierr.Append(err, errors.New("SIM_INTERVAL_MS must be positive"))
	}
	if c.EnableJournal && c.JournalPath == "" {
		err = multierr.Append(err, errors.New("JOURNAL_PATH must be set when the journal is enabled"))
	}
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
