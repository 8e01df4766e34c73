// Package config assembles runtime settings from environment variables
// with defaults, plus an optional YAML file for the sweep tuning knobs.
// Environment always wins over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Database holds Postgres connection settings.
type Database struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the Postgres connection URL.
func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// Config is everything the sweeper binary needs.
type Config struct {
	Database Database

	HTTPAddr   string
	AdminToken string

	NATSURL string // empty disables event publishing

	ResultsBaseURL string

	SweepInterval        time.Duration
	VerificationInterval time.Duration
	BatchSize            int
	TaxRate              float64
}

// fileConfig is the optional YAML overlay for sweep tuning.
type fileConfig struct {
	Sweep struct {
		Interval             string  `yaml:"interval"`
		VerificationInterval string  `yaml:"verification_interval"`
		BatchSize            int     `yaml:"batch_size"`
		TaxRate              float64 `yaml:"tax_rate"`
	} `yaml:"sweep"`
}

// Load reads env vars (with defaults) and, when CONFIG_FILE is set or
// config.yaml exists, layers the YAML file underneath them.
func Load() (*Config, error) {
	cfg := &Config{
		Database: Database{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "draftforge"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		AdminToken:           os.Getenv("ADMIN_TOKEN"),
		NATSURL:              os.Getenv("NATS_URL"),
		ResultsBaseURL:       getEnv("RESULTS_BASE_URL", "https://results.example.com/api"),
		SweepInterval:        2 * time.Second,
		VerificationInterval: 30 * time.Second,
		BatchSize:            50,
		TaxRate:              0,
	}

	path := getEnv("CONFIG_FILE", "config.yaml")
	if fc, err := loadFile(path); err == nil {
		applyFile(cfg, fc)
	} else if os.Getenv("CONFIG_FILE") != "" {
		// An explicitly named file must exist.
		return nil, err
	}

	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
		}
		cfg.SweepInterval = d
	}
	if v := os.Getenv("VERIFICATION_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid VERIFICATION_INTERVAL: %w", err)
		}
		cfg.VerificationInterval = d
	}
	cfg.BatchSize = getEnvAsInt("SWEEP_BATCH_SIZE", cfg.BatchSize)
	if v := os.Getenv("TAX_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f >= 1 {
			return nil, fmt.Errorf("invalid TAX_RATE %q", v)
		}
		cfg.TaxRate = f
	}

	return cfg, nil
}

func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &fc, nil
}

func applyFile(cfg *Config, fc *fileConfig) {
	if fc.Sweep.Interval != "" {
		if d, err := time.ParseDuration(fc.Sweep.Interval); err == nil {
			cfg.SweepInterval = d
		}
	}
	if fc.Sweep.VerificationInterval != "" {
		if d, err := time.ParseDuration(fc.Sweep.VerificationInterval); err == nil {
			cfg.VerificationInterval = d
		}
	}
	if fc.Sweep.BatchSize > 0 {
		cfg.BatchSize = fc.Sweep.BatchSize
	}
	if fc.Sweep.TaxRate > 0 && fc.Sweep.TaxRate < 1 {
		cfg.TaxRate = fc.Sweep.TaxRate
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
