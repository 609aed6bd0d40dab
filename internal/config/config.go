package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Scoring struct {
		TablesPath string `yaml:"tables_path"`
	} `yaml:"scoring"`
	Catalog struct {
		AcquirersPath string `yaml:"acquirers_path"`
		TargetsPath   string `yaml:"targets_path"`
	} `yaml:"catalog"`
	Schedule struct {
		UniverseCron    string `yaml:"universe_cron"`
		MaintenanceCron string `yaml:"maintenance_cron"`
	} `yaml:"schedule"`
	Backtest struct {
		PrecisionK int `yaml:"precision_k"`
	} `yaml:"backtest"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("SCORING_TABLES_PATH"); v != "" {
		cfg.Scoring.TablesPath = v
	}
	if v := os.Getenv("ACQUIRER_CATALOG_PATH"); v != "" {
		cfg.Catalog.AcquirersPath = v
	}
	if v := os.Getenv("TARGET_CATALOG_PATH"); v != "" {
		cfg.Catalog.TargetsPath = v
	}
	if v := os.Getenv("CRON_UNIVERSE"); v != "" {
		cfg.Schedule.UniverseCron = v
	}
	if v := os.Getenv("CRON_MAINTENANCE"); v != "" {
		cfg.Schedule.MaintenanceCron = v
	}
	if v := os.Getenv("BACKTEST_PRECISION_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Backtest.PrecisionK = k
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Defaults
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/target_sentinel.db"
	}
	if cfg.Schedule.UniverseCron == "" {
		cfg.Schedule.UniverseCron = "0 0 6 * * 1-5"
	}
	if cfg.Schedule.MaintenanceCron == "" {
		cfg.Schedule.MaintenanceCron = "0 30 6 * * *"
	}
	if cfg.Backtest.PrecisionK == 0 {
		cfg.Backtest.PrecisionK = 10
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	if c.Backtest.PrecisionK <= 0 {
		return fmt.Errorf("backtest.precision_k must be positive")
	}
	return nil
}
