package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"media-library/library"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Loans    LoanConfig     `yaml:"loans"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig points at the SQLite file holding the library.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoanConfig contains the circulation policy settings
type LoanConfig struct {
	LoanDays           int  `yaml:"loan_days"`
	FinePencePerDay    int  `yaml:"fine_pence_per_day"`
	StrictReservations bool `yaml:"strict_reservations"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "library.db"},
		Loans:    LoanConfig{LoanDays: 14, FinePencePerDay: 20},
		// Logs share the terminal with the console, so only problems show by default.
		Log:      LogConfig{Level: "warn", Format: "text"},
	}
}

// Load reads configuration from a YAML file on top of the defaults, then
// applies environment overrides. An empty path skips the file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.overrideWithEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() error {
	if val := os.Getenv("LIBRARY_DB_PATH"); val != "" {
		c.Database.Path = val
	}
	if val := os.Getenv("LIBRARY_LOAN_DAYS"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("LIBRARY_LOAN_DAYS: %w", err)
		}
		c.Loans.LoanDays = n
	}
	if val := os.Getenv("LIBRARY_FINE_PENCE_PER_DAY"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("LIBRARY_FINE_PENCE_PER_DAY: %w", err)
		}
		c.Loans.FinePencePerDay = n
	}
	if val := os.Getenv("LIBRARY_STRICT_RESERVATIONS"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("LIBRARY_STRICT_RESERVATIONS: %w", err)
		}
		c.Loans.StrictReservations = b
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	if c.Loans.LoanDays < 0 {
		return fmt.Errorf("loan days cannot be negative: %d", c.Loans.LoanDays)
	}
	if c.Loans.FinePencePerDay <= 0 {
		return fmt.Errorf("fine per day must be positive: %d", c.Loans.FinePencePerDay)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// OpenManager builds the loan and fine policies described by c and opens
// the library stored at c.Database.Path.
func (c *Config) OpenManager(log *slog.Logger) (*library.LibraryManager, error) {
	loanPolicy, err := library.NewStandardLoanPolicy(c.Loans.LoanDays)
	if err != nil {
		return nil, err
	}
	finePolicy, err := library.NewStandardFinePolicy(c.Loans.FinePencePerDay)
	if err != nil {
		return nil, err
	}
	var opts []library.Option
	if c.Loans.StrictReservations {
		opts = append(opts, library.WithStrictReservations())
	}
	return library.NewLibraryManager(c.Database.Path, loanPolicy, finePolicy, log, opts...)
}
