// Package config provides configuration management for remap commands.
package config

import "fmt"

// Config holds the settings shared by transformation runs. Flags override
// everything here; the file and environment fill the gaps.
type Config struct {
	// Encoding of CSV source files.
	Encoding string

	// Format of the output sink: csv or db.
	Format string

	// OutputDir receives the per-table CSV files.
	OutputDir string

	// DBURL selects the database sink (sqlite:// or postgres://) when
	// Format is db.
	DBURL string

	// Parallel processes output tables concurrently.
	Parallel bool

	// LogLevel and LogFormat configure diagnostic output.
	LogLevel  string
	LogFormat string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Encoding:  "utf-8-sig",
		Format:    "csv",
		OutputDir: ".",
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// validateConfig checks the enumerated settings.
func validateConfig(cfg *Config) error {
	switch cfg.Encoding {
	case "utf-8", "utf-8-sig":
	default:
		return fmt.Errorf("encoding must be utf-8 or utf-8-sig, got %q", cfg.Encoding)
	}
	switch cfg.Format {
	case "csv", "db":
	default:
		return fmt.Errorf("format must be csv or db, got %q", cfg.Format)
	}
	if cfg.Format == "db" && cfg.DBURL == "" {
		return fmt.Errorf("format db requires a database URL")
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", cfg.LogFormat)
	}
	return nil
}
