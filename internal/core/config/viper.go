package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	v.SetDefault("remap.encoding", "utf-8-sig")
	v.SetDefault("remap.format", "csv")
	v.SetDefault("remap.output_dir", ".")
	v.SetDefault("remap.db_url", "")
	v.SetDefault("remap.parallel", false)
	v.SetDefault("remap.log_level", "info")
	v.SetDefault("remap.log_format", "console")

	// Bind environment variables with REMAP_ prefix
	v.SetEnvPrefix("REMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Encoding:  v.GetString("remap.encoding"),
		Format:    v.GetString("remap.format"),
		OutputDir: v.GetString("remap.output_dir"),
		DBURL:     v.GetString("remap.db_url"),
		Parallel:  v.GetBool("remap.parallel"),
		LogLevel:  v.GetString("remap.log_level"),
		LogFormat: v.GetString("remap.log_format"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
