package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Filters FiltersConfig `mapstructure:"filters"`
	Filter  FilterConfig  `mapstructure:"filter"`
	API     APIConfig     `mapstructure:"api"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max-size"`
	MaxBackups int    `mapstructure:"max-backups"`
	MaxAge     int    `mapstructure:"max-age"`
}

// FiltersConfig locates the filter configuration library
type FiltersConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// FilterConfig holds the parameters of a filter run
type FilterConfig struct {
	ConfigID     string `mapstructure:"config-id"`
	Pattern      string `mapstructure:"pattern"`
	EntryPattern string `mapstructure:"entry-pattern"`
	DateRegex    string `mapstructure:"date-regex"`
	DateFormat   string `mapstructure:"date-format"`
	From         string `mapstructure:"from"`
	To           string `mapstructure:"to"`
	Stateless    bool   `mapstructure:"stateless"`
	Location     string `mapstructure:"location"`
	Workers      int    `mapstructure:"workers"`
	WithFilename bool   `mapstructure:"with-filename"`
	Watch        bool   `mapstructure:"watch"`
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxBodySize int64         `mapstructure:"max-body-size"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Filters: FiltersConfig{
			Path: "",
		},
		Filter: FilterConfig{
			Location: "Local",
			Workers:  1,
		},
		API: APIConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			Timeout:     time.Second * 60,
			MaxBodySize: 32 << 20,
		},
	}
}

// Load loads configuration from viper
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from the given viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	config := Default()

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// TimeLocation resolves the configured time zone for date parsing
func (c FilterConfig) TimeLocation() (*time.Location, error) {
	if c.Location == "" || strings.EqualFold(c.Location, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", c.Location, err)
	}
	return loc, nil
}

// validateConfig performs validation on the loaded config
func validateConfig(config *Config) error {
	// Validate log level
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(config.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[strings.ToLower(config.Log.Format)] {
		return fmt.Errorf("invalid log format: %s", config.Log.Format)
	}

	if config.API.Port < 1 || config.API.Port > 65535 {
		return fmt.Errorf("invalid api port: %d", config.API.Port)
	}

	if config.Filter.Workers < 1 {
		return fmt.Errorf("invalid workers: %d (must be at least 1)", config.Filter.Workers)
	}

	if config.API.MaxBodySize < 1 {
		return fmt.Errorf("invalid max body size: %d (must be at least 1)", config.API.MaxBodySize)
	}

	if _, err := config.Filter.TimeLocation(); err != nil {
		return err
	}

	return nil
}
