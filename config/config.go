// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"listingprice/logging"
	"listingprice/pipeline"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Log   logging.Config `yaml:"log"`
	Model struct {
		Type  string `yaml:"type"`
		Path  string `yaml:"path"`
		Watch bool   `yaml:"watch"`
	} `yaml:"model"`
	Dataset struct {
		Path    string           `yaml:"path"`
		Prepare pipeline.Options `yaml:"prepare"`
	} `yaml:"dataset"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Inference struct {
		CacheSize int `yaml:"cache_size"`
	} `yaml:"inference"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 8080
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = 30 * time.Second
	}
	if len(c.Http.AllowedOrigins) == 0 {
		c.Http.AllowedOrigins = []string{"*"}
	}
	if c.Http.MaxBodyBytes == 0 {
		c.Http.MaxBodyBytes = 1 << 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Model.Type == "" {
		c.Model.Type = "tree_ensemble"
	}
	if c.Model.Path == "" {
		c.Model.Path = "models/best_lgbm.json"
	}
	if c.Dataset.Path == "" {
		c.Dataset.Path = "Data/airbnb_imputed.csv"
	}
	if c.Inference.CacheSize == 0 {
		c.Inference.CacheSize = 1024
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	var errs []error
	if c.Http.Port < 0 || c.Http.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", c.Http.Port))
	}
	if c.Http.Timeout < 0 {
		errs = append(errs, errors.New("http.timeout must be positive"))
	}
	if c.Inference.CacheSize < 0 {
		errs = append(errs, errors.New("inference.cache_size must not be negative"))
	}
	return multierr.Combine(errs...)
}
