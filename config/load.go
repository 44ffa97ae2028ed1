package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads the YAML file at path (when non-empty) and then applies
// environment overrides. Defaults come from env-default tags.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if strings.TrimSpace(path) != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}
	if c.Exports.Enabled {
		switch strings.ToLower(strings.TrimSpace(c.Exports.Sink)) {
		case "", "fs":
		case "s3":
			if strings.TrimSpace(c.Exports.S3.Bucket) == "" {
				return fmt.Errorf("exports.s3.bucket required for s3 sink")
			}
		default:
			return fmt.Errorf("unsupported exports.sink %q", c.Exports.Sink)
		}
	}
	if key := c.Exports.EncryptionKey; key != "" && len(key) != 32 {
		return fmt.Errorf("exports.encryption_key must be 32 bytes")
	}
	return nil
}

// Usage renders the environment variable reference.
func Usage() string {
	var cfg AppConfig
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
