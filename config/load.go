package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads the YAML file at path (when given and present) and applies
// environment overrides on top of it.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	path = strings.TrimSpace(path)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return &cfg, cfg.validate()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	return &cfg, cfg.validate()
}

func (c *AppConfig) validate() error {
	if c.EffectiveDriver() == DriverPostgres && strings.TrimSpace(c.DBURL) == "" {
		return errors.New("db_url is required for the postgres driver")
	}
	if c.EffectiveDriver() == DriverSQLite && strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path is required for the sqlite driver")
	}
	if c.Schema.StatementTimeout < 0 {
		return errors.New("schema.statement_timeout must not be negative")
	}
	return nil
}
