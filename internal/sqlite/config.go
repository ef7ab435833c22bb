// File path: internal/sqlite/config.go
package sqlite

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls the connection pool of the store.
type Config struct {
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	BusyTimeout     time.Duration
}

// DefaultConfig returns pool defaults for path.
func DefaultConfig(path string) Config {
	cfg := Config{Path: strings.TrimSpace(path)}
	cfg.applyDefaults()
	return cfg
}

// Merge overlays the non-zero fields of override.
func (c Config) Merge(override Config) Config {
	result := c
	if p := strings.TrimSpace(override.Path); p != "" {
		result.Path = p
	}
	if override.MaxOpenConns > 0 {
		result.MaxOpenConns = override.MaxOpenConns
	}
	if override.MaxIdleConns > 0 {
		result.MaxIdleConns = override.MaxIdleConns
	}
	if override.ConnMaxLifetime > 0 {
		result.ConnMaxLifetime = override.ConnMaxLifetime
	}
	if override.ConnMaxIdleTime > 0 {
		result.ConnMaxIdleTime = override.ConnMaxIdleTime
	}
	if override.BusyTimeout > 0 {
		result.BusyTimeout = override.BusyTimeout
	}
	return result
}

// LoadConfig reads SQLITE_* pool settings from the environment on top of the
// defaults for path.
func LoadConfig(path string) (Config, error) {
	var env Config
	var err error
	if env.MaxOpenConns, err = intEnv("SQLITE_MAX_OPEN_CONNS"); err != nil {
		return Config{}, err
	}
	if env.MaxIdleConns, err = intEnv("SQLITE_MAX_IDLE_CONNS"); err != nil {
		return Config{}, err
	}
	if env.ConnMaxLifetime, err = durationEnv("SQLITE_CONN_MAX_LIFETIME"); err != nil {
		return Config{}, err
	}
	if env.ConnMaxIdleTime, err = durationEnv("SQLITE_CONN_MAX_IDLE_TIME"); err != nil {
		return Config{}, err
	}
	if env.BusyTimeout, err = durationEnv("SQLITE_BUSY_TIMEOUT"); err != nil {
		return Config{}, err
	}
	return DefaultConfig(path).Merge(env), nil
}

func (c *Config) applyDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 8
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 15 * time.Minute
	}
	if c.ConnMaxIdleTime <= 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
}

func intEnv(key string) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string) (time.Duration, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
