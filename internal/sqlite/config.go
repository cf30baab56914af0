// File path: internal/sqlite/config.go
package sqlite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxOpenConns    = 8
	defaultConnMaxLifetime = 15 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
	defaultBusyTimeout     = 5 * time.Second
)

// Config controls the catalog connection pool. The duration fields carry a
// parsed value alongside the raw string so JSON config files can use Go
// duration syntax.
type Config struct {
	Path string `json:"path"`

	MaxOpenConns int `json:"max_open_conns"`
	MaxIdleConns int `json:"max_idle_conns"`

	ConnMaxLifetime       time.Duration `json:"-"`
	ConnMaxLifetimeString string        `json:"conn_max_lifetime"`

	ConnMaxIdleTime       time.Duration `json:"-"`
	ConnMaxIdleTimeString string        `json:"conn_max_idle_time"`

	BusyTimeout       time.Duration `json:"-"`
	BusyTimeoutString string        `json:"busy_timeout"`
}

func (c Config) Merge(override Config) Config {
	result := c
	if strings.TrimSpace(override.Path) != "" {
		result.Path = strings.TrimSpace(override.Path)
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
	if strings.TrimSpace(override.ConnMaxLifetimeString) != "" {
		result.ConnMaxLifetimeString = strings.TrimSpace(override.ConnMaxLifetimeString)
	}
	if override.ConnMaxIdleTime > 0 {
		result.ConnMaxIdleTime = override.ConnMaxIdleTime
	}
	if strings.TrimSpace(override.ConnMaxIdleTimeString) != "" {
		result.ConnMaxIdleTimeString = strings.TrimSpace(override.ConnMaxIdleTimeString)
	}
	if override.BusyTimeout > 0 {
		result.BusyTimeout = override.BusyTimeout
	}
	if strings.TrimSpace(override.BusyTimeoutString) != "" {
		result.BusyTimeoutString = strings.TrimSpace(override.BusyTimeoutString)
	}
	return result
}

// LoadConfig layers a JSON config file named by SQLITE_CONFIG_FILE under the
// SQLITE_* environment variables, then applies defaults.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("SQLITE_CONFIG_FILE")); path != "" {
		fileCfg, err := loadConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.Merge(fileCfg)
	}
	envCfg, err := loadConfigEnv()
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.Merge(envCfg)
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = defaultMaxOpenConns
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	c.ConnMaxLifetime = resolveDuration(c.ConnMaxLifetime, c.ConnMaxLifetimeString, defaultConnMaxLifetime)
	c.ConnMaxIdleTime = resolveDuration(c.ConnMaxIdleTime, c.ConnMaxIdleTimeString, defaultConnMaxIdleTime)
	c.BusyTimeout = resolveDuration(c.BusyTimeout, c.BusyTimeoutString, defaultBusyTimeout)
}

func resolveDuration(current time.Duration, raw string, fallback time.Duration) time.Duration {
	if current > 0 {
		return current
	}
	if raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read sqlite config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse sqlite config: %w", err)
	}
	return cfg, nil
}

func loadConfigEnv() (Config, error) {
	cfg := Config{}
	cfg.Path = strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	var err error
	if cfg.MaxOpenConns, err = intEnv("SQLITE_MAX_OPEN_CONNS"); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = intEnv("SQLITE_MAX_IDLE_CONNS"); err != nil {
		return Config{}, err
	}
	cfg.ConnMaxLifetime, cfg.ConnMaxLifetimeString = durationEnv("SQLITE_CONN_MAX_LIFETIME")
	cfg.ConnMaxIdleTime, cfg.ConnMaxIdleTimeString = durationEnv("SQLITE_CONN_MAX_IDLE_TIME")
	cfg.BusyTimeout, cfg.BusyTimeoutString = durationEnv("SQLITE_BUSY_TIMEOUT")
	return cfg, nil
}

func intEnv(key string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value < 0 {
		return 0, nil
	}
	return value, nil
}

// durationEnv keeps the raw string even when it fails to parse so
// applyDefaults can report through the fallback path consistently.
func durationEnv(key string) (time.Duration, string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, ""
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, raw
	}
	return parsed, raw
}
