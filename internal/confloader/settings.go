package confloader

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	redisrdb "github.com/raniellyferreira/redis-rdb-server"
)

// Settings is the complete binary configuration
type Settings struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Dir         string        `koanf:"dir"`
	DBFilename  string        `koanf:"dbfilename"`
	Isolation   string        `koanf:"isolation"`
	ShardCount  int           `koanf:"shard_count"`
	ReadTimeout time.Duration `koanf:"read_timeout"`
	LogLevel    string        `koanf:"log_level"`
	MetricsAddr string        `koanf:"metrics_addr"`
}

// envSettings mirrors Settings for caarlos0/env. Pointer fields stay nil
// when the variable is unset, so only present variables override.
type envSettings struct {
	Host        *string        `env:"HOST"`
	Port        *int           `env:"PORT"`
	Dir         *string        `env:"DIR"`
	DBFilename  *string        `env:"DBFILENAME"`
	Isolation   *string        `env:"ISOLATION"`
	ShardCount  *int           `env:"SHARD_COUNT"`
	ReadTimeout *time.Duration `env:"READ_TIMEOUT"`
	LogLevel    *string        `env:"LOG_LEVEL"`
	MetricsAddr *string        `env:"METRICS_ADDR"`
}

func (e envSettings) toMap() map[string]any {
	m := make(map[string]any)
	setIf(m, "host", e.Host)
	setIf(m, "port", e.Port)
	setIf(m, "dir", e.Dir)
	setIf(m, "dbfilename", e.DBFilename)
	setIf(m, "isolation", e.Isolation)
	setIf(m, "shard_count", e.ShardCount)
	setIf(m, "read_timeout", e.ReadTimeout)
	setIf(m, "log_level", e.LogLevel)
	setIf(m, "metrics_addr", e.MetricsAddr)
	return m
}

func setIf[T any](m map[string]any, key string, v *T) {
	if v != nil {
		m[key] = *v
	}
}

// Defaults returns the built-in settings
func Defaults() map[string]any {
	return map[string]any{
		"host":         "127.0.0.1",
		"port":         6379,
		"dir":          "",
		"dbfilename":   "",
		"isolation":    "connection",
		"shard_count":  16,
		"read_timeout": "0s",
		"log_level":    "info",
		"metrics_addr": "",
	}
}

// Addr returns host:port
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Validate checks value ranges
func (s Settings) Validate() error {
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range: %w", s.Port, redisrdb.ErrInvalidConfig)
	}
	if s.ShardCount <= 0 {
		return fmt.Errorf("shard_count must be positive: %w", redisrdb.ErrInvalidConfig)
	}
	if s.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout must not be negative: %w", redisrdb.ErrInvalidConfig)
	}
	if _, err := redisrdb.ParseIsolation(s.Isolation); err != nil {
		return err
	}
	switch strings.ToLower(s.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("unknown log_level %q: %w", s.LogLevel, redisrdb.ErrInvalidConfig)
	}
	return nil
}

// ServerOptions converts the settings into server options
func (s Settings) ServerOptions() ([]redisrdb.Option, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	isolation, err := redisrdb.ParseIsolation(s.Isolation)
	if err != nil {
		return nil, err
	}

	return []redisrdb.Option{
		redisrdb.WithAddr(s.Addr()),
		redisrdb.WithDir(s.Dir),
		redisrdb.WithDBFilename(s.DBFilename),
		redisrdb.WithIsolation(isolation),
		redisrdb.WithShardCount(s.ShardCount),
		redisrdb.WithReadTimeout(s.ReadTimeout),
	}, nil
}
