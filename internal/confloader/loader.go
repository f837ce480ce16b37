package confloader

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "RDBSERVER_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	envFile   string
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithEnvFile sets a dotenv file read before the environment is parsed.
// A missing file is ignored.
func WithEnvFile(path string) Option {
	return func(l *Loader) {
		l.envFile = path
	}
}

// NewLoader creates a new configuration loader seeded with Defaults.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load merges defaults, the configuration file, the environment and
// overrides, in that order, and returns validated Settings.
func (l *Loader) Load(overrides map[string]any) (Settings, error) {
	var settings Settings

	if err := l.LoadMap(Defaults()); err != nil {
		return settings, fmt.Errorf("load defaults: %w", err)
	}

	if err := l.LoadFile(l.filePath); err != nil {
		return settings, fmt.Errorf("load config file: %w", err)
	}

	if err := l.LoadEnv(); err != nil {
		return settings, fmt.Errorf("load env: %w", err)
	}

	if len(overrides) > 0 {
		if err := l.LoadMap(overrides); err != nil {
			return settings, fmt.Errorf("load overrides: %w", err)
		}
	}

	if err := l.k.Unmarshal("", &settings); err != nil {
		return settings, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return settings, err
	}
	return settings, nil
}

// LoadFile loads configuration from a YAML file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}

	return nil
}

// LoadEnv loads configuration from prefixed environment variables, after
// reading the dotenv file if one is configured.
// Example: RDBSERVER_DBFILENAME=dump.rdb
func (l *Loader) LoadEnv() error {
	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file %s: %w", l.envFile, err)
		}
	}

	var parsed envSettings
	if err := env.ParseWithOptions(&parsed, env.Options{Prefix: l.envPrefix}); err != nil {
		return err
	}

	return l.LoadMap(parsed.toMap())
}

// LoadMap loads configuration from a map (useful for flags or testing).
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// All returns all configuration as a map.
func (l *Loader) All() map[string]any {
	return l.k.All()
}
