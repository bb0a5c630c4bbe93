// Package config loads memevote configuration. Values come
// from defaults, then an optional YAML file, then environment
// variables. Callers may override fields afterwards and must
// call Validate before using the result.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load
const (
	EnvStoragePlugin = "MEMEVOTE_STORAGE_PLUGIN"
	EnvStoragePath   = "MEMEVOTE_STORAGE_PATH"
	EnvStorageDSN    = "MEMEVOTE_STORAGE_DSN"
	EnvLogLevel      = "MEMEVOTE_LOG_LEVEL"
	EnvLogFormat     = "MEMEVOTE_LOG_FORMAT"
	EnvEventsBuffer  = "MEMEVOTE_EVENTS_BUFFER"
	EnvMetricsFile   = "MEMEVOTE_METRICS_FILE"
)

// Config is the complete memevote configuration
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Events  EventsConfig  `yaml:"events"`
}

// StorageConfig selects the kv plugin and the
// partition holding the registry
type StorageConfig struct {
	Plugin    string `yaml:"plugin" validate:"required,oneof=bbolt sqlite postgres memory"`
	Path      string `yaml:"path" validate:"required_if=Plugin bbolt,required_if=Plugin sqlite"`
	DSN       string `yaml:"dsn" validate:"required_if=Plugin postgres"`
	Store     string `yaml:"store" validate:"required"`
	Partition string `yaml:"partition" validate:"required"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"required,oneof=console json"`
}

// EventsConfig selects the event sinks. Buffer > 0
// delivers events asynchronously through a queue of
// that size. MetricsFile receives the counters in the
// Prometheus text format when the app closes.
type EventsConfig struct {
	Log              bool   `yaml:"log"`
	Metrics          bool   `yaml:"metrics"`
	MetricsNamespace string `yaml:"metrics_namespace" validate:"required_if=Metrics true"`
	MetricsFile      string `yaml:"metrics_file" validate:"excluded_unless=Metrics true"`
	Buffer           int    `yaml:"buffer" validate:"gte=0"`
}

// Default returns the configuration used when
// nothing overrides it
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Plugin:    "bbolt",
			Path:      "memevote.db",
			Store:     "memevote",
			Partition: "registry",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Events: EventsConfig{
			MetricsNamespace: "memevote",
		},
	}
}

// LookupEnv has the signature of os.LookupEnv
type LookupEnv func(key string) (string, bool)

// Load builds a configuration from the defaults, the
// YAML file at path if path is not empty, and the
// environment. It does not validate the result.
func Load(path string, lookupEnv LookupEnv) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)

		if err != nil {
			return Config{}, fmt.Errorf("could not read config file: %w", err)
		}

		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("could not parse config file %s: %w", path, err)
		}
	}

	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	if err := applyEnv(&cfg, lookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

func applyEnv(cfg *Config, lookupEnv LookupEnv) error {
	fields := map[string]*string{
		EnvStoragePlugin: &cfg.Storage.Plugin,
		EnvStoragePath:   &cfg.Storage.Path,
		EnvStorageDSN:    &cfg.Storage.DSN,
		EnvLogLevel:      &cfg.Log.Level,
		EnvLogFormat:     &cfg.Log.Format,
		EnvMetricsFile:   &cfg.Events.MetricsFile,
	}

	for key, field := range fields {
		if value, ok := lookupEnv(key); ok && value != "" {
			*field = value
		}
	}

	if value, ok := lookupEnv(EnvEventsBuffer); ok && value != "" {
		buffer, err := strconv.Atoi(value)

		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", EnvEventsBuffer, err)
		}

		cfg.Events.Buffer = buffer
	}

	return nil
}

var validate = validator.New()

// Validate checks that the configuration is usable
func (cfg Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors

		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]

			return fmt.Errorf("invalid configuration: %s failed on %q", first.Namespace(), first.Tag())
		}

		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}
