// Package config loads operad settings with priority env > file > defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/operad/pkg/domain"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OPERAD_"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Config is the full runtime configuration of the CLI and servers.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Engine EngineConfig `yaml:"engine"`
	HTTP   HTTPConfig   `yaml:"http"`
	Events EventConfig  `yaml:"events"`
	// Tools is an optional tools.yaml exposing external commands as clause functions.
	Tools string `yaml:"tools"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// StoreConfig selects where kernels and run states persist.
type StoreConfig struct {
	Backend  string        `yaml:"backend" validate:"oneof=memory file redis badger"`
	Path     string        `yaml:"path" validate:"required_if=Backend file,required_if=Backend badger"`
	Addr     string        `yaml:"addr" validate:"required_if=Backend redis"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db" validate:"min=0"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl" validate:"min=0"`
	// EncryptionKey is a base64 AES-256 key sealing stored run state.
	EncryptionKey string   `yaml:"encryption_key" validate:"omitempty,base64"`
	FallbackKeys  []string `yaml:"fallback_keys" validate:"dive,base64"`
	// Mask lists regular expressions of variable names masked before storage.
	Mask []string `yaml:"mask"`
}

// EngineConfig holds kernel defaults and retry timing.
type EngineConfig struct {
	MaxIterations int           `yaml:"max_iterations" validate:"min=1"`
	EntropyCap    float64       `yaml:"entropy_cap" validate:"gt=0,lte=1"`
	RetryLimit    int           `yaml:"retry_limit" validate:"min=-1"`
	BackoffBase   time.Duration `yaml:"backoff_base" validate:"gt=0"`
	BackoffCap    time.Duration `yaml:"backoff_cap" validate:"gtefield=BackoffBase"`
	Strict        bool          `yaml:"strict"`
}

// HTTPConfig configures `operad serve`.
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// EventConfig bounds reflex event intake.
type EventConfig struct {
	Rate  float64 `yaml:"rate" validate:"gt=0"`
	Burst int     `yaml:"burst" validate:"min=1"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Store: StoreConfig{Backend: BackendMemory, Path: ".operad", Prefix: "operad:"},
		Engine: EngineConfig{
			MaxIterations: domain.DefaultMaxIterations,
			EntropyCap:    domain.DefaultEntropyCap,
			RetryLimit:    domain.DefaultRetryLimit,
			BackoffBase:   time.Second,
			BackoffCap:    5 * time.Second,
		},
		HTTP:   HTTPConfig{Addr: ":8080"},
		Events: EventConfig{Rate: 20, Burst: 5},
	}
}

// Loop returns the loop control applied to kernels compiled without one.
func (c Config) Loop() domain.LoopControl {
	return domain.LoopControl{
		Bounds:     c.Engine.MaxIterations,
		EntropyCap: c.Engine.EntropyCap,
		RetryLimit: c.Engine.RetryLimit,
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s fails %s", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Load starts from Default, merges the YAML file at path (if any, a missing
// file is ignored), applies OPERAD_* environment overrides and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := loadEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func loadEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = i
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
	str("STORE_BACKEND", &cfg.Store.Backend)
	str("STORE_PATH", &cfg.Store.Path)
	str("STORE_ADDR", &cfg.Store.Addr)
	str("STORE_PASSWORD", &cfg.Store.Password)
	num("STORE_DB", &cfg.Store.DB)
	str("STORE_PREFIX", &cfg.Store.Prefix)
	dur("STORE_TTL", &cfg.Store.TTL)
	str("STORE_ENCRYPTION_KEY", &cfg.Store.EncryptionKey)
	num("MAX_ITERATIONS", &cfg.Engine.MaxIterations)
	float("ENTROPY_CAP", &cfg.Engine.EntropyCap)
	num("RETRY_LIMIT", &cfg.Engine.RetryLimit)
	dur("BACKOFF_BASE", &cfg.Engine.BackoffBase)
	dur("BACKOFF_CAP", &cfg.Engine.BackoffCap)
	flag("STRICT", &cfg.Engine.Strict)
	str("HTTP_ADDR", &cfg.HTTP.Addr)
	float("EVENT_RATE", &cfg.Events.Rate)
	num("EVENT_BURST", &cfg.Events.Burst)
	str("TOOLS", &cfg.Tools)

	return errors.Join(errs...)
}
