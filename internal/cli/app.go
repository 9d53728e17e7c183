// Package cli wires configuration into an engine, its stores and servers
// for the operad command.
package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/internal/config"
	"github.com/aretw0/operad/pkg/adapters/badger"
	"github.com/aretw0/operad/pkg/adapters/file"
	"github.com/aretw0/operad/pkg/adapters/memory"
	"github.com/aretw0/operad/pkg/adapters/process"
	"github.com/aretw0/operad/pkg/adapters/redis"
	"github.com/aretw0/operad/pkg/observability"
	"github.com/aretw0/operad/pkg/persistence/middleware"
	"github.com/aretw0/operad/pkg/ports"
	"github.com/aretw0/operad/pkg/session"
	"github.com/google/uuid"
)

// App is a configured engine with its persistence.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Engine  *operad.Engine
	Manager *session.Manager
	Metrics *observability.Metrics
	Tools   *process.Runner

	closers []func() error
}

// Stores bundles the ports one backend provides.
type Stores struct {
	States  ports.StateStore
	Kernels ports.KernelStore
	Locker  ports.DistributedLocker
	Close   func() error
}

// Setup builds an App from cfg.
func Setup(cfg config.Config, logger *slog.Logger) (*App, error) {
	tools := map[string]process.ProcessConfig{}
	if cfg.Tools != "" {
		var err error
		if tools, err = process.LoadTools(cfg.Tools); err != nil {
			return nil, fmt.Errorf("load tools: %w", err)
		}
	}
	runner := process.NewRunner(process.WithTools(tools))

	metrics := observability.NewMetrics()
	loop := cfg.Loop()
	eng := operad.New(
		operad.WithLogger(logger),
		operad.WithStrictActions(cfg.Engine.Strict),
		operad.WithBackoff(cfg.Engine.BackoffBase, cfg.Engine.BackoffCap),
		operad.WithDefaultLoop(loop),
		operad.WithRunIDGenerator(uuid.NewString),
		operad.WithLifecycleHooks(observability.Combine(metrics.Hooks(), observability.LogHooks(logger))),
	)
	runner.Bind(eng.Registry())

	stores, err := OpenStores(cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	var mopts []session.Option
	mopts = append(mopts, session.WithLogger(logger))
	if stores.Locker != nil {
		mopts = append(mopts, session.WithLocker(stores.Locker))
	}

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Engine:  eng,
		Manager: session.NewManager(stores.States, stores.Kernels, eng, mopts...),
		Metrics: metrics,
		Tools:   runner,
	}
	if stores.Close != nil {
		app.closers = append(app.closers, stores.Close)
	}
	logger.Debug("app ready", "store", cfg.Store.Backend, "tools", len(tools), "strict", cfg.Engine.Strict)
	return app, nil
}

// Close releases the stores.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenStores opens the configured backend and wraps its state store with
// masking and encryption when configured. Only redis provides a
// distributed locker.
func OpenStores(cfg config.StoreConfig, logger *slog.Logger) (Stores, error) {
	stores, err := openBackend(cfg, logger)
	if err != nil {
		return stores, err
	}
	mws, err := stateMiddleware(cfg)
	if err != nil {
		if stores.Close != nil {
			_ = stores.Close()
		}
		return Stores{}, err
	}
	stores.States = middleware.Chain(stores.States, mws...)
	return stores, nil
}

func stateMiddleware(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Mask) > 0 {
		mw, err := middleware.NewPIIMiddleware(cfg.Mask)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.EncryptionKey != "" {
		active, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("encryption key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for i, k := range cfg.FallbackKeys {
			key, err := base64.StdEncoding.DecodeString(k)
			if err != nil {
				return nil, fmt.Errorf("fallback key %d: %w", i, err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

func openBackend(cfg config.StoreConfig, logger *slog.Logger) (Stores, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		s := memory.NewStore()
		return Stores{States: s, Kernels: s}, nil
	case config.BackendFile:
		s := file.New(cfg.Path)
		return Stores{States: s, Kernels: s}, nil
	case config.BackendBadger:
		s, err := badger.Open(badger.Config{Path: cfg.Path, Logger: logger})
		if err != nil {
			return Stores{}, err
		}
		return Stores{States: s, Kernels: s, Close: s.Close}, nil
	case config.BackendRedis:
		opts := []redis.Option{redis.WithPrefix(cfg.Prefix)}
		if cfg.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.TTL))
		}
		s := redis.New(cfg.Addr, cfg.Password, cfg.DB, opts...)
		return Stores{
			States:  s,
			Kernels: s,
			Locker:  redis.NewLocker(s.Client(), cfg.Prefix),
			Close:   s.Close,
		}, nil
	default:
		return Stores{}, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
