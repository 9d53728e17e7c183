// Package badger stores kernels and run states in an embedded BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/operad/internal/composer"
	"github.com/aretw0/operad/pkg/domain"
	"github.com/dgraph-io/badger/v4"
)

const (
	runPrefix    = "run/"
	kernelPrefix = "kernel/"
)

// Config selects where the database lives.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every write.
	SyncWrites bool

	// Logger receives Badger's internal logs. Nil silences them.
	Logger *slog.Logger
}

// Store implements ports.StateStore and ports.KernelStore on BadgerDB.
type Store struct {
	db *badger.DB
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Open opens (or creates) a database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a throwaway in-memory database.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists the run state.
func (s *Store) Save(ctx context.Context, runID string, state *domain.ExecutionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return s.put(runPrefix+runID, data)
}

// Load retrieves the run state.
func (s *Store) Load(ctx context.Context, runID string) (*domain.ExecutionState, error) {
	data, err := s.get(runPrefix + runID)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	var state domain.ExecutionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// Delete removes the run state.
func (s *Store) Delete(ctx context.Context, runID string) error {
	return s.delete(runPrefix + runID)
}

// List returns stored run ids in key order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.keys(runPrefix)
}

// PutKernel stores the kernel document.
func (s *Store) PutKernel(ctx context.Context, ko *domain.KernelObject) error {
	data, err := composer.Encode(ko)
	if err != nil {
		return fmt.Errorf("failed to encode kernel: %w", err)
	}
	return s.put(kernelPrefix+ko.ID, data)
}

// GetKernel loads and verifies a kernel document.
func (s *Store) GetKernel(ctx context.Context, id string) (*domain.KernelObject, error) {
	data, err := s.get(kernelPrefix + id)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrKernelNotFound
	}
	if err != nil {
		return nil, err
	}
	return composer.Decode(data)
}

// DeleteKernel removes a kernel.
func (s *Store) DeleteKernel(ctx context.Context, id string) error {
	return s.delete(kernelPrefix + id)
}

// ListKernels returns stored kernel ids in key order.
func (s *Store) ListKernels(ctx context.Context) ([]string, error) {
	return s.keys(kernelPrefix)
}

func (s *Store) put(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger put %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("badger get %s: %w", key, err)
	}
	return out, err
}

func (s *Store) delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) keys(prefix string) ([]string, error) {
	ids := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), prefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list %s: %w", prefix, err)
	}
	return ids, nil
}
