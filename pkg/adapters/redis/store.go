// Package redis stores kernels and run states in Redis and provides a
// distributed run lock.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/operad/internal/composer"
	"github.com/aretw0/operad/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "operad:"

// far future index score for entries without a TTL (2100-01-01).
const noExpiry = 4102444800

// Store implements ports.StateStore and ports.KernelStore using Redis.
// Run ids are indexed in a sorted set scored by expiry, so List can prune
// entries whose keys Redis already expired.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Store)

// WithTTL sets the expiration for run states. Kernels never expire.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithClock sets the time source used for index scores.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client exposes the underlying client, e.g. to build a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) runKey(runID string) string { return s.prefix + "run:" + runID }
func (s *Store) runIndex() string { return s.prefix + "runs" }
func (s *Store) kernelKey(id string) string { return s.prefix + "kernel:" + id }
func (s *Store) kernelIndex() string { return s.prefix + "kernels" }

// Save persists the state to Redis.
func (s *Store) Save(ctx context.Context, runID string, state *domain.ExecutionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	score := float64(noExpiry)
	if s.ttl > 0 {
		score = float64(s.now().Add(s.ttl).Unix())
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(runID), data, s.ttl)
	pipe.ZAdd(ctx, s.runIndex(), backend.Z{Score: score, Member: runID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the state from Redis.
func (s *Store) Load(ctx context.Context, runID string) (*domain.ExecutionState, error) {
	val, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var state domain.ExecutionState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// Delete removes the run.
func (s *Store) Delete(ctx context.Context, runID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.runKey(runID))
	pipe.ZRem(ctx, s.runIndex(), runID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns live runs, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := fmt.Sprintf("%d", s.now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.runIndex(), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired runs: %w", err)
	}
	runs, err := s.client.ZRange(ctx, s.runIndex(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// PutKernel stores the kernel document.
func (s *Store) PutKernel(ctx context.Context, ko *domain.KernelObject) error {
	data, err := composer.Encode(ko)
	if err != nil {
		return fmt.Errorf("failed to encode kernel: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.kernelKey(ko.ID), data, 0)
	pipe.SAdd(ctx, s.kernelIndex(), ko.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save kernel to redis: %w", err)
	}
	return nil
}

// GetKernel loads and verifies a kernel document.
func (s *Store) GetKernel(ctx context.Context, id string) (*domain.KernelObject, error) {
	val, err := s.client.Get(ctx, s.kernelKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrKernelNotFound
		}
		return nil, fmt.Errorf("failed to get kernel from redis: %w", err)
	}
	return composer.Decode(val)
}

// DeleteKernel removes a kernel.
func (s *Store) DeleteKernel(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.kernelKey(id))
	pipe.SRem(ctx, s.kernelIndex(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// ListKernels returns stored kernel ids, sorted.
func (s *Store) ListKernels(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.kernelIndex()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list kernels: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
