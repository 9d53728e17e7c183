// Package file stores kernels and run states as JSON documents on the local filesystem.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/operad/internal/composer"
	"github.com/aretw0/operad/pkg/domain"
)

const ext = ".json"

// Store implements ports.StateStore and ports.KernelStore using the local
// filesystem. Runs live under BasePath/runs, kernels under BasePath/kernels.
type Store struct {
	BasePath string
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".operad".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = ".operad"
	}
	return &Store{BasePath: basePath}
}

func (s *Store) runsDir() string    { return filepath.Join(s.BasePath, "runs") }
func (s *Store) kernelsDir() string { return filepath.Join(s.BasePath, "kernels") }

// Save persists the run state atomically.
func (s *Store) Save(ctx context.Context, runID string, state *domain.ExecutionState) error {
	if err := checkID(runID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return writeAtomic(s.runsDir(), runID, data)
}

// Load retrieves the run state.
func (s *Store) Load(ctx context.Context, runID string) (*domain.ExecutionState, error) {
	if err := checkID(runID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.runsDir(), runID+ext))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	var state domain.ExecutionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return &state, nil
}

// Delete removes the run file.
func (s *Store) Delete(ctx context.Context, runID string) error {
	if err := checkID(runID); err != nil {
		return err
	}
	return remove(filepath.Join(s.runsDir(), runID+ext))
}

// List returns all stored run IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return list(s.runsDir())
}

// PutKernel writes ko as a kernel document.
func (s *Store) PutKernel(ctx context.Context, ko *domain.KernelObject) error {
	if err := checkID(ko.ID); err != nil {
		return err
	}
	data, err := composer.Encode(ko)
	if err != nil {
		return fmt.Errorf("failed to encode kernel: %w", err)
	}
	return writeAtomic(s.kernelsDir(), ko.ID, data)
}

// GetKernel reads and verifies a kernel document.
func (s *Store) GetKernel(ctx context.Context, id string) (*domain.KernelObject, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.kernelsDir(), id+ext))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrKernelNotFound
		}
		return nil, fmt.Errorf("failed to read kernel file: %w", err)
	}
	return composer.Decode(data)
}

// DeleteKernel removes a kernel document.
func (s *Store) DeleteKernel(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	return remove(filepath.Join(s.kernelsDir(), id+ext))
}

// ListKernels returns all stored kernel IDs.
func (s *Store) ListKernels(ctx context.Context) ([]string, error) {
	return list(s.kernelsDir())
}

// checkID rejects ids that would escape the store directory.
func checkID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}

// writeAtomic writes to a temporary file, syncs it and renames it over the destination.
func writeAtomic(dir, id string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure directory: %w", err)
	}
	destPath := filepath.Join(dir, id+ext)

	// Same directory, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-"+id+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows refuses to rename over an existing file.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", filepath.Base(path), err)
	}
	return nil
}

func list(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ext))
	}
	sort.Strings(ids)
	return ids, nil
}
