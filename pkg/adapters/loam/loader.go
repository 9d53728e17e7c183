// Package loam loads clause libraries (markdown files with frontmatter) through Loam.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/operad/pkg/domain"
)

// Loader adapts a Loam repository to ports.ClauseSource.
type Loader struct {
	Repo *loam.TypedRepository[ClauseMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[ClauseMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only, strict Loam repository at path.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[ClauseMetadata](repo)), nil
}

// GetClause retrieves a clause document. Loam resolves "id" to "id.md".
func (l *Loader) GetClause(ctx context.Context, id string) (domain.ClauseInput, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		return domain.ClauseInput{}, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return toInput(doc.ID, doc.Data, doc.Content)
}

func toInput(docID string, meta ClauseMetadata, content string) (domain.ClauseInput, error) {
	rawID := meta.ID
	if rawID == "" {
		rawID = docID
	}
	id := trimExtension(rawID)

	text := strings.TrimSpace(meta.Clause)
	if text == "" {
		if meta.When == "" || meta.Then == "" {
			return domain.ClauseInput{}, fmt.Errorf("clause %s: frontmatter needs clause or when/then", id)
		}
		text = "WHEN " + strings.TrimSpace(meta.When) + " THEN " + strings.TrimSpace(meta.Then)
	}

	desc := meta.Description
	if desc == "" {
		desc = strings.TrimSpace(content)
	}
	return domain.ClauseInput{
		ID:          id,
		Text:        text,
		DependsOn:   normalizeIDs(meta.DependsOn),
		Inputs:      meta.Inputs,
		Outputs:     meta.Outputs,
		Description: desc,
	}, nil
}

// ListClauses lists all clause ids in the repository, sorted.
func (l *Loader) ListClauses(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existingPath, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existingPath, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadAll returns every clause of the library in id order.
func (l *Loader) LoadAll(ctx context.Context) ([]domain.ClauseInput, error) {
	ids, err := l.ListClauses(ctx)
	if err != nil {
		return nil, err
	}
	inputs := make([]domain.ClauseInput, 0, len(ids))
	for _, id := range ids {
		in, err := l.GetClause(ctx, id)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

func normalizeIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = trimExtension(id)
	}
	return out
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable. The channel is signaled once per change
// burst and closed when ctx is done.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()
	return ch, nil
}
