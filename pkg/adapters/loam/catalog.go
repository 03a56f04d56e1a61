// Package loam reads the component catalog from a directory of Markdown documents.
//
// Each document is the copy of one component: the body is the Markdown shown in the
// tour panel and the frontmatter may rename the component or give it a title.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
)

// Catalog adapts a Loam repository to a component-name to copy mapping.
type Catalog struct {
	Repo *loam.TypedRepository[ComponentMetadata]
}

// New creates a new Loam catalog over an initialised repository.
func New(repo *loam.TypedRepository[ComponentMetadata]) *Catalog {
	return &Catalog{
		Repo: repo,
	}
}

// Open initialises a read-only Loam repository at dir.
func Open(dir string) (*Catalog, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	// ReadOnly keeps Loam out of its dev-mode sandbox; the catalog is never written.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[ComponentMetadata](repo)), nil
}

// Load reads every document into a catalog. Two documents naming the same component
// are an error.
func (c *Catalog) Load(ctx context.Context) (map[string]string, error) {
	docs, err := c.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	catalog := make(map[string]string, len(docs))
	seen := make(map[string]string, len(docs))
	for _, doc := range docs {
		name := doc.Data.Component
		if name == "" {
			name = trimExtension(doc.ID)
		}

		// Collision Detection
		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: component '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		seen[name] = doc.ID

		text := strings.TrimSpace(doc.Content)
		if doc.Data.Title != "" {
			text = "### " + doc.Data.Title + "\n\n" + text
		}
		catalog[name] = text
	}
	return catalog, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
