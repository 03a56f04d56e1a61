// Package machines holds the bundled machine tables of the tour and the registry
// that looks them up by name.
//
// Tables are YAML files: tutorial.yaml drives the tour itself, every other table is a
// feature machine named by its key, and components.yaml maps component names to the
// copy terminal hosts display.
package machines

import (
	"embed"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
)

// TutorialKey is the key of the top-level table.
const TutorialKey = "tutorial"

const catalogFile = "components.yaml"

//go:embed tables/*.yaml
var embedded embed.FS

// Registry resolves machine tables by name.
// It is immutable once loaded and safe for concurrent use.
type Registry struct {
	tutorial   *machine.Definition
	features   map[string]*machine.Definition
	components map[string]string
}

var loadDefault = sync.OnceValues(func() (*Registry, error) {
	sub, err := fs.Sub(embedded, "tables")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
})

// Default returns the registry of the bundled tables.
func Default() (*Registry, error) {
	return loadDefault()
}

// MustDefault is Default for callers that treat a broken bundle as a programming error.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadFS reads every *.yaml file at the root of fsys.
// The table keyed "tutorial" is required; all other tables become feature machines.
func LoadFS(fsys fs.FS) (*Registry, error) {
	files, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}

	r := &Registry{
		features:   make(map[string]*machine.Definition),
		components: make(map[string]string),
	}
	for _, name := range files {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}

		if name == catalogFile {
			catalog, err := ParseCatalog(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			r.components = catalog
			continue
		}

		def, err := ParseTable(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if stem := strings.TrimSuffix(path.Base(name), ".yaml"); stem != def.Key() {
			return nil, fmt.Errorf("%s: table key %q does not match file name", name, def.Key())
		}

		if def.Key() == TutorialKey {
			r.tutorial = def
			continue
		}
		r.features[def.Key()] = def
	}

	if r.tutorial == nil {
		return nil, fmt.Errorf("no %s table found", TutorialKey)
	}
	return r, nil
}

// Tutorial returns the top-level table.
func (r *Registry) Tutorial() *machine.Definition {
	return r.tutorial
}

// Feature returns the feature machine named name.
func (r *Registry) Feature(name string) (*machine.Definition, error) {
	def, ok := r.features[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownFeature, name)
	}
	return def, nil
}

// Features lists the feature names, sorted.
func (r *Registry) Features() []string {
	names := make([]string, 0, len(r.features))
	for name := range r.features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns any table, tutorial included, by key.
func (r *Registry) Table(key string) (*machine.Definition, bool) {
	if key == TutorialKey {
		return r.tutorial, true
	}
	def, ok := r.features[key]
	return def, ok
}

// Component returns the catalog copy for a component name.
func (r *Registry) Component(name string) (string, bool) {
	text, ok := r.components[name]
	return text, ok
}

// WithComponents returns a copy of the registry whose catalog is extended by
// components, which win over existing entries. The receiver is not modified.
func (r *Registry) WithComponents(components map[string]string) *Registry {
	out := &Registry{
		tutorial:   r.tutorial,
		features:   r.features,
		components: make(map[string]string, len(r.components)+len(components)),
	}
	maps.Copy(out.components, r.components)
	maps.Copy(out.components, components)
	return out
}
