package middleware

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/aretw0/wizard/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type piiMiddleware struct {
	next     ports.Storage
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks, before writing, the values of JSON
// object fields whose name matches one of the patterns. Component state often carries
// form input (tokens, passwords) that should not outlive the page. Values that are not
// JSON objects or arrays are written untouched.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.Storage) ports.Storage {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Set(ctx context.Context, key, value string) error {
	var doc any
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return m.next.Set(ctx, key, value)
	}
	if !m.mask(doc) {
		return m.next.Set(ctx, key, value)
	}
	masked, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return m.next.Set(ctx, key, string(masked))
}

func (m *piiMiddleware) Get(ctx context.Context, key string) (string, error) {
	return m.next.Get(ctx, key)
}

func (m *piiMiddleware) Remove(ctx context.Context, key string) error {
	return m.next.Remove(ctx, key)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// mask redacts in place and reports whether anything changed.
// The decoded document is private to Set, so no copy is needed.
func (m *piiMiddleware) mask(v any) bool {
	changed := false
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if m.sensitive(k) {
				t[k] = Mask
				changed = true
				continue
			}
			if m.mask(child) {
				changed = true
			}
		}
	case []any:
		for _, child := range t {
			if m.mask(child) {
				changed = true
			}
		}
	}
	return changed
}

func (m *piiMiddleware) sensitive(k string) bool {
	for _, p := range m.patterns {
		if p.MatchString(k) {
			return true
		}
	}
	return false
}
