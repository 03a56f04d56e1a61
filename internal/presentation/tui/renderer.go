// Package tui renders a tour snapshot for terminals.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/wizard/internal/runtime"
	"github.com/aretw0/wizard/pkg/domain"
)

// Catalog resolves component names to their markdown copy.
type Catalog interface {
	Component(name string) (string, bool)
}

// NewRenderer returns a function that renders markdown using glamour.
// Style "" detects the terminal background; "notty" produces plain text.
func NewRenderer(style string) (func(string) (string, error), error) {
	opt := glamour.WithAutoStyle()
	if style != "" {
		opt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(80))
	if err != nil {
		return nil, fmt.Errorf("create renderer: %w", err)
	}
	return r.Render, nil
}

// SlotMarkdown composes the copy of every filled slot, in display order, followed by
// the step preview. Components missing from the catalog show their name.
func SlotMarkdown(snap runtime.Snapshot, catalog Catalog) string {
	var sb strings.Builder
	for _, level := range domain.Slots {
		name, ok := snap.Slots[level]
		if !ok {
			continue
		}
		text, ok := catalog.Component(name)
		if !ok {
			text = fmt.Sprintf("_%s_", name)
		}
		sb.WriteString(strings.TrimSpace(text))
		sb.WriteString("\n\n")
	}

	if snap.CurrentFeature != "" {
		fmt.Fprintf(&sb, "---\n\n**%s** › `%s`", snap.CurrentFeature, snap.FeatureState)
		if !snap.NextStep.IsZero() {
			fmt.Fprintf(&sb, " · next `%s`", snap.NextStep)
		}
		if snap.NextFeature != "" {
			fmt.Fprintf(&sb, " · then %s", snap.NextFeature)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
