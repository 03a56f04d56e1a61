// Package persistence maps the tour's in-memory fields onto a ports.Storage.
//
// Every value is written inside a small versioned envelope so a future change of
// shape can be detected instead of silently misread. Reads are lenient: absent,
// undecodable or too-new values fall back to the caller's default.
package persistence

import "github.com/aretw0/wizard/pkg/domain"

// Keys holds the eight storage keys of one tour.
type Keys struct {
	TutorialState       string
	ComponentState      string
	FeatureState        string
	FeatureList         string
	FeatureStateHistory string
	CompletedFeatures   string
	ResumeURL           string
	ResumeRoute         string
}

// NewKeys derives the key names from an application prefix.
// An empty prefix means domain.DefaultKeyPrefix.
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = domain.DefaultKeyPrefix
	}
	return Keys{
		TutorialState:       prefix + "tutorial-state",
		ComponentState:      prefix + "component-state",
		FeatureState:        prefix + "feature-state",
		FeatureList:         prefix + "feature-list",
		FeatureStateHistory: prefix + "feature-state-history",
		CompletedFeatures:   prefix + "completed-features",
		ResumeURL:           prefix + "resume-url",
		ResumeRoute:         prefix + "resume-route",
	}
}

// All returns every key, tutorial-scoped first.
func (k Keys) All() []string {
	return []string{
		k.TutorialState,
		k.ComponentState,
		k.ResumeURL,
		k.ResumeRoute,
		k.FeatureState,
		k.FeatureList,
		k.FeatureStateHistory,
		k.CompletedFeatures,
	}
}

// Feature returns the keys cleared by clearFeatureData.
func (k Keys) Feature() []string {
	return []string{k.FeatureList, k.FeatureState, k.FeatureStateHistory, k.CompletedFeatures}
}
