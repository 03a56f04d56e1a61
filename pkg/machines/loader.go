package machines

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// tableDoc is the YAML shape of one machine table.
type tableDoc struct {
	Key     string                    `mapstructure:"key"`
	Initial string                    `mapstructure:"initial"`
	On      map[string]transitionList `mapstructure:"on"`
	States  map[string]stateDoc       `mapstructure:"states"`
}

type stateDoc struct {
	Initial string                    `mapstructure:"initial"`
	OnEntry []domain.Action           `mapstructure:"onEntry"`
	OnExit  []domain.Action           `mapstructure:"onExit"`
	On      map[string]transitionList `mapstructure:"on"`
	States  map[string]stateDoc       `mapstructure:"states"`
}

// transitionList accepts a single target, a single transition or a list of candidates.
type transitionList []transitionDoc

type transitionDoc struct {
	Target  string          `mapstructure:"target"`
	Actions []domain.Action `mapstructure:"actions"`
	When    []string        `mapstructure:"when"`
}

type catalogDoc struct {
	Components map[string]string `yaml:"components"`
}

var (
	actionType         = reflect.TypeOf(domain.Action{})
	transitionListType = reflect.TypeOf(transitionList{})
	transitionDocType  = reflect.TypeOf(transitionDoc{})
)

// shorthandHook expands the compact YAML forms:
//
//	onEntry: [completeFeature]        -> {type: completeFeature}
//	CONTINUE: enable                  -> [{target: enable}]
//	CONTINUE: {target: x, actions: …} -> [{target: x, actions: …}]
func shorthandHook(from, to reflect.Type, data any) (any, error) {
	switch to {
	case actionType:
		if from.Kind() == reflect.String {
			return map[string]any{"type": data}, nil
		}
	case transitionListType:
		switch data.(type) {
		case string, map[string]any:
			return []any{data}, nil
		}
	case transitionDocType:
		if from.Kind() == reflect.String {
			return map[string]any{"target": data}, nil
		}
	}
	return data, nil
}

// ParseTable decodes and validates one YAML machine table.
func ParseTable(data []byte) (*machine.Definition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	var doc tableDoc
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       shorthandHook,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &doc,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode table: %w", err)
	}

	b := machine.NewDef(doc.Key).Initial(doc.Initial)
	for _, event := range sortedKeys(doc.On) {
		for _, t := range doc.On[event] {
			b.On(domain.EventName(event), t.Target, transitionOptions(t)...)
		}
	}
	addStates(b, "", doc.States)
	return b.Build()
}

func addStates(b *machine.Builder, parent string, states map[string]stateDoc) {
	for _, name := range sortedKeys(states) {
		st := states[name]
		path := name
		if parent != "" {
			path = parent + domain.PathSeparator + name
		}

		opts := []machine.StateOption{
			machine.WithEntry(st.OnEntry...),
			machine.WithExit(st.OnExit...),
		}
		if st.Initial != "" {
			opts = append(opts, machine.WithInitial(st.Initial))
		}
		for _, event := range sortedKeys(st.On) {
			for _, t := range st.On[event] {
				opts = append(opts, machine.WithTransition(domain.EventName(event), t.Target, transitionOptions(t)...))
			}
		}
		b.State(path, opts...)
		addStates(b, path, st.States)
	}
}

func transitionOptions(t transitionDoc) []machine.TransitionOption {
	var opts []machine.TransitionOption
	if len(t.Actions) > 0 {
		opts = append(opts, machine.Actions(t.Actions...))
	}
	if len(t.When) > 0 {
		opts = append(opts, machine.When(t.When...))
	}
	return opts
}

// ParseCatalog decodes a component catalog file.
func ParseCatalog(data []byte) (map[string]string, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return doc.Components, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
