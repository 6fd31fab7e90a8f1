package core

import (
	"fmt"
	"sort"

	"ogencore/pkg/domain"
)

// Extension describes a module that contributes validation rules and schema
// fragments for the stimulus event table, in the manner of an NWB extension.
type Extension interface {
	Name() string
	Version() string
	Register(registry *ExtensionRegistry) error
}

// ExtensionRegistry accumulates extension contributions during registration.
type ExtensionRegistry struct {
	rules   []Rule
	schemas map[string]map[string]any
}

// NewExtensionRegistry constructs an empty registry.
func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{schemas: make(map[string]map[string]any)}
}

// RegisterRule adds an in-transaction rule contributed by the extension.
func (r *ExtensionRegistry) RegisterRule(rule Rule) {
	if rule == nil {
		return
	}
	r.rules = append(r.rules, rule)
}

// RegisterSchema stores a JSON Schema fragment for an entity type.
func (r *ExtensionRegistry) RegisterSchema(entity string, schema map[string]any) {
	if entity == "" || schema == nil {
		return
	}
	cp := make(map[string]any, len(schema))
	for k, v := range schema {
		cp[k] = v
	}
	r.schemas[entity] = cp
}

// Rules returns a copy of registered rules.
func (r *ExtensionRegistry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Schemas returns a copy of registered schema fragments keyed by entity type.
func (r *ExtensionRegistry) Schemas() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.schemas))
	for entity, schema := range r.schemas {
		cp := make(map[string]any, len(schema))
		for k, v := range schema {
			cp[k] = v
		}
		out[entity] = cp
	}
	return out
}

// ExtensionMetadata describes an installed extension.
type ExtensionMetadata struct {
	Name    string
	Version string
	Schemas map[string]map[string]any
}

// NewPatternedOgenExtension returns the built-in extension describing the
// patterned optogenetics column layout. It contributes the schema fragments
// for each parameter family so downstream tooling can introspect which
// scalar and per-ROI columns the table accepts.
func NewPatternedOgenExtension() Extension {
	return patternedOgenExtension{}
}

type patternedOgenExtension struct{}

func (patternedOgenExtension) Name() string    { return "ndx-patterned-ogen" }
func (patternedOgenExtension) Version() string { return "0.2.0" }

func (patternedOgenExtension) Register(registry *ExtensionRegistry) error {
	if registry == nil {
		return fmt.Errorf("nil registry")
	}
	columns := map[string]any{
		"start_time": map[string]any{"type": "number", "unit": "seconds"},
		"stop_time":  map[string]any{"type": "number", "unit": "seconds"},
		"targets":    map[string]any{"type": "reference", "target": string(domain.EntityTargetSet)},
		"stimulus_pattern": map[string]any{
			"type":   "reference",
			"target": string(domain.EntityStimulusPattern),
		},
		"stimulus_site": map[string]any{
			"type":   "reference",
			"target": string(domain.EntityStimulusSite),
		},
	}
	for _, family := range domain.Families {
		columns[family.Name] = map[string]any{
			"type":     "number",
			"required": family.Required,
		}
		columns[family.PerROIsColumn()] = map[string]any{
			"type":      "array",
			"items":     "number",
			"exclusive": family.Exclusive,
		}
	}
	registry.RegisterSchema(string(domain.EntityStimulationInterval), map[string]any{
		"columns": columns,
	})
	return nil
}

// sortedExtensionNames returns installed extension names in stable order.
func sortedExtensionNames(installed map[string]ExtensionMetadata) []string {
	names := make([]string, 0, len(installed))
	for name := range installed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
