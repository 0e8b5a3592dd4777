// Package schema describes the input contract of a tool: the vocabulary of
// actions it accepts and the named, typed fields each invocation may carry.
// A Schema serves two masters — the platform reads it as a JSON-Schema-like
// document when presenting tools, and the runtime validates every invocation
// against it before handler code runs.
package schema

import (
	"encoding/json"
	"sort"
	"strings"
)

// Kind enumerates the value types a field may declare.
type Kind string

const (
	KindNumber  Kind = "number"
	KindString  Kind = "string"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// ActionField is the reserved discriminator field present on every
// action-discriminated input.
const ActionField = "action"

// FieldSpec declares a single named input field.
type FieldSpec struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        Kind   `json:"kind"`
	Required    bool   `json:"required,omitempty"`
	// Enum restricts a string field to a fixed set of values.
	Enum []string `json:"enum,omitempty"`
}

// Schema is the immutable input contract built by a Builder.
// The zero value is an empty schema with no action vocabulary.
type Schema struct {
	actions []string
	fields  []FieldSpec
}

// Actions returns the allowed discriminator values in declaration order.
func (s Schema) Actions() []string {
	out := make([]string, len(s.actions))
	copy(out, s.actions)
	return out
}

// Fields returns the declared fields in declaration order.
func (s Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the spec for a declared field by name.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Discriminated reports whether the schema carries an action vocabulary.
func (s Schema) Discriminated() bool {
	return len(s.actions) > 0
}

// AllowsAction reports whether value is a member of the action vocabulary.
func (s Schema) AllowsAction(value string) bool {
	for _, a := range s.actions {
		if a == value {
			return true
		}
	}
	return false
}

// Document renders the schema as a JSON-Schema-like document: an object with
// properties keyed by field name, each carrying type and description, plus a
// required list and an enum for the action discriminator.
func (s Schema) Document() map[string]any {
	props := make(map[string]any, len(s.fields)+1)
	required := make([]string, 0, len(s.fields)+1)

	if s.Discriminated() {
		props[ActionField] = map[string]any{
			"type":        "string",
			"enum":        s.Actions(),
			"description": "Action to perform: " + strings.Join(s.actions, ", "),
		}
		required = append(required, ActionField)
	}

	for _, f := range s.fields {
		prop := map[string]any{
			"type":        string(f.Kind),
			"description": f.Description,
		}
		if len(f.Enum) > 0 {
			prop["enum"] = append([]string(nil), f.Enum...)
		}
		props[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// MarshalJSON serializes the schema as its Document form.
func (s Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Document())
}

// UnmarshalJSON reconstructs a schema from its Document form, as received by
// clients introspecting a running app. Field declaration order is not carried
// by a JSON object; reconstructed fields are sorted by name.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var doc struct {
		Properties map[string]struct {
			Type        string   `json:"type"`
			Description string   `json:"description"`
			Enum        []string `json:"enum"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	required := make(map[string]bool, len(doc.Required))
	for _, name := range doc.Required {
		required[name] = true
	}

	out := Schema{}
	names := make([]string, 0, len(doc.Properties))
	for name := range doc.Properties {
		if name == ActionField {
			out.actions = append([]string(nil), doc.Properties[name].Enum...)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop := doc.Properties[name]
		f := FieldSpec{
			Name:        name,
			Description: prop.Description,
			Kind:        Kind(prop.Type),
			Required:    required[name],
		}
		if len(prop.Enum) > 0 {
			f.Enum = append([]string(nil), prop.Enum...)
		}
		out.fields = append(out.fields, f)
	}

	*s = out
	return nil
}
