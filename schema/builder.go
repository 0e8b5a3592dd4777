package schema

import (
	"errors"
	"fmt"
)

// ErrNoActions is returned by Build when the action vocabulary is empty.
var ErrNoActions = errors.New("schema: at least one action is required")

// Builder accumulates field declarations for an action-discriminated schema.
// Declaration order is preserved for documentation output.
type Builder struct {
	actions []string
	fields  []FieldSpec
}

// NewBuilder starts a builder from the allowed action vocabulary.
func NewBuilder(actions ...string) *Builder {
	return &Builder{actions: append([]string(nil), actions...)}
}

// Number declares a number field.
func (b *Builder) Number(name, description string, required bool) *Builder {
	return b.Field(FieldSpec{Name: name, Description: description, Kind: KindNumber, Required: required})
}

// String declares a string field.
func (b *Builder) String(name, description string, required bool) *Builder {
	return b.Field(FieldSpec{Name: name, Description: description, Kind: KindString, Required: required})
}

// Boolean declares a boolean field.
func (b *Builder) Boolean(name, description string, required bool) *Builder {
	return b.Field(FieldSpec{Name: name, Description: description, Kind: KindBoolean, Required: required})
}

// Enum declares a string field restricted to a fixed set of values.
func (b *Builder) Enum(name, description string, required bool, values ...string) *Builder {
	return b.Field(FieldSpec{
		Name:        name,
		Description: description,
		Kind:        KindString,
		Required:    required,
		Enum:        append([]string(nil), values...),
	})
}

// Field declares an arbitrary field spec. Prefer the typed helpers.
func (b *Builder) Field(spec FieldSpec) *Builder {
	b.fields = append(b.fields, spec)
	return b
}

// Build produces the immutable Schema. Configuration mistakes — an empty
// action vocabulary, an empty or duplicate field name, or a field shadowing
// the action discriminator — are reported here rather than at first use.
func (b *Builder) Build() (Schema, error) {
	if len(b.actions) == 0 {
		return Schema{}, ErrNoActions
	}
	for i, a := range b.actions {
		if a == "" {
			return Schema{}, errors.New("schema: empty action name")
		}
		for _, prev := range b.actions[:i] {
			if prev == a {
				return Schema{}, fmt.Errorf("schema: duplicate action %q", a)
			}
		}
	}

	seen := make(map[string]struct{}, len(b.fields))
	for _, f := range b.fields {
		if f.Name == "" {
			return Schema{}, errors.New("schema: empty field name")
		}
		if f.Name == ActionField {
			return Schema{}, fmt.Errorf("schema: field name %q is reserved", ActionField)
		}
		if _, dup := seen[f.Name]; dup {
			return Schema{}, fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Kind {
		case KindNumber, KindString, KindBoolean, KindObject, KindArray:
		default:
			return Schema{}, fmt.Errorf("schema: field %q has unsupported kind %q", f.Name, f.Kind)
		}
	}

	return Schema{
		actions: append([]string(nil), b.actions...),
		fields:  append([]FieldSpec(nil), b.fields...),
	}, nil
}

// MustBuild is Build for statically known schemas; it panics on
// configuration errors.
func (b *Builder) MustBuild() Schema {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
