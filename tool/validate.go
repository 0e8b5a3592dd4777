package tool

import (
	"encoding/json"
	"fmt"

	"github.com/petal-labs/petalapp/schema"
)

// Validate checks an untyped boundary input against a tool's declared schema.
// The check is pure and deterministic:
//
//   - when the schema declares an action vocabulary, the input's "action"
//     field must be present, a string, and a member of the vocabulary;
//   - every required field must be present with a value of its declared type;
//   - an optional field, if present, must still type-check — a
//     present-but-wrong-typed optional is a failure, not silently ignored;
//   - fields the schema does not declare are tolerated (permissive on extras,
//     strict on declared).
//
// Failures carry UNKNOWN_ACTION, MISSING_FIELD, or TYPE_MISMATCH codes.
func Validate(s schema.Schema, input map[string]any) error {
	if s.Discriminated() {
		raw, ok := input[schema.ActionField]
		if !ok {
			return NewError(ErrorCodeUnknownAction, "missing %q field", schema.ActionField)
		}
		action, ok := raw.(string)
		if !ok {
			return &Error{
				Code:    ErrorCodeUnknownAction,
				Message: "action must be a string",
				Details: map[string]any{"actual": kindOf(raw)},
			}
		}
		if !s.AllowsAction(action) {
			return &Error{
				Code:    ErrorCodeUnknownAction,
				Message: fmt.Sprintf("unknown action %q", action),
				Details: map[string]any{"action": action, "allowed": s.Actions()},
			}
		}
	}

	for _, f := range s.Fields() {
		value, present := input[f.Name]
		if !present {
			if f.Required {
				return &Error{
					Code:    ErrorCodeMissingField,
					Message: fmt.Sprintf("missing required field %q", f.Name),
					Details: map[string]any{"field": f.Name},
				}
			}
			continue
		}
		if !matchesKind(f.Kind, value) {
			return &Error{
				Code:    ErrorCodeTypeMismatch,
				Message: fmt.Sprintf("field %q expects %s, got %s", f.Name, f.Kind, kindOf(value)),
				Details: map[string]any{
					"field":    f.Name,
					"expected": string(f.Kind),
					"actual":   kindOf(value),
				},
			}
		}
		if len(f.Enum) > 0 {
			if !enumMember(f.Enum, value) {
				return &Error{
					Code:    ErrorCodeTypeMismatch,
					Message: fmt.Sprintf("field %q is outside its enum", f.Name),
					Details: map[string]any{"field": f.Name, "allowed": f.Enum},
				}
			}
		}
	}

	return nil
}

// matchesKind bridges JSON-decoded Go values to schema kinds. Numeric inputs
// may arrive as float64 (encoding/json default), integer types from in-process
// callers, or json.Number from decoders configured with UseNumber.
func matchesKind(kind schema.Kind, value any) bool {
	switch kind {
	case schema.KindNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64, json.Number:
			return true
		}
		return false
	case schema.KindString:
		_, ok := value.(string)
		return ok
	case schema.KindBoolean:
		_, ok := value.(bool)
		return ok
	case schema.KindObject:
		_, ok := value.(map[string]any)
		return ok
	case schema.KindArray:
		_, ok := value.([]any)
		return ok
	}
	return false
}

// kindOf names the schema kind of a boundary value for error messages.
func kindOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return string(schema.KindBoolean)
	case float64, float32, int, int32, int64, json.Number:
		return string(schema.KindNumber)
	case string:
		return string(schema.KindString)
	case []any:
		return string(schema.KindArray)
	case map[string]any:
		return string(schema.KindObject)
	}
	return "unknown"
}

func enumMember(allowed []string, value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}
