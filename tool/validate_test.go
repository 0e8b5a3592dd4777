package tool

import (
	"encoding/json"
	"testing"

	"github.com/petal-labs/petalapp/schema"
)

func calcSchema(t *testing.T) schema.Schema {
	t.Helper()
	s, err := schema.NewBuilder("add", "subtract").
		Number("a", "First operand", true).
		Number("b", "Second operand", true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func TestValidate(t *testing.T) {
	s := calcSchema(t)

	tests := []struct {
		name     string
		input    map[string]any
		wantCode string
	}{
		{
			name:  "valid input",
			input: map[string]any{"action": "add", "a": 2.0, "b": 3.0},
		},
		{
			name:  "integer numbers accepted",
			input: map[string]any{"action": "add", "a": 2, "b": int64(3)},
		},
		{
			name:  "json.Number accepted",
			input: map[string]any{"action": "add", "a": json.Number("2"), "b": json.Number("3")},
		},
		{
			name:     "missing required field",
			input:    map[string]any{"action": "add", "a": 2.0},
			wantCode: ErrorCodeMissingField,
		},
		{
			name:     "unknown action",
			input:    map[string]any{"action": "multiply", "a": 1.0, "b": 1.0},
			wantCode: ErrorCodeUnknownAction,
		},
		{
			name:     "missing action",
			input:    map[string]any{"a": 1.0, "b": 1.0},
			wantCode: ErrorCodeUnknownAction,
		},
		{
			name:     "non-string action",
			input:    map[string]any{"action": 7.0, "a": 1.0, "b": 1.0},
			wantCode: ErrorCodeUnknownAction,
		},
		{
			name:     "type mismatch",
			input:    map[string]any{"action": "add", "a": "x", "b": 3.0},
			wantCode: ErrorCodeTypeMismatch,
		},
		{
			name:  "extra fields tolerated",
			input: map[string]any{"action": "add", "a": 2.0, "b": 3.0, "comment": "hi"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(s, tt.input)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate should fail")
			}
			if ErrorCode(err) != tt.wantCode {
				t.Errorf("code = %q, want %q", ErrorCode(err), tt.wantCode)
			}
			if !IsValidation(err) {
				t.Error("IsValidation should report true")
			}
		})
	}
}

func TestValidate_MissingFieldDetail(t *testing.T) {
	err := Validate(calcSchema(t), map[string]any{"action": "add", "a": 2.0})
	toolErr, ok := AsError(err)
	if !ok {
		t.Fatal("expected structured error")
	}
	if toolErr.Details["field"] != "b" {
		t.Errorf("missing field detail = %v, want b", toolErr.Details["field"])
	}
}

func TestValidate_TypeMismatchDetail(t *testing.T) {
	err := Validate(calcSchema(t), map[string]any{"action": "add", "a": "x", "b": 3.0})
	toolErr, ok := AsError(err)
	if !ok {
		t.Fatal("expected structured error")
	}
	if toolErr.Details["field"] != "a" {
		t.Errorf("field detail = %v, want a", toolErr.Details["field"])
	}
	if toolErr.Details["expected"] != "number" || toolErr.Details["actual"] != "string" {
		t.Errorf("details = %v, want expected=number actual=string", toolErr.Details)
	}
}

func TestValidate_OptionalFieldStillTypeChecked(t *testing.T) {
	s, err := schema.NewBuilder("greet").
		String("name", "Who to greet", true).
		Boolean("shout", "Uppercase the greeting", false).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Optional and absent: fine.
	if err := Validate(s, map[string]any{"action": "greet", "name": "ada"}); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	// Optional but present with the wrong type: a failure, not ignored.
	err = Validate(s, map[string]any{"action": "greet", "name": "ada", "shout": "yes"})
	if ErrorCode(err) != ErrorCodeTypeMismatch {
		t.Errorf("code = %q, want %q", ErrorCode(err), ErrorCodeTypeMismatch)
	}
}

func TestValidate_EnumField(t *testing.T) {
	s, err := schema.NewBuilder("convert").
		Enum("unit", "Target unit", true, "celsius", "fahrenheit").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if err := Validate(s, map[string]any{"action": "convert", "unit": "celsius"}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	err = Validate(s, map[string]any{"action": "convert", "unit": "kelvin"})
	if ErrorCode(err) != ErrorCodeTypeMismatch {
		t.Errorf("code = %q, want %q", ErrorCode(err), ErrorCodeTypeMismatch)
	}
}

func TestValidate_UndiscriminatedSchema(t *testing.T) {
	// A zero-value schema declares nothing; any input passes.
	if err := Validate(schema.Schema{}, map[string]any{"whatever": 1}); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
