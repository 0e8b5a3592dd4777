package schema

import (
	"encoding/json"
	"testing"
)

func TestBuilder_Build(t *testing.T) {
	s, err := NewBuilder("add", "subtract").
		Number("a", "First operand", true).
		Number("b", "Second operand", true).
		String("note", "Optional annotation", false).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if got := s.Actions(); len(got) != 2 || got[0] != "add" || got[1] != "subtract" {
		t.Errorf("Actions = %v, want [add subtract]", got)
	}
	if got := s.Fields(); len(got) != 3 {
		t.Errorf("Fields count = %d, want 3", len(got))
	}
	if !s.Discriminated() {
		t.Error("Discriminated should be true")
	}
	if !s.AllowsAction("add") || s.AllowsAction("multiply") {
		t.Error("AllowsAction membership check failed")
	}

	f, ok := s.Field("note")
	if !ok {
		t.Fatal("Field(note) should be found")
	}
	if f.Kind != KindString || f.Required {
		t.Errorf("Field(note) = %+v, want optional string", f)
	}
}

func TestBuilder_BuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
	}{
		{"no actions", NewBuilder()},
		{"empty action", NewBuilder("")},
		{"duplicate action", NewBuilder("add", "add")},
		{"empty field name", NewBuilder("add").Number("", "", true)},
		{"duplicate field", NewBuilder("add").Number("a", "", true).String("a", "", false)},
		{"reserved field", NewBuilder("add").String("action", "", true)},
		{"bad kind", NewBuilder("add").Field(FieldSpec{Name: "x", Kind: Kind("tuple")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.builder.Build(); err == nil {
				t.Error("Build should fail")
			}
		})
	}
}

func TestBuilder_BuildNoActionsSentinel(t *testing.T) {
	_, err := NewBuilder().Number("a", "", true).Build()
	if err != ErrNoActions {
		t.Errorf("err = %v, want ErrNoActions", err)
	}
}

func TestSchema_Document(t *testing.T) {
	s := NewBuilder("add", "subtract").
		Number("a", "First operand", true).
		Boolean("verbose", "Verbose output", false).
		MustBuild()

	doc := s.Document()
	if doc["type"] != "object" {
		t.Errorf("type = %v, want object", doc["type"])
	}

	props, ok := doc["properties"].(map[string]any)
	if !ok {
		t.Fatal("properties should be a map")
	}
	action, ok := props["action"].(map[string]any)
	if !ok {
		t.Fatal("action property should be present")
	}
	enum, ok := action["enum"].([]string)
	if !ok || len(enum) != 2 || enum[0] != "add" {
		t.Errorf("action enum = %v, want [add subtract]", action["enum"])
	}

	required, ok := doc["required"].([]string)
	if !ok {
		t.Fatal("required should be a string slice")
	}
	if len(required) != 2 || required[0] != "action" || required[1] != "a" {
		t.Errorf("required = %v, want [action a]", required)
	}
}

func TestSchema_SerializationIdempotent(t *testing.T) {
	build := func() Schema {
		return NewBuilder("divide").
			Number("a", "Dividend", true).
			Number("b", "Divisor", true).
			MustBuild()
	}

	first, err := json.Marshal(build())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := json.Marshal(build())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("equivalently-configured builders serialized differently:\n%s\n%s", first, second)
	}
}

func TestSchema_JSONRoundTrip(t *testing.T) {
	s := NewBuilder("add", "subtract").
		Number("a", "First operand", true).
		Enum("unit", "Target unit", false, "celsius", "fahrenheit").
		MustBuild()

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Schema
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if actions := got.Actions(); len(actions) != 2 || actions[0] != "add" || actions[1] != "subtract" {
		t.Errorf("Actions = %v, want [add subtract]", actions)
	}
	a, ok := got.Field("a")
	if !ok || a.Kind != KindNumber || !a.Required {
		t.Errorf("Field(a) = %+v, want required number", a)
	}
	unit, ok := got.Field("unit")
	if !ok || len(unit.Enum) != 2 || unit.Required {
		t.Errorf("Field(unit) = %+v, want optional enum", unit)
	}
}

func TestSchema_EnumField(t *testing.T) {
	s := NewBuilder("convert").
		Enum("unit", "Target unit", true, "celsius", "fahrenheit").
		MustBuild()

	props := s.Document()["properties"].(map[string]any)
	unit := props["unit"].(map[string]any)
	enum, ok := unit["enum"].([]string)
	if !ok || len(enum) != 2 {
		t.Errorf("unit enum = %v, want two values", unit["enum"])
	}
}
