// Package tool holds the registration and dispatch core of a PetalApp: the
// Handler contract implemented by every tool, the Registry that maps names to
// handlers, input validation against a tool's declared schema, and the
// Dispatcher that routes invocations and normalizes their outcomes.
package tool

import (
	"context"

	"github.com/petal-labs/petalapp/schema"
)

// Handler is the capability contract for a tool. A handler's name is its
// identity within a registry; name, description, and schema are immutable
// after registration. Execute is the single suspend point in the system: it
// may perform I/O and is run concurrently with unrelated invocations. A
// failure is returned as an error, never raised as a panic — panics that do
// escape are caught at the dispatch boundary and converted.
type Handler interface {
	Name() string
	Description() string
	Schema() schema.Schema
	Execute(ctx context.Context, input map[string]any) (string, error)
}

// Func adapts a plain function into a Handler.
type Func struct {
	name        string
	description string
	schema      schema.Schema
	fn          func(ctx context.Context, input map[string]any) (string, error)
}

// NewFunc builds a Handler from a name, description, schema, and closure.
func NewFunc(name, description string, s schema.Schema, fn func(ctx context.Context, input map[string]any) (string, error)) *Func {
	return &Func{name: name, description: description, schema: s, fn: fn}
}

func (f *Func) Name() string          { return f.name }
func (f *Func) Description() string   { return f.description }
func (f *Func) Schema() schema.Schema { return f.schema }

func (f *Func) Execute(ctx context.Context, input map[string]any) (string, error) {
	return f.fn(ctx, input)
}

// Descriptor is the introspectable summary of a registered tool, exposed to
// the platform so it can present tools and pre-validate input.
type Descriptor struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Schema      schema.Schema `json:"schema"`
}
