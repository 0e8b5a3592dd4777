package tool

import (
	"strings"
	"sync"
)

// Registry is the authoritative mapping from tool name to Handler for one
// running app. Registration preserves order for reproducible introspection
// output. Once frozen — which happens when the app enters its run loop — the
// registry rejects further registration; lookups are then effectively
// lock-free reads, though the RWMutex is kept for the Building phase.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Handler
	order   []string
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Handler)}
}

// Register inserts a handler by name. A second registration under an existing
// name fails with DUPLICATE_TOOL rather than silently overwriting: duplicate
// registration is a programmer error surfaced during startup. Registration
// after Freeze fails with REGISTRY_FROZEN.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return NewError(ErrorCodeInvalidConfig, "nil handler")
	}
	name := strings.TrimSpace(h.Name())
	if name == "" {
		return NewError(ErrorCodeInvalidConfig, "tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return NewError(ErrorCodeRegistryFrozen, "registry is frozen; register tools before Run")
	}
	if _, exists := r.entries[name]; exists {
		return NewError(ErrorCodeDuplicateTool, "tool %q is already registered", name)
	}

	r.entries[name] = h
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[name]
	return h, ok
}

// List returns descriptors for all registered tools in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		h := r.entries[name]
		// name is the trimmed registration key; Lookup and dispatch resolve
		// it, so it is also what the platform must see.
		out = append(out, Descriptor{
			Name:        name,
			Description: h.Description(),
			Schema:      h.Schema(),
		})
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Freeze permanently disables registration. Called by the app when it
// transitions from Building to Running.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}
