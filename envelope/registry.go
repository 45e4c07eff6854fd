package envelope

import (
	"fmt"
	"sync"

	"github.com/radiantone/emerge/errors"
)

// Factory creates a zero-value instance of a registered object type,
// ready for payload unmarshaling.
type Factory func() Object

// Registration holds the factory and metadata for one object type.
type Registration struct {
	Factory     Factory `json:"-"`
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Description string  `json:"description"`
}

// key returns the registry key, "name.version".
func (r *Registration) key() string {
	return fmt.Sprintf("%s.%s", r.Name, r.Version)
}

// Registry manages object factories for envelope decoding. It is an owned
// instance, not process-global state, so independent nodes in one process
// can carry independent type sets.
type Registry struct {
	registrations map[string]*Registration
	mu            sync.RWMutex
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{
		registrations: make(map[string]*Registration),
	}
}

// Register adds an object type with validation. Registering the same
// name.version twice is a conflict.
func (r *Registry) Register(reg *Registration) error {
	if reg == nil || reg.Factory == nil {
		return errors.Internal("Registry", "Register", "registration requires a factory")
	}
	if reg.Name == "" || reg.Version == "" {
		return errors.Internal("Registry", "Register", "registration requires name and version")
	}

	key := reg.key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.registrations[key]; exists {
		return errors.AlreadyExists("Registry", "Register",
			fmt.Sprintf("type %q is already registered", key))
	}

	r.registrations[key] = reg
	return nil
}

// New creates an instance for the given descriptor using the registered
// factory. Returns nil if the type is not registered, letting the codec
// fall back to a schema-validated Generic.
func (r *Registry) New(t Type) Object {
	r.mu.RLock()
	reg, exists := r.registrations[t.String()]
	r.mu.RUnlock()

	if !exists {
		return nil
	}
	return reg.Factory()
}

// Known reports whether the descriptor's type is registered.
func (r *Registry) Known(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.registrations[t.String()]
	return exists
}

// Types returns the registered type keys, for introspection endpoints.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.registrations))
	for key := range r.registrations {
		keys = append(keys, key)
	}
	return keys
}
