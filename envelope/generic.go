package envelope

import (
	"encoding/json"

	"github.com/radiantone/emerge/errors"
)

// Generic is the decode-side stand-in for object types the local process
// has not registered. The payload is kept as a field map after validation
// against the descriptor's shipped schema, so callers can still read
// attributes, index fields, and forward the object unchanged.
type Generic struct {
	typ    Type
	Fields map[string]any
	links  map[string]Object
}

// NewGeneric creates a Generic carrying the given descriptor.
func NewGeneric(t Type) *Generic {
	return &Generic{
		typ:    t,
		Fields: make(map[string]any),
		links:  make(map[string]Object),
	}
}

// Descriptor returns the descriptor the envelope shipped; a Generic never
// invents type identity.
func (g *Generic) Descriptor() Type {
	return g.typ
}

// Validate accepts any field set. Schema validation already happened
// before the Generic was populated.
func (g *Generic) Validate() error {
	if !g.typ.Valid() {
		return errors.UnknownType("Generic", "Validate", "generic object carries no type descriptor")
	}
	return nil
}

// Get returns a named field value.
func (g *Generic) Get(name string) (any, bool) {
	v, ok := g.Fields[name]
	return v, ok
}

// MarshalJSON emits the field map.
func (g *Generic) MarshalJSON() ([]byte, error) {
	if g.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(g.Fields)
}

// UnmarshalJSON replaces the field map.
func (g *Generic) UnmarshalJSON(data []byte) error {
	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	g.Fields = fields
	return nil
}

// Links returns the nested object references.
func (g *Generic) Links() map[string]Object {
	return g.links
}

// SetLink wires a nested object reference by name.
func (g *Generic) SetLink(name string, obj Object) error {
	if g.links == nil {
		g.links = make(map[string]Object)
	}
	g.links[name] = obj
	return nil
}
