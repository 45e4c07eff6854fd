package envelope

import (
	"encoding/json"
	"fmt"
)

// Type describes an object type on the wire: a stable name, a schema
// version, and a JSON Schema for the payload. The schema is what lets a
// peer reconstruct a type it has never loaded; evolution is handled by
// bumping Version, never by inferring structure at decode time.
type Type struct {
	Name    string          `json:"name"`
	Version string          `json:"version"`
	Schema  json.RawMessage `json:"schema,omitempty"`
}

// String returns the registry key for this type, "name.version".
func (t Type) String() string {
	return fmt.Sprintf("%s.%s", t.Name, t.Version)
}

// Valid reports whether the descriptor carries the required identity fields.
func (t Type) Valid() bool {
	return t.Name != "" && t.Version != ""
}

// Object is the capability every application object must implement to cross
// the network boundary.
//
// Example implementation:
//
//	type InventoryItem struct {
//	    ID             string  `json:"id"`
//	    Name           string  `json:"name"`
//	    UnitPrice      float64 `json:"unit_price"`
//	    QuantityOnHand int     `json:"quantity_on_hand"`
//	}
//
//	func (i *InventoryItem) Descriptor() envelope.Type {
//	    return envelope.Type{Name: "inventory-item", Version: "v1",
//	        Schema: envelope.MustSchemaFor(&InventoryItem{})}
//	}
//
//	func (i *InventoryItem) Validate() error {
//	    if i.ID == "" {
//	        return errors.New("id is required")
//	    }
//	    return nil
//	}
//
//	func (i *InventoryItem) MarshalJSON() ([]byte, error) {
//	    type alias InventoryItem
//	    return json.Marshal((*alias)(i))
//	}
//
//	func (i *InventoryItem) UnmarshalJSON(data []byte) error {
//	    type alias InventoryItem
//	    return json.Unmarshal(data, (*alias)(i))
//	}
type Object interface {
	// Descriptor returns the versioned type descriptor for this object.
	Descriptor() Type

	// Validate checks the object state for correctness after decode.
	Validate() error

	// Deterministic JSON serialization of the object's scalar state.
	// Nested Object references are not part of the payload; they are
	// exposed through Linker and carried in the envelope object table.
	json.Marshaler
	json.Unmarshaler
}

// Linker is implemented by objects that hold references to other objects.
// Links returns the current references keyed by field name; SetLink rewires
// one reference after decode. Objects without nested references simply do
// not implement Linker.
type Linker interface {
	Links() map[string]Object
	SetLink(name string, obj Object) error
}
