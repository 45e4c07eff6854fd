package testutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/radiantone/emerge/envelope"
)

// InventoryItem is the canonical sample object: an item with a price and a
// stock count, exposing methods the execution engine can invoke remotely.
type InventoryItem struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	UnitPrice      float64 `json:"unit_price"`
	QuantityOnHand int     `json:"quantity_on_hand"`
}

// Descriptor returns the versioned type descriptor for inventory items.
func (i *InventoryItem) Descriptor() envelope.Type {
	return envelope.Type{
		Name:    "inventory-item",
		Version: "v1",
		Schema:  envelope.MustSchemaFor(&InventoryItem{}),
	}
}

// Validate checks required identity fields.
func (i *InventoryItem) Validate() error {
	if i.ID == "" {
		return errors.New("inventory item requires an id")
	}
	return nil
}

// MarshalJSON emits the item's field state.
func (i *InventoryItem) MarshalJSON() ([]byte, error) {
	type alias InventoryItem
	return json.Marshal((*alias)(i))
}

// UnmarshalJSON restores the item's field state.
func (i *InventoryItem) UnmarshalJSON(data []byte) error {
	type alias InventoryItem
	return json.Unmarshal(data, (*alias)(i))
}

// TotalCost returns price times stock.
func (i *InventoryItem) TotalCost() float64 {
	return i.UnitPrice * float64(i.QuantityOnHand)
}

// Restock adds stock, exercising state mutation through execute.
func (i *InventoryItem) Restock() int {
	i.QuantityOnHand++
	return i.QuantityOnHand
}

// Run is the conventional entry point invoked by the run command.
func (i *InventoryItem) Run() string {
	return fmt.Sprintf("total cost:%v", i.TotalCost())
}

// Query is the conventional read-only inspection method.
func (i *InventoryItem) Query() string {
	return fmt.Sprintf("%s unit_price=%v quantity_on_hand=%d", i.Name, i.UnitPrice, i.QuantityOnHand)
}

// Note is a second sample type: a text-carrying object.
type Note struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
}

// Descriptor returns the versioned type descriptor for notes.
func (n *Note) Descriptor() envelope.Type {
	return envelope.Type{
		Name:    "note",
		Version: "v1",
		Schema:  envelope.MustSchemaFor(&Note{}),
	}
}

// Validate checks required identity fields.
func (n *Note) Validate() error {
	if n.ID == "" {
		return errors.New("note requires an id")
	}
	return nil
}

// MarshalJSON emits the note's field state.
func (n *Note) MarshalJSON() ([]byte, error) {
	type alias Note
	return json.Marshal((*alias)(n))
}

// UnmarshalJSON restores the note's field state.
func (n *Note) UnmarshalJSON(data []byte) error {
	type alias Note
	return json.Unmarshal(data, (*alias)(n))
}

// Data returns the note's text.
func (n *Note) Data() string {
	return n.Text
}

// WordCount counts whitespace-separated words.
func (n *Note) WordCount() int {
	return len(strings.Fields(n.Text))
}

// Run is the conventional entry point invoked by the run command.
func (n *Note) Run() string {
	return fmt.Sprintf("words:%d", n.WordCount())
}

// Fail always errors, for execution-failure tests.
func (n *Note) Fail() (string, error) {
	return "", errors.New("this method always fails")
}

// Registry returns a type registry with the sample types registered.
func Registry() *envelope.Registry {
	reg := envelope.NewRegistry()
	for _, registration := range []*envelope.Registration{
		{Name: "inventory-item", Version: "v1", Factory: func() envelope.Object { return &InventoryItem{} }},
		{Name: "note", Version: "v1", Factory: func() envelope.Object { return &Note{} }},
	} {
		if err := reg.Register(registration); err != nil {
			panic(err)
		}
	}
	return reg
}
