package envelope

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/radiantone/emerge/errors"
)

// WireVersion is the envelope layout version. Bump only for incompatible
// layout changes; payload evolution is carried by Type.Version instead.
const WireVersion = 1

// Encoded is one entry in an envelope's object table: the versioned type
// descriptor, the object's scalar payload, and its links into the table.
type Encoded struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Links   map[string]int  `json:"links,omitempty"`
}

// Envelope is the transportable form of an object graph. Objects holds one
// entry per distinct object reachable from the root; Root indexes the entry
// the envelope was encoded from.
type Envelope struct {
	Version int       `json:"version"`
	Root    int       `json:"root"`
	Objects []Encoded `json:"objects"`
}

// Encode flattens the object graph reachable from root into an envelope.
// Each distinct object is encoded exactly once; objects referenced from
// more than one place share a single table entry, so identity survives the
// round trip. Cycles are allowed.
func Encode(root Object) (*Envelope, error) {
	if root == nil {
		return nil, errors.Internal("Codec", "Encode", "cannot encode nil object")
	}

	indexes := make(map[Object]int)
	var ordered []Object

	// Pass 1: assign table slots. Indices are assigned before links are
	// walked so cyclic graphs terminate.
	var visit func(obj Object) (int, error)
	visit = func(obj Object) (int, error) {
		if idx, seen := indexes[obj]; seen {
			return idx, nil
		}

		idx := len(ordered)
		indexes[obj] = idx
		ordered = append(ordered, obj)

		if linker, ok := obj.(Linker); ok {
			links := linker.Links()
			for _, name := range sortedLinkNames(links) {
				target := links[name]
				if target == nil {
					continue
				}
				if _, err := visit(target); err != nil {
					return 0, err
				}
			}
		}
		return idx, nil
	}

	rootIdx, err := visit(root)
	if err != nil {
		return nil, err
	}

	// Pass 2: encode payloads and link tables.
	env := &Envelope{
		Version: WireVersion,
		Root:    rootIdx,
		Objects: make([]Encoded, 0, len(ordered)),
	}

	for _, obj := range ordered {
		if err := obj.Validate(); err != nil {
			return nil, errors.WrapKind(errors.KindInternal, err, "Codec", "Encode",
				fmt.Sprintf("object of type %q failed validation", obj.Descriptor().String()))
		}

		payload, err := obj.MarshalJSON()
		if err != nil {
			return nil, errors.WrapKind(errors.KindInternal, err, "Codec", "Encode",
				fmt.Sprintf("payload marshal for type %q", obj.Descriptor().String()))
		}

		entry := Encoded{
			Type:    obj.Descriptor(),
			Payload: payload,
		}

		if linker, ok := obj.(Linker); ok {
			links := linker.Links()
			if len(links) > 0 {
				entry.Links = make(map[string]int, len(links))
				for name, target := range links {
					if target == nil {
						continue
					}
					entry.Links[name] = indexes[target]
				}
			}
		}

		env.Objects = append(env.Objects, entry)
	}

	return env, nil
}

// Decode reconstructs the object graph from an envelope. Registered types
// decode into concrete instances; unregistered types with a usable shipped
// schema decode into schema-validated Generic objects. An unresolvable type
// fails with UnknownType. Shared table entries decode to one instance, so
// link identity is preserved, including cycles.
func Decode(env *Envelope, reg *Registry) (Object, error) {
	if env == nil {
		return nil, errors.Internal("Codec", "Decode", "cannot decode nil envelope")
	}
	if env.Version != WireVersion {
		return nil, errors.UnknownType("Codec", "Decode",
			fmt.Sprintf("unsupported envelope version %d", env.Version))
	}
	if len(env.Objects) == 0 {
		return nil, errors.UnknownType("Codec", "Decode", "envelope has an empty object table")
	}
	if env.Root < 0 || env.Root >= len(env.Objects) {
		return nil, errors.UnknownType("Codec", "Decode",
			fmt.Sprintf("root index %d outside object table of %d", env.Root, len(env.Objects)))
	}

	// Pass 1: allocate and unmarshal every instance before any link is
	// wired, so cycles and forward references resolve.
	instances := make([]Object, len(env.Objects))
	for i, entry := range env.Objects {
		if !entry.Type.Valid() {
			return nil, errors.UnknownType("Codec", "Decode",
				fmt.Sprintf("object %d carries an incomplete type descriptor", i))
		}

		obj := reg.New(entry.Type)
		if obj == nil {
			if err := validatePayload(entry.Type, entry.Payload); err != nil {
				return nil, err
			}
			obj = NewGeneric(entry.Type)
		}

		if err := obj.UnmarshalJSON(entry.Payload); err != nil {
			return nil, errors.WrapKind(errors.KindUnknownType, err, "Codec", "Decode",
				fmt.Sprintf("payload unmarshal for type %q", entry.Type.String()))
		}

		instances[i] = obj
	}

	// Pass 2: wire links.
	for i, entry := range env.Objects {
		if len(entry.Links) == 0 {
			continue
		}

		linker, ok := instances[i].(Linker)
		if !ok {
			return nil, errors.UnknownType("Codec", "Decode",
				fmt.Sprintf("type %q does not accept object links", entry.Type.String()))
		}

		for _, name := range sortedLinkIndexNames(entry.Links) {
			target := entry.Links[name]
			if target < 0 || target >= len(instances) {
				return nil, errors.UnknownType("Codec", "Decode",
					fmt.Sprintf("link %q of object %d points outside the object table", name, i))
			}
			if err := linker.SetLink(name, instances[target]); err != nil {
				return nil, errors.WrapKind(errors.KindUnknownType, err, "Codec", "Decode",
					fmt.Sprintf("wiring link %q on type %q", name, entry.Type.String()))
			}
		}
	}

	// Pass 3: validate after the full graph is assembled.
	for i, obj := range instances {
		if err := obj.Validate(); err != nil {
			return nil, errors.WrapKind(errors.KindUnknownType, err, "Codec", "Decode",
				fmt.Sprintf("object %d of type %q failed validation", i, obj.Descriptor().String()))
		}
	}

	return instances[env.Root], nil
}

// EncodeBytes encodes an object graph straight to envelope JSON.
func EncodeBytes(root Object) ([]byte, error) {
	env, err := Encode(root)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.WrapKind(errors.KindInternal, err, "Codec", "EncodeBytes", "envelope marshal")
	}
	return data, nil
}

// DecodeBytes decodes envelope JSON into an object graph.
func DecodeBytes(data []byte, reg *Registry) (Object, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.WrapKind(errors.KindUnknownType, err, "Codec", "DecodeBytes", "envelope unmarshal")
	}
	return Decode(&env, reg)
}

// RootPayload extracts the root object's raw payload and descriptor from
// envelope JSON without decoding the graph. The namespace field index uses
// this to avoid full decodes on every store.
func RootPayload(data []byte) (Type, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Type{}, nil, errors.WrapKind(errors.KindUnknownType, err, "Codec", "RootPayload", "envelope unmarshal")
	}
	if env.Root < 0 || env.Root >= len(env.Objects) {
		return Type{}, nil, errors.UnknownType("Codec", "RootPayload",
			fmt.Sprintf("root index %d outside object table of %d", env.Root, len(env.Objects)))
	}

	entry := env.Objects[env.Root]
	return entry.Type, entry.Payload, nil
}

// sortedLinkNames returns link field names in a stable order so encoding
// is deterministic.
func sortedLinkNames(links map[string]Object) []string {
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedLinkIndexNames(links map[string]int) []string {
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
