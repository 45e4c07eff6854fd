package envelope

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/radiantone/emerge/errors"
)

// SchemaFor generates a JSON Schema for the payload of an object type by
// reflecting over its exported struct fields. The schema travels inside the
// type descriptor so a peer without the type registered can still validate
// and decode the payload as a Generic.
//
// Field names follow the json tag; fields tagged "-" are skipped. Fields
// without omitempty are marked required.
func SchemaFor(v any) (json.RawMessage, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Internal("Schema", "SchemaFor", "schema generation requires a struct type")
	}

	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	properties := schema["properties"].(map[string]any)
	var required []string

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name, omitempty, skip := parseJSONTag(field)
		if skip {
			continue
		}

		prop, err := schemaForType(field.Type)
		if err != nil {
			return nil, errors.WrapKind(errors.KindInternal, err, "Schema", "SchemaFor",
				fmt.Sprintf("field %q", field.Name))
		}
		properties[name] = prop

		if !omitempty {
			required = append(required, name)
		}
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errors.WrapKind(errors.KindInternal, err, "Schema", "SchemaFor", "schema marshal")
	}
	return data, nil
}

// MustSchemaFor is SchemaFor for package-level type descriptors, panicking
// on generation failure. Generation only fails for non-struct inputs, which
// is a programming error caught at init time.
func MustSchemaFor(v any) json.RawMessage {
	schema, err := SchemaFor(v)
	if err != nil {
		panic(err)
	}
	return schema
}

// parseJSONTag resolves the wire name and omitempty flag for a struct field.
func parseJSONTag(field reflect.StructField) (name string, omitempty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}

	name = field.Name
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, part := range parts[1:] {
		if part == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty, false
}

// schemaForType maps a Go type to its JSON Schema fragment.
func schemaForType(t reflect.Type) (map[string]any, error) {
	switch t.Kind() {
	case reflect.Pointer:
		return schemaForType(t.Elem())
	case reflect.String:
		return map[string]any{"type": "string"}, nil
	case reflect.Bool:
		return map[string]any{"type": "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}, nil
	case reflect.Slice, reflect.Array:
		items, err := schemaForType(t.Elem())
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "array", "items": items}, nil
	case reflect.Map, reflect.Struct, reflect.Interface:
		// Nested structures are validated by their own type's schema,
		// not inline; accept any object here.
		return map[string]any{"type": "object"}, nil
	default:
		return nil, fmt.Errorf("unsupported field kind %s", t.Kind())
	}
}

// validatePayload checks an incoming payload against the descriptor's
// shipped schema. Used on the decode side when the type is not registered
// locally, before falling back to a Generic.
func validatePayload(t Type, payload json.RawMessage) error {
	if len(t.Schema) == 0 {
		return errors.UnknownType("Codec", "Decode",
			fmt.Sprintf("type %q is not registered and ships no schema", t.String()))
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(t.Schema),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		return errors.WrapKind(errors.KindUnknownType, err, "Codec", "Decode",
			fmt.Sprintf("schema for type %q is unusable", t.String()))
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return errors.UnknownType("Codec", "Decode",
			fmt.Sprintf("payload does not match schema for %q: %s",
				t.String(), strings.Join(details, "; ")))
	}

	return nil
}
