package schema

import (
	"fmt"
	"sort"

	"github.com/roach88/ms05probe/internal/model"
)

// NcDatatypeType values.
const (
	TypePrimitive = 0
	TypeTypedef   = 1
	TypeStruct    = 2
	TypeEnum      = 3
)

const draft07 = "http://json-schema.org/draft-07/schema#"

var primitiveTypes = map[string]string{
	"NcBoolean": "boolean",
	"NcInt16":   "integer",
	"NcInt32":   "integer",
	"NcInt64":   "integer",
	"NcUint16":  "integer",
	"NcUint32":  "integer",
	"NcUint64":  "integer",
	"NcFloat32": "number",
	"NcFloat64": "number",
	"NcString":  "string",
}

// Generate returns one JSON Schema per datatype, keyed by datatype name.
// Every schema carries the definitions of all datatypes so references
// resolve inside the document.
func Generate(datatypes map[string]model.Descriptor) (map[string]map[string]any, error) {
	names := make([]string, 0, len(datatypes))
	for name := range datatypes {
		names = append(names, name)
	}
	sort.Strings(names)

	definitions := make(map[string]any, len(datatypes))
	for _, name := range names {
		def, err := Definition(datatypes[name])
		if err != nil {
			return nil, fmt.Errorf("datatype %s: %w", name, err)
		}
		definitions[name] = def
	}

	out := make(map[string]map[string]any, len(names))
	for _, name := range names {
		out[name] = map[string]any{
			"$schema":     draft07,
			"title":       name,
			"definitions": definitions,
			"allOf":       []any{ref(name)},
		}
	}
	return out, nil
}

// Definition converts one datatype descriptor to a JSON Schema fragment.
// References to other datatypes point into #/definitions.
func Definition(desc model.Descriptor) (map[string]any, error) {
	name, _ := desc["name"].(string)
	kind, ok := desc["type"].(float64)
	if !ok {
		return nil, fmt.Errorf("type: expected number, got %T", desc["type"])
	}

	switch int(kind) {
	case TypePrimitive:
		t, ok := primitiveTypes[name]
		if !ok {
			return nil, fmt.Errorf("unknown primitive %q", name)
		}
		return map[string]any{"type": t}, nil

	case TypeTypedef:
		parent, _ := desc["parentType"].(string)
		if parent == "" {
			return nil, fmt.Errorf("typedef without parentType")
		}
		sequence, _ := desc["isSequence"].(bool)
		return typeSchema(parent, false, sequence), nil

	case TypeEnum:
		items, _ := desc["items"].([]any)
		values := make([]any, 0, len(items))
		for _, elem := range items {
			item, _ := elem.(map[string]any)
			values = append(values, item["value"])
		}
		return map[string]any{"type": "integer", "enum": values}, nil

	case TypeStruct:
		fields, _ := desc["fields"].([]any)
		properties := make(map[string]any, len(fields))
		required := make([]any, 0, len(fields))
		for _, elem := range fields {
			f, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("field: expected object, got %T", elem)
			}
			fname, _ := f["name"].(string)
			typeName, _ := f["typeName"].(string)
			nullable, _ := f["isNullable"].(bool)
			sequence, _ := f["isSequence"].(bool)
			properties[fname] = typeSchema(typeName, nullable, sequence)
			required = append(required, fname)
		}
		obj := map[string]any{"type": "object", "properties": properties}
		if len(required) > 0 {
			obj["required"] = required
		}
		if parent, _ := desc["parentType"].(string); parent != "" {
			return map[string]any{"allOf": []any{ref(parent), obj}}, nil
		}
		return obj, nil

	default:
		return nil, fmt.Errorf("unknown datatype type %v", kind)
	}
}

// typeSchema is the schema of a value of typeName. An empty typeName is a
// variant and accepts anything.
func typeSchema(typeName string, nullable, sequence bool) map[string]any {
	var item map[string]any
	switch t, primitive := primitiveTypes[typeName]; {
	case typeName == "":
		item = map[string]any{}
	case primitive && !sequence && nullable:
		return map[string]any{"type": []any{t, "null"}}
	case primitive:
		item = map[string]any{"type": t}
	default:
		item = ref(typeName)
	}

	if sequence {
		if nullable {
			return map[string]any{"type": []any{"array", "null"}, "items": item}
		}
		return map[string]any{"type": "array", "items": item}
	}
	if nullable && typeName != "" {
		return map[string]any{"anyOf": []any{item, map[string]any{"type": "null"}}}
	}
	return item
}

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/definitions/" + name}
}
