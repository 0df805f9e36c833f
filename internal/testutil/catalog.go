package testutil

import "github.com/roach88/ms05probe/internal/model"

// NcDatatypeType values.
const (
	datatypePrimitive = 0
	datatypeTypedef   = 1
	datatypeStruct    = 2
	datatypeEnum      = 3
)

// Field builds an NcFieldDescriptor.
func Field(name, typeName string, nullable, sequence bool) map[string]any {
	var tn any
	if typeName != "" {
		tn = typeName
	}
	return map[string]any{
		"description": nil,
		"name":        name,
		"typeName":    tn,
		"isNullable":  nullable,
		"isSequence":  sequence,
		"constraints": nil,
	}
}

// Primitive builds a primitive NcDatatypeDescriptor.
func Primitive(name string) model.Descriptor {
	return model.Descriptor{"description": nil, "name": name, "type": float64(datatypePrimitive), "constraints": nil}
}

// Typedef builds a typedef NcDatatypeDescriptor.
func Typedef(name, parent string, sequence bool, constraints map[string]any) model.Descriptor {
	var c any
	if constraints != nil {
		c = constraints
	}
	return model.Descriptor{
		"description": nil,
		"name":        name,
		"type":        float64(datatypeTypedef),
		"constraints": c,
		"parentType":  parent,
		"isSequence":  sequence,
	}
}

// Struct builds a struct NcDatatypeDescriptor.
func Struct(name, parent string, fields ...map[string]any) model.Descriptor {
	list := make([]any, len(fields))
	for i, f := range fields {
		list[i] = f
	}
	var p any
	if parent != "" {
		p = parent
	}
	return model.Descriptor{
		"description": nil,
		"name":        name,
		"type":        float64(datatypeStruct),
		"constraints": nil,
		"fields":      list,
		"parentType":  p,
	}
}

// Enum builds an enum NcDatatypeDescriptor with items valued 0..n-1.
func Enum(name string, items ...string) model.Descriptor {
	list := make([]any, len(items))
	for i, item := range items {
		list[i] = map[string]any{"description": nil, "name": item, "value": float64(i)}
	}
	return model.Descriptor{
		"description": nil,
		"name":        name,
		"type":        float64(datatypeEnum),
		"constraints": nil,
		"items":       list,
	}
}

// Property builds an NcPropertyDescriptor.
func Property(id model.PropertyID, name, typeName string, readOnly, nullable, sequence bool, constraints map[string]any) map[string]any {
	var c any
	if constraints != nil {
		c = constraints
	}
	return map[string]any{
		"description":  nil,
		"id":           map[string]any{"level": float64(id.Level), "index": float64(id.Index)},
		"name":         name,
		"typeName":     typeName,
		"isReadOnly":   readOnly,
		"isNullable":   nullable,
		"isSequence":   sequence,
		"isDeprecated": false,
		"constraints":  c,
	}
}

// Class builds an NcClassDescriptor.
func Class(name string, id model.ClassID, props ...map[string]any) model.Descriptor {
	list := make([]any, len(props))
	for i, p := range props {
		list[i] = p
	}
	return model.Descriptor{
		"description": nil,
		"classId":     classIDValue(id),
		"name":        name,
		"fixedRole":   nil,
		"properties":  list,
		"methods":     []any{},
		"events":      []any{},
	}
}

// StandardClasses returns the framework classes a FakeDevice starts with.
func StandardClasses() []model.Descriptor {
	return []model.Descriptor{
		Class("NcObject", model.ClassNcObject,
			Property(model.PropClassID, "classId", "NcClassId", true, false, false, nil),
			Property(model.PropOID, "oid", "NcOid", true, false, false, nil),
			Property(model.PropConstantOID, "constantOid", "NcBoolean", true, false, false, nil),
			Property(model.PropOwner, "owner", "NcOid", true, true, false, nil),
			Property(model.PropRole, "role", "NcString", true, false, false, nil),
			Property(model.PropUserLabel, "userLabel", "NcString", false, true, false, nil),
			Property(model.PropTouchpoints, "touchpoints", "NcTouchpoint", true, true, true, nil),
			Property(model.PropRuntimePropertyConstraints, "runtimePropertyConstraints", "NcPropertyConstraints", true, true, true, nil),
		),
		Class("NcBlock", model.ClassNcBlock,
			Property(model.PropBlockEnabled, "enabled", "NcBoolean", true, false, false, nil),
			Property(model.PropBlockMembers, "members", "NcBlockMemberDescriptor", true, false, true, nil),
		),
		Class("NcWorker", model.ClassNcWorker,
			Property(model.PropertyID{Level: 2, Index: 1}, "enabled", "NcBoolean", false, false, false, nil),
		),
		Class("NcManager", model.ClassNcManager),
		Class("NcDeviceManager", model.ClassNcDeviceManager,
			Property(model.PropertyID{Level: 3, Index: 1}, "ncVersion", "NcVersionCode", true, false, false, nil),
		),
		Class("NcClassManager", model.ClassNcClassManager,
			Property(model.PropControlClasses, "controlClasses", "NcClassDescriptor", true, false, true, nil),
			Property(model.PropDatatypes, "datatypes", "NcDatatypeDescriptor", true, false, true, nil),
		),
	}
}

// StandardDatatypes returns the framework datatypes a FakeDevice starts with.
func StandardDatatypes() []model.Descriptor {
	return []model.Descriptor{
		Primitive("NcBoolean"),
		Primitive("NcInt16"),
		Primitive("NcInt32"),
		Primitive("NcInt64"),
		Primitive("NcUint16"),
		Primitive("NcUint32"),
		Primitive("NcUint64"),
		Primitive("NcFloat32"),
		Primitive("NcFloat64"),
		Primitive("NcString"),
		Typedef("NcOid", "NcUint32", false, nil),
		Typedef("NcClassId", "NcInt32", true, nil),
		Typedef("NcName", "NcString", false, nil),
		Typedef("NcVersionCode", "NcString", false, nil),
		Enum("NcDatatypeType", "Primitive", "Typedef", "Struct", "Enum"),
		Struct("NcElementId", "",
			Field("level", "NcInt16", false, false),
			Field("index", "NcInt16", false, false),
		),
		Struct("NcPropertyId", "NcElementId"),
		Struct("NcMethodId", "NcElementId"),
		Struct("NcEventId", "NcElementId"),
		Struct("NcTouchpoint", "",
			Field("contextNamespace", "NcString", false, false),
		),
		Struct("NcDescriptor", "",
			Field("description", "NcString", true, false),
		),
		Struct("NcBlockMemberDescriptor", "NcDescriptor",
			Field("role", "NcString", false, false),
			Field("oid", "NcOid", false, false),
			Field("constantOid", "NcBoolean", false, false),
			Field("classId", "NcClassId", false, false),
			Field("userLabel", "NcString", true, false),
			Field("owner", "NcOid", false, false),
		),
		Struct("NcParameterConstraints", "",
			Field("defaultValue", "", true, false),
		),
		Struct("NcPropertyConstraints", "",
			Field("propertyId", "NcPropertyId", false, false),
			Field("defaultValue", "", true, false),
		),
		Struct("NcPropertyDescriptor", "NcDescriptor",
			Field("id", "NcPropertyId", false, false),
			Field("name", "NcName", false, false),
			Field("typeName", "NcName", true, false),
			Field("isReadOnly", "NcBoolean", false, false),
			Field("isNullable", "NcBoolean", false, false),
			Field("isSequence", "NcBoolean", false, false),
			Field("isDeprecated", "NcBoolean", false, false),
			Field("constraints", "NcParameterConstraints", true, false),
		),
		Struct("NcMethodDescriptor", "NcDescriptor",
			Field("id", "NcMethodId", false, false),
			Field("name", "NcName", false, false),
			Field("resultDatatype", "NcName", false, false),
			Field("isDeprecated", "NcBoolean", false, false),
		),
		Struct("NcEventDescriptor", "NcDescriptor",
			Field("id", "NcEventId", false, false),
			Field("name", "NcName", false, false),
			Field("eventDatatype", "NcName", false, false),
			Field("isDeprecated", "NcBoolean", false, false),
		),
		Struct("NcClassDescriptor", "NcDescriptor",
			Field("classId", "NcClassId", false, false),
			Field("name", "NcName", false, false),
			Field("fixedRole", "NcString", true, false),
			Field("properties", "NcPropertyDescriptor", false, true),
			Field("methods", "NcMethodDescriptor", false, true),
			Field("events", "NcEventDescriptor", false, true),
		),
		Struct("NcDatatypeDescriptor", "NcDescriptor",
			Field("name", "NcName", false, false),
			Field("type", "NcDatatypeType", false, false),
			Field("constraints", "NcParameterConstraints", true, false),
		),
	}
}
