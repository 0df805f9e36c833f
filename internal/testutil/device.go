package testutil

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/roach88/ms05probe/internal/constraint"
	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/ncp"
)

// Fixed oids of the objects every FakeDevice starts with.
const (
	RootOID          = model.RootBlockOID
	ClassManagerOID  = 2
	DeviceManagerOID = 3
)

// FakeObject is one object in a FakeDevice.
type FakeObject struct {
	OID        int
	Owner      int
	Role       string
	ClassID    model.ClassID
	Properties map[model.PropertyID]any
	Members    []int
}

// FakeDevice is an in-memory MS-05 device model implementing ncp.Client.
//
// It enforces the constraints it declares: a Set that violates the
// runtime, property or datatype constraint of a property (first declared
// tier in that order) fails with StatusParameterError. Lax disables that
// for individual properties to model a non-conforming device.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type FakeDevice struct {
	mu        sync.Mutex
	objects   map[int]*FakeObject
	classes   map[string]model.Descriptor
	datatypes map[string]model.Descriptor
	lax       map[string]bool
	failures  map[string]error

	Opens  int
	Closes int
	Sets   []SetCall
}

// SetCall records one SetProperty call.
type SetCall struct {
	OID   int
	ID    model.PropertyID
	Value any
	Err   error
}

// NewFakeDevice creates a device holding the root block, a class manager
// and a device manager, with the standard class and datatype catalog.
func NewFakeDevice() *FakeDevice {
	d := &FakeDevice{
		objects:   make(map[int]*FakeObject),
		classes:   make(map[string]model.Descriptor),
		datatypes: make(map[string]model.Descriptor),
		lax:       make(map[string]bool),
		failures:  make(map[string]error),
	}
	for _, c := range StandardClasses() {
		d.AddClass(c)
	}
	for _, dt := range StandardDatatypes() {
		d.AddDatatype(dt)
	}

	d.objects[RootOID] = &FakeObject{
		OID:        RootOID,
		Role:       "root",
		ClassID:    model.ClassNcBlock,
		Properties: baseProperties(model.ClassNcBlock, RootOID, 0, "root"),
	}
	d.objects[RootOID].Properties[model.PropBlockEnabled] = true
	d.AddObject(RootOID, ClassManagerOID, "ClassManager", model.ClassNcClassManager, nil)
	d.AddObject(RootOID, DeviceManagerOID, "DeviceManager", model.ClassNcDeviceManager, nil)
	return d
}

func baseProperties(classID model.ClassID, oid, owner int, role string) map[model.PropertyID]any {
	var ownerValue any
	if owner != 0 {
		ownerValue = float64(owner)
	}
	return map[model.PropertyID]any{
		model.PropClassID:                    classIDValue(classID),
		model.PropOID:                        float64(oid),
		model.PropConstantOID:                true,
		model.PropOwner:                      ownerValue,
		model.PropRole:                       role,
		model.PropUserLabel:                  nil,
		model.PropTouchpoints:                nil,
		model.PropRuntimePropertyConstraints: nil,
	}
}

func classIDValue(id model.ClassID) []any {
	out := make([]any, len(id))
	for i, v := range id {
		out[i] = float64(v)
	}
	return out
}

// AddObject adds an object owned by the block at owner. Blocks get an
// enabled property; props override or extend the standard properties.
func (d *FakeDevice) AddObject(owner, oid int, role string, classID model.ClassID, props map[model.PropertyID]any) *FakeObject {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj := &FakeObject{
		OID:        oid,
		Owner:      owner,
		Role:       role,
		ClassID:    classID,
		Properties: baseProperties(classID, oid, owner, role),
	}
	if model.IsDerived(classID, model.ClassNcBlock) {
		obj.Properties[model.PropBlockEnabled] = true
	}
	for id, v := range props {
		obj.Properties[id] = v
	}
	d.objects[oid] = obj
	if parent, ok := d.objects[owner]; ok {
		parent.Members = append(parent.Members, oid)
	}
	return obj
}

// AddClass registers a class descriptor in the class manager catalog.
func (d *FakeDevice) AddClass(desc model.Descriptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, err := model.ParseClassID(desc["classId"])
	if err != nil {
		panic(fmt.Sprintf("FakeDevice.AddClass: %v", err))
	}
	d.classes[id.String()] = desc
}

// AddDatatype registers a datatype descriptor in the class manager catalog.
func (d *FakeDevice) AddDatatype(desc model.Descriptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.datatypes[desc["name"].(string)] = desc
}

// SetRuntimeConstraints replaces the runtime property constraints of oid.
func (d *FakeDevice) SetRuntimeConstraints(oid int, constraints []map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := make([]any, len(constraints))
	for i, c := range constraints {
		list[i] = c
	}
	d.objects[oid].Properties[model.PropRuntimePropertyConstraints] = list
}

// Lax stops the device enforcing constraints on one property.
func (d *FakeDevice) Lax(oid int, id model.PropertyID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lax[propKey(oid, id)] = true
}

// FailGet makes every Get of the property fail with err.
func (d *FakeDevice) FailGet(oid int, id model.PropertyID, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[propKey(oid, id)] = err
}

// Value returns the current value of a property.
func (d *FakeDevice) Value(oid int, id model.PropertyID) any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.objects[oid].Properties[id]
}

// Object returns the object at oid.
func (d *FakeDevice) Object(oid int) *FakeObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.objects[oid]
}

func propKey(oid int, id model.PropertyID) string {
	return fmt.Sprintf("%d/%s", oid, id)
}

// Open implements ncp.Client.
func (d *FakeDevice) Open(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Opens++
	return nil
}

// Close implements ncp.Client.
func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closes++
	return nil
}

// GetProperty implements ncp.Client.
func (d *FakeDevice) GetProperty(ctx context.Context, oid int, id model.PropertyID) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.failures[propKey(oid, id)]; ok {
		return nil, err
	}
	obj, ok := d.objects[oid]
	if !ok {
		return nil, &ncp.DeviceError{Status: ncp.StatusBadOID, Message: "unknown oid", OID: oid, Method: "Get"}
	}

	switch {
	case id == model.PropBlockMembers && model.IsDerived(obj.ClassID, model.ClassNcBlock):
		return d.memberDescriptors(obj, false), nil
	case id == model.PropControlClasses && model.IsDerived(obj.ClassID, model.ClassNcClassManager):
		return sortedValues(d.classes), nil
	case id == model.PropDatatypes && model.IsDerived(obj.ClassID, model.ClassNcClassManager):
		return sortedValues(d.datatypes), nil
	}

	v, ok := obj.Properties[id]
	if !ok {
		return nil, &ncp.DeviceError{Status: ncp.StatusPropertyNotImplemented, Message: "property not implemented", OID: oid, Method: "Get"}
	}
	return v, nil
}

// SetProperty implements ncp.Client.
func (d *FakeDevice) SetProperty(ctx context.Context, oid int, id model.PropertyID, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.set(oid, id, value)
	d.Sets = append(d.Sets, SetCall{OID: oid, ID: id, Value: value, Err: err})
	return err
}

func (d *FakeDevice) set(oid int, id model.PropertyID, value any) error {
	obj, ok := d.objects[oid]
	if !ok {
		return &ncp.DeviceError{Status: ncp.StatusBadOID, Message: "unknown oid", OID: oid, Method: "Set"}
	}
	prop, ok := d.findProperty(obj.ClassID, id)
	if !ok {
		return &ncp.DeviceError{Status: ncp.StatusPropertyNotImplemented, Message: "property not implemented", OID: oid, Method: "Set"}
	}
	if readOnly, _ := prop["isReadOnly"].(bool); readOnly {
		return &ncp.DeviceError{Status: ncp.StatusReadonly, Message: "property is read only", OID: oid, Method: "Set"}
	}
	if !d.lax[propKey(oid, id)] {
		if raw := d.effectiveConstraint(obj, prop, id); raw != nil {
			if msg := violates(raw, value); msg != "" {
				return &ncp.DeviceError{Status: ncp.StatusParameterError, Message: msg, OID: oid, Method: "Set"}
			}
		}
	}
	obj.Properties[id] = value
	return nil
}

func (d *FakeDevice) effectiveConstraint(obj *FakeObject, prop model.Descriptor, id model.PropertyID) constraint.Raw {
	if list, ok := obj.Properties[model.PropRuntimePropertyConstraints].([]any); ok {
		for _, elem := range list {
			rc, _ := elem.(map[string]any)
			pid, err := model.ParseElementID(rc["propertyId"])
			if err == nil && pid == id {
				return rc
			}
		}
	}
	if c, ok := prop["constraints"].(map[string]any); ok && len(c) > 0 {
		return c
	}
	if name, ok := prop["typeName"].(string); ok {
		if dt, ok := d.datatypes[name]; ok {
			if c, ok := dt["constraints"].(map[string]any); ok && len(c) > 0 {
				return c
			}
		}
	}
	return nil
}

func violates(raw constraint.Raw, value any) string {
	p, err := constraint.Upcast(raw)
	if err != nil {
		return ""
	}
	switch c := p.(type) {
	case constraint.Number:
		v, ok := value.(float64)
		if !ok {
			return fmt.Sprintf("expected number, got %T", value)
		}
		if c.Minimum != nil && v < *c.Minimum {
			return "below minimum"
		}
		if c.Maximum != nil && v > *c.Maximum {
			return "above maximum"
		}
		if c.Step != nil {
			base := 0.0
			if c.Minimum != nil {
				base = *c.Minimum
			}
			q := (v - base) / *c.Step
			if math.Abs(q-math.Round(q)) > 1e-9 {
				return "not a multiple of step"
			}
		}
	case constraint.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("expected string, got %T", value)
		}
		if c.MaxCharacters != nil && utf8.RuneCountInString(s) > *c.MaxCharacters {
			return "too many characters"
		}
		if c.Pattern != nil {
			re, err := regexp.Compile(*c.Pattern)
			if err == nil && !re.MatchString(s) {
				return "does not match pattern"
			}
		}
	}
	return ""
}

// GetMemberDescriptors implements ncp.Client.
func (d *FakeDevice) GetMemberDescriptors(ctx context.Context, oid int, recurse bool) ([]model.Descriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	obj, ok := d.objects[oid]
	if !ok || !model.IsDerived(obj.ClassID, model.ClassNcBlock) {
		return nil, &ncp.DeviceError{Status: ncp.StatusBadOID, Message: "not a block", OID: oid, Method: "GetMemberDescriptors"}
	}
	list := d.memberDescriptors(obj, recurse)
	out := make([]model.Descriptor, len(list))
	for i, elem := range list {
		out[i] = elem.(map[string]any)
	}
	return out, nil
}

func (d *FakeDevice) memberDescriptors(block *FakeObject, recurse bool) []any {
	out := []any{}
	for _, oid := range block.Members {
		m := d.objects[oid]
		out = append(out, map[string]any{
			"description": nil,
			"role":        m.Role,
			"oid":         float64(m.OID),
			"constantOid": true,
			"classId":     classIDValue(m.ClassID),
			"userLabel":   m.Properties[model.PropUserLabel],
			"owner":       float64(m.Owner),
		})
		if recurse && model.IsDerived(m.ClassID, model.ClassNcBlock) {
			out = append(out, d.memberDescriptors(m, true)...)
		}
	}
	return out
}

// GetControlClass implements ncp.Client. With includeInherited the
// properties of every ancestor class are appended after the class's own.
func (d *FakeDevice) GetControlClass(ctx context.Context, oid int, classID model.ClassID, includeInherited bool) (model.Descriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	desc, ok := d.classes[classID.String()]
	if !ok {
		return nil, &ncp.DeviceError{Status: ncp.StatusParameterError, Message: "unknown class " + classID.String(), OID: oid, Method: "GetControlClass"}
	}
	out := make(model.Descriptor, len(desc))
	for k, v := range desc {
		out[k] = v
	}
	if !includeInherited {
		return out, nil
	}

	var props []any
	for n := len(classID); n > 0; n-- {
		c, ok := d.classes[classID[:n].String()]
		if !ok {
			continue
		}
		if list, ok := c["properties"].([]any); ok {
			props = append(props, list...)
		}
	}
	out["properties"] = props
	return out, nil
}

func (d *FakeDevice) findProperty(classID model.ClassID, id model.PropertyID) (model.Descriptor, bool) {
	for n := len(classID); n > 0; n-- {
		c, ok := d.classes[classID[:n].String()]
		if !ok {
			continue
		}
		list, _ := c["properties"].([]any)
		for _, elem := range list {
			p, _ := elem.(map[string]any)
			pid, err := model.ParseElementID(p["id"])
			if err == nil && pid == id {
				return p, true
			}
		}
	}
	return nil, false
}

func sortedValues(m map[string]model.Descriptor) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

var _ ncp.Client = (*FakeDevice)(nil)
