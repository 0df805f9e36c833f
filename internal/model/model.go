// Package model holds the MS-05 vocabulary shared by the harness: class
// identifiers, element identifiers for properties and methods, and the
// standard ids the device model exposes.
//
// # Class identity
//
// A class id is an ordered sequence of integers, most-significant first.
// Class B derives from class A iff A's sequence is a prefix of B's:
//
//	NcObject       [1]
//	NcBlock        [1, 1]
//	NcManager      [1, 3]
//	NcClassManager [1, 3, 2]
//
// There is no language-level subclassing; derivation is always a prefix test.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ClassID identifies a control class.
type ClassID []int

// String renders the id in dotted form ("1.3.2"), which is also the key the
// class manager descriptors are indexed by.
func (c ClassID) String() string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}

// Equal reports whether both ids are the same sequence.
func (c ClassID) Equal(other ClassID) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a leading subsequence of c.
// Every id has the empty id and itself as prefixes.
func (c ClassID) HasPrefix(prefix ClassID) bool {
	if len(prefix) > len(c) {
		return false
	}
	for i := range prefix {
		if c[i] != prefix[i] {
			return false
		}
	}
	return true
}

// IsDerived reports whether class is base itself or a specialization of it.
func IsDerived(class, base ClassID) bool {
	return class.HasPrefix(base)
}

// ParseClassID converts a decoded JSON value (a list of numbers) to a ClassID.
func ParseClassID(v any) (ClassID, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("class id: expected array, got %T", v)
	}
	id := make(ClassID, len(list))
	for i, elem := range list {
		n, err := toInt(elem)
		if err != nil {
			return nil, fmt.Errorf("class id[%d]: %w", i, err)
		}
		id[i] = n
	}
	return id, nil
}

// Standard class ids.
var (
	ClassNcObject        = ClassID{1}
	ClassNcBlock         = ClassID{1, 1}
	ClassNcWorker        = ClassID{1, 2}
	ClassNcManager       = ClassID{1, 3}
	ClassNcDeviceManager = ClassID{1, 3, 1}
	ClassNcClassManager  = ClassID{1, 3, 2}
)

// RootBlockOID is the oid of the root block of every device model.
const RootBlockOID = 1

// Descriptor is a decoded MS-05 descriptor object (class, datatype, block
// member, property or constraint descriptor).
type Descriptor = map[string]any

// IndexDescriptors keys class manager descriptors by dotted class id when
// the descriptor carries a classId, otherwise by name.
func IndexDescriptors(list []Descriptor) map[string]Descriptor {
	out := make(map[string]Descriptor, len(list))
	for _, d := range list {
		if raw, ok := d["classId"]; ok && raw != nil {
			if id, err := ParseClassID(raw); err == nil && len(id) > 0 {
				out[id.String()] = d
				continue
			}
		}
		name, _ := d["name"].(string)
		out[name] = d
	}
	return out
}
