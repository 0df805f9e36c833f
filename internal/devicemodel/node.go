// Package devicemodel reconstructs a device's object graph from the
// control channel.
//
// Nodes come in three variants chosen by Classify from the class id alone:
// blocks own ordered children, the class manager carries the class and
// datatype catalogs, everything else is a plain object leaf. Nodes are
// immutable once built, and a built Graph is read-only shared state for
// the rest of a run.
package devicemodel

import (
	"github.com/roach88/ms05probe/internal/model"
)

// Kind is the node variant.
type Kind int

const (
	KindObject Kind = iota
	KindBlock
	KindClassManager
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindClassManager:
		return "class manager"
	default:
		return "object"
	}
}

// Classify picks the node variant for a class id.
func Classify(classID model.ClassID) Kind {
	switch {
	case model.IsDerived(classID, model.ClassNcBlock):
		return KindBlock
	case model.IsDerived(classID, model.ClassNcClassManager):
		return KindClassManager
	default:
		return KindObject
	}
}

// Node is any object in the graph.
type Node interface {
	Base() *Object
	Kind() Kind
}

// Object is the identity every node carries.
type Object struct {
	ClassID model.ClassID
	OID     int
	Role    string
}

func (o *Object) Base() *Object { return o }
func (o *Object) Kind() Kind    { return KindObject }

// Block owns an ordered sequence of child nodes.
type Block struct {
	Object
	MemberDescriptors []model.Descriptor
	Children          []Node
}

func (b *Block) Kind() Kind { return KindBlock }

// FindMembersByClassID returns every node below b, at any depth, whose
// class equals classID or, with includeDerived, specializes it. Results
// are in depth-first pre-order.
func (b *Block) FindMembersByClassID(classID model.ClassID, includeDerived bool) []Node {
	var out []Node
	for _, child := range b.Children {
		id := child.Base().ClassID
		if id.Equal(classID) || (includeDerived && model.IsDerived(id, classID)) {
			out = append(out, child)
		}
		if sub, ok := child.(*Block); ok {
			out = append(out, sub.FindMembersByClassID(classID, includeDerived)...)
		}
	}
	return out
}

// Blocks returns b followed by every block below it in pre-order.
func (b *Block) Blocks() []*Block {
	out := []*Block{b}
	for _, child := range b.Children {
		if sub, ok := child.(*Block); ok {
			out = append(out, sub.Blocks()...)
		}
	}
	return out
}

// ClassManager carries the device's class and datatype catalogs.
type ClassManager struct {
	Object
	// ClassDescriptors is keyed by dotted class id.
	ClassDescriptors map[string]model.Descriptor
	// DatatypeDescriptors is keyed by datatype name.
	DatatypeDescriptors map[string]model.Descriptor
}

func (m *ClassManager) Kind() Kind { return KindClassManager }

// Datatype returns the datatype descriptor for name.
func (m *ClassManager) Datatype(name string) (model.Descriptor, bool) {
	d, ok := m.DatatypeDescriptors[name]
	return d, ok
}
