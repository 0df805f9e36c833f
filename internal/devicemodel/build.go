package devicemodel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/ncp"
)

// Builder materializes a Graph from a device through an ncp.Client.
type Builder struct {
	client ncp.Client
	logger *slog.Logger
}

// NewBuilder creates a builder. A nil logger discards output.
func NewBuilder(client ncp.Client, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Builder{client: client, logger: logger}
}

// BuildGraph builds the whole device model from the root block.
func (b *Builder) BuildGraph(ctx context.Context) (*Graph, error) {
	node, err := b.Build(ctx, model.ClassNcBlock, model.RootBlockOID, "root")
	if node == nil {
		return nil, err
	}
	root, ok := node.(*Block)
	if !ok {
		return nil, fmt.Errorf("root oid %d is not a block", model.RootBlockOID)
	}
	return &Graph{Root: root}, err
}

// Build materializes the node for classID at oid and everything below it.
//
// A property the device fails to return aborts the subtree of the node
// being built; that node is left out of its parent and building carries on
// with its siblings. Every such failure is collected, and a non-nil
// QueryErrors is returned alongside whatever part of the graph could be
// built. The returned node is nil only when the requested node itself
// could not be built.
func (b *Builder) Build(ctx context.Context, classID model.ClassID, oid int, role string) (Node, error) {
	var trail QueryErrors
	node := b.build(ctx, classID, oid, role, role, make(map[int]bool), &trail)
	if len(trail) > 0 {
		return node, trail
	}
	return node, nil
}

// building holds the oids of the blocks on the current path. A block that
// lists one of them as a member is reported and not descended into.
func (b *Builder) build(ctx context.Context, classID model.ClassID, oid int, role, path string, building map[int]bool, trail *QueryErrors) Node {
	obj := Object{ClassID: classID, OID: oid, Role: role}

	switch Classify(classID) {
	case KindBlock:
		if building[oid] {
			*trail = append(*trail, &QueryError{Path: path, Property: model.PropBlockMembers, Err: fmt.Errorf("oid %d: %w", oid, ErrCycle)})
			return nil
		}
		building[oid] = true
		defer delete(building, oid)

		raw, ok := b.get(ctx, oid, model.PropBlockMembers, path, trail)
		if !ok {
			return nil
		}
		members, err := ncp.DescriptorList(raw)
		if err != nil {
			*trail = append(*trail, &QueryError{Path: path, Property: model.PropBlockMembers, Err: err})
			return nil
		}
		block := &Block{Object: obj, MemberDescriptors: members}
		for _, m := range members {
			child, err := memberIdentity(m)
			if err != nil {
				*trail = append(*trail, &QueryError{Path: path, Property: model.PropBlockMembers, Err: err})
				continue
			}
			if n := b.build(ctx, child.ClassID, child.OID, child.Role, path+"."+child.Role, building, trail); n != nil {
				block.Children = append(block.Children, n)
			}
		}
		return block

	case KindClassManager:
		classes, okClasses := b.descriptors(ctx, oid, model.PropControlClasses, path, trail)
		datatypes, okDatatypes := b.descriptors(ctx, oid, model.PropDatatypes, path, trail)
		if !okClasses || !okDatatypes {
			return nil
		}
		return &ClassManager{
			Object:              obj,
			ClassDescriptors:    model.IndexDescriptors(classes),
			DatatypeDescriptors: model.IndexDescriptors(datatypes),
		}

	default:
		return &obj
	}
}

func (b *Builder) get(ctx context.Context, oid int, id model.PropertyID, path string, trail *QueryErrors) (any, bool) {
	v, err := b.client.GetProperty(ctx, oid, id)
	if err != nil {
		b.logger.Warn("device model query failed",
			"path", path,
			"oid", oid,
			"property", id.String(),
			"error", err,
		)
		*trail = append(*trail, &QueryError{Path: path, Property: id, Err: err})
		return nil, false
	}
	return v, true
}

func (b *Builder) descriptors(ctx context.Context, oid int, id model.PropertyID, path string, trail *QueryErrors) ([]model.Descriptor, bool) {
	raw, ok := b.get(ctx, oid, id, path, trail)
	if !ok {
		return nil, false
	}
	list, err := ncp.DescriptorList(raw)
	if err != nil {
		*trail = append(*trail, &QueryError{Path: path, Property: id, Err: err})
		return nil, false
	}
	return list, true
}

func memberIdentity(d model.Descriptor) (Object, error) {
	classID, err := model.ParseClassID(d["classId"])
	if err != nil {
		return Object{}, fmt.Errorf("member descriptor: %w", err)
	}
	oid, ok := d["oid"].(float64)
	if !ok {
		return Object{}, fmt.Errorf("member descriptor: oid: expected number, got %T", d["oid"])
	}
	role, _ := d["role"].(string)
	return Object{ClassID: classID, OID: int(oid), Role: role}, nil
}

// Graph is a built device model, shared read-only for the rest of a run.
type Graph struct {
	Root *Block
}

// Manager returns the single node under the root block of classID or a
// class derived from it.
func (g *Graph) Manager(classID model.ClassID) (Node, error) {
	members := g.Root.FindMembersByClassID(classID, true)
	switch len(members) {
	case 0:
		return nil, fmt.Errorf("%s: %w", classID, ErrNotFound)
	case 1:
		return members[0], nil
	default:
		oids := make([]string, len(members))
		for i, m := range members {
			oids[i] = fmt.Sprint(m.Base().OID)
		}
		return nil, fmt.Errorf("%s found at oids %s: %w", classID, strings.Join(oids, ", "), ErrSingletonViolation)
	}
}

// ClassManager returns the device's class manager.
func (g *Graph) ClassManager() (*ClassManager, error) {
	node, err := g.Manager(model.ClassNcClassManager)
	if err != nil {
		return nil, err
	}
	cm, ok := node.(*ClassManager)
	if !ok {
		return nil, fmt.Errorf("oid %d: class manager node is a %s", node.Base().OID, node.Kind())
	}
	return cm, nil
}
