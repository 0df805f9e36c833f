// Package resolve finds every property of a device model that carries a
// constraint at any tier.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/ms05probe/internal/constraint"
	"github.com/roach88/ms05probe/internal/devicemodel"
	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/ncp"
)

// Record is one constrained property.
type Record struct {
	OID        int              `json:"oid"`
	Role       string           `json:"role"`
	PropertyID model.PropertyID `json:"property_id"`
	// Name is "<block path>: <class>: <property>", for display.
	Name string `json:"name"`

	constraint.Sources
}

// MemberError reports a block member whose constraints could not be read.
// The member is skipped and resolution carries on.
type MemberError struct {
	Path string
	OID  int
	Err  error
}

func (e *MemberError) Error() string {
	return fmt.Sprintf("%s: oid %d: %s", e.Path, e.OID, ncp.Detail(e.Err))
}

func (e *MemberError) Unwrap() error {
	return e.Err
}

// Resolver walks blocks and collects constrained properties.
type Resolver struct {
	client       ncp.Client
	classManager *devicemodel.ClassManager
	logger       *slog.Logger
}

// New creates a resolver. Class descriptors are fetched from the class
// manager's oid and datatypes are looked up in its catalog.
func New(client ncp.Client, classManager *devicemodel.ClassManager, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{client: client, classManager: classManager, logger: logger}
}

// FindConstrainedProperties returns the constrained properties of the
// direct members of block, then of every block below it in pre-order.
//
// A failure reading one member's class or runtime constraints is returned
// as a *MemberError in the joined error; records from the other members are
// still returned.
func (r *Resolver) FindConstrainedProperties(ctx context.Context, block *devicemodel.Block) ([]Record, error) {
	var errs []error
	records := r.walk(ctx, block, nil, &errs)
	return records, errors.Join(errs...)
}

func (r *Resolver) walk(ctx context.Context, block *devicemodel.Block, parents []string, errs *[]error) []Record {
	path := append(parents[:len(parents):len(parents)], block.Role)
	label := strings.Join(path, ": ")

	members, err := r.client.GetMemberDescriptors(ctx, block.OID, false)
	if err != nil {
		*errs = append(*errs, &MemberError{Path: label, OID: block.OID, Err: err})
	}

	var out []Record
	for _, m := range members {
		recs, err := r.member(ctx, m, label)
		if err != nil {
			r.logger.Warn("skipping member", "path", label, "error", err)
			*errs = append(*errs, err)
			continue
		}
		out = append(out, recs...)
	}

	for _, child := range block.Children {
		if sub, ok := child.(*devicemodel.Block); ok {
			out = append(out, r.walk(ctx, sub, path, errs)...)
		}
	}
	return out
}

func (r *Resolver) member(ctx context.Context, m model.Descriptor, label string) ([]Record, error) {
	classID, err := model.ParseClassID(m["classId"])
	if err != nil {
		return nil, &MemberError{Path: label, Err: err}
	}
	oidValue, ok := m["oid"].(float64)
	if !ok {
		return nil, &MemberError{Path: label, Err: fmt.Errorf("oid: expected number, got %T", m["oid"])}
	}
	oid := int(oidValue)
	role, _ := m["role"].(string)

	class, err := r.client.GetControlClass(ctx, r.classManager.OID, classID, true)
	if err != nil {
		return nil, &MemberError{Path: label, OID: oid, Err: err}
	}
	runtime, err := r.client.GetProperty(ctx, oid, model.PropRuntimePropertyConstraints)
	if err != nil {
		return nil, &MemberError{Path: label, OID: oid, Err: err}
	}
	runtimeList, _ := runtime.([]any)

	className, _ := class["name"].(string)
	props, _ := class["properties"].([]any)

	var out []Record
	for _, elem := range props {
		prop, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		id, err := model.ParseElementID(prop["id"])
		if err != nil {
			return nil, &MemberError{Path: label, OID: oid, Err: fmt.Errorf("%s property id: %w", className, err)}
		}

		var src constraint.Sources
		if typeName, ok := prop["typeName"].(string); ok && typeName != "" {
			if dt, ok := r.classManager.Datatype(typeName); ok {
				src.Datatype = asRaw(dt["constraints"])
			}
		}
		if readOnly, _ := prop["isReadOnly"].(bool); !readOnly {
			src.Property = asRaw(prop["constraints"])
		}
		for _, rc := range runtimeList {
			entry, ok := rc.(map[string]any)
			if !ok {
				continue
			}
			if pid, err := model.ParseElementID(entry["propertyId"]); err == nil && pid == id {
				src.Runtime = entry
			}
		}

		if !src.Any() {
			continue
		}
		name, _ := prop["name"].(string)
		r.logger.Debug("constrained property",
			"oid", oid,
			"role", role,
			"property", id.String(),
		)
		out = append(out, Record{
			OID:        oid,
			Role:       role,
			PropertyID: id,
			Name:       label + ": " + className + ": " + name,
			Sources:    src,
		})
	}
	return out, nil
}

func asRaw(v any) constraint.Raw {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	return m
}
