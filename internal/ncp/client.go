// Package ncp is the control-channel side of the harness: the Client
// capability the device-model code is written against, and the IS-12
// WebSocket adapter that implements it for a real device.
//
// Every call is a blocking request/response pair with a bounded wait. No
// call is retried; a failed read or write is returned to the caller as is.
package ncp

import (
	"context"

	"github.com/roach88/ms05probe/internal/model"
)

// Client is the control channel to the device under test.
type Client interface {
	// Open connects to url. Opening an already open client is a no-op.
	Open(ctx context.Context, url string) error

	// Close disconnects. Closing a closed client is a no-op.
	Close() error

	// GetProperty invokes NcObject Get on oid.
	GetProperty(ctx context.Context, oid int, id model.PropertyID) (any, error)

	// SetProperty invokes NcObject Set on oid.
	SetProperty(ctx context.Context, oid int, id model.PropertyID, value any) error

	// GetMemberDescriptors invokes NcBlock GetMemberDescriptors on a block.
	GetMemberDescriptors(ctx context.Context, oid int, recurse bool) ([]model.Descriptor, error)

	// GetControlClass invokes NcClassManager GetControlClass on the class
	// manager at oid.
	GetControlClass(ctx context.Context, oid int, classID model.ClassID, includeInherited bool) (model.Descriptor, error)
}

// DescriptorList converts a decoded JSON array of objects.
func DescriptorList(v any) ([]model.Descriptor, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, &ProtocolError{Message: "expected array of descriptors", Value: v}
	}
	out := make([]model.Descriptor, 0, len(list))
	for _, elem := range list {
		d, ok := elem.(map[string]any)
		if !ok {
			return nil, &ProtocolError{Message: "expected descriptor object", Value: elem}
		}
		out = append(out, d)
	}
	return out, nil
}
