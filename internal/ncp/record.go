package ncp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/ms05probe/internal/model"
)

// Exchange is one request/response pair with the device.
type Exchange struct {
	Seq       int64          `json:"seq"`
	OID       int            `json:"oid"`
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments,omitempty"`
	// Status is the device status, zero when no response was received.
	Status Status `json:"status"`
	Value  any    `json:"value,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Recorder persists exchanges.
type Recorder interface {
	RecordExchange(ctx context.Context, ex Exchange) error
}

// Sequencer stamps exchanges with increasing sequence numbers.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock for exchange ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// RecordingClient writes every call it forwards to a Recorder. A recorder
// failure is logged and does not affect the call's result.
type RecordingClient struct {
	Client
	rec    Recorder
	seq    Sequencer
	logger *slog.Logger
}

// NewRecordingClient wraps inner. A nil seq uses a fresh Clock.
func NewRecordingClient(inner Client, rec Recorder, seq Sequencer, logger *slog.Logger) *RecordingClient {
	if seq == nil {
		seq = NewClock()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RecordingClient{Client: inner, rec: rec, seq: seq, logger: logger}
}

func (c *RecordingClient) record(ctx context.Context, oid int, method model.MethodID, args map[string]any, value any, err error) {
	ex := Exchange{
		Seq:       c.seq.Next(),
		OID:       oid,
		Method:    MethodName(method),
		Arguments: args,
	}
	if err != nil {
		ex.Error = err.Error()
		var de *DeviceError
		if errors.As(err, &de) {
			ex.Status = de.Status
			ex.Error = de.Message
		}
	} else {
		ex.Status = StatusOK
		ex.Value = value
	}
	if recErr := c.rec.RecordExchange(ctx, ex); recErr != nil {
		c.logger.Warn("failed to record exchange", "seq", ex.Seq, "method", ex.Method, "error", recErr)
	}
}

// GetProperty forwards and records.
func (c *RecordingClient) GetProperty(ctx context.Context, oid int, id model.PropertyID) (any, error) {
	v, err := c.Client.GetProperty(ctx, oid, id)
	c.record(ctx, oid, model.MethodGet, map[string]any{"id": id.String()}, v, err)
	return v, err
}

// SetProperty forwards and records.
func (c *RecordingClient) SetProperty(ctx context.Context, oid int, id model.PropertyID, value any) error {
	err := c.Client.SetProperty(ctx, oid, id, value)
	c.record(ctx, oid, model.MethodSet, map[string]any{"id": id.String(), "value": value}, nil, err)
	return err
}

// GetMemberDescriptors forwards and records.
func (c *RecordingClient) GetMemberDescriptors(ctx context.Context, oid int, recurse bool) ([]model.Descriptor, error) {
	v, err := c.Client.GetMemberDescriptors(ctx, oid, recurse)
	c.record(ctx, oid, model.MethodGetMemberDescriptors, map[string]any{"recurse": recurse}, len(v), err)
	return v, err
}

// GetControlClass forwards and records.
func (c *RecordingClient) GetControlClass(ctx context.Context, oid int, classID model.ClassID, includeInherited bool) (model.Descriptor, error) {
	v, err := c.Client.GetControlClass(ctx, oid, classID, includeInherited)
	var name any
	if v != nil {
		name = v["name"]
	}
	c.record(ctx, oid, model.MethodGetControlClass, map[string]any{
		"classId":          classID.String(),
		"includeInherited": includeInherited,
	}, name, err)
	return v, err
}
