package ncp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/ms05probe/internal/model"
)

// IS-12 message types.
const (
	MessageCommand              = 0
	MessageCommandResponse      = 1
	MessageNotification         = 2
	MessageSubscription         = 3
	MessageSubscriptionResponse = 4
	MessageError                = 5
)

const wsWriteWait = 10 * time.Second

// CommandMessage is an IS-12 command message.
type CommandMessage struct {
	MessageType int       `json:"messageType"`
	Commands    []Command `json:"commands"`
}

// Command is one method invocation within a command message.
type Command struct {
	Handle    int            `json:"handle"`
	OID       int            `json:"oid"`
	MethodID  model.MethodID `json:"methodId"`
	Arguments map[string]any `json:"arguments"`
}

// InboundMessage covers every message a device sends: command responses,
// notifications, subscription responses and protocol errors.
type InboundMessage struct {
	MessageType  int               `json:"messageType"`
	Responses    []CommandResponse `json:"responses,omitempty"`
	Status       Status            `json:"status,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}

// CommandResponse carries the result for one command handle.
type CommandResponse struct {
	Handle int          `json:"handle"`
	Result MethodResult `json:"result"`
}

// MethodResult is an NcMethodResult, with the value of the Get/method
// variants folded in.
type MethodResult struct {
	Status       Status `json:"status"`
	Value        any    `json:"value,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type commandOutcome struct {
	result MethodResult
	err    error
}

// WSClient implements Client over an IS-12 WebSocket.
//
// A reader goroutine routes responses to the waiting call by handle, so a
// call that times out leaves the connection usable for the next one.
type WSClient struct {
	timeout time.Duration
	dialer  *websocket.Dialer
	logger  *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Conn
	handle  int
	pending map[int]chan commandOutcome
	done    chan struct{}
	readErr error
}

// NewWSClient creates a client whose calls wait at most timeout for a response.
func NewWSClient(timeout time.Duration, logger *slog.Logger) *WSClient {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &WSClient{
		timeout: timeout,
		dialer:  websocket.DefaultDialer,
		logger:  logger,
	}
}

// Open dials url.
func (c *WSClient) Open(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("ncp: dial %s: %w", url, err)
	}
	c.conn = conn
	c.pending = make(map[int]chan commandOutcome)
	c.done = make(chan struct{})
	c.readErr = nil
	go c.readLoop(conn, c.done)

	c.logger.Info("control channel open", "url", url)
	return nil
}

// Close sends a close frame and waits for the reader to exit.
func (c *WSClient) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
	c.writeMu.Unlock()

	err := conn.Close()
	<-done
	c.logger.Info("control channel closed")
	return err
}

func (c *WSClient) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("discarding undecodable message", "error", err)
			continue
		}

		switch msg.MessageType {
		case MessageCommandResponse:
			for _, resp := range msg.Responses {
				c.deliver(resp.Handle, commandOutcome{result: resp.Result})
			}
		case MessageError:
			// Protocol errors carry no handle; fail whatever is in flight.
			c.mu.Lock()
			handles := make([]int, 0, len(c.pending))
			for h := range c.pending {
				handles = append(handles, h)
			}
			c.mu.Unlock()
			for _, h := range handles {
				c.deliver(h, commandOutcome{err: &DeviceError{Status: msg.Status, Message: msg.ErrorMessage}})
			}
		default:
			c.logger.Debug("ignoring message", "message_type", msg.MessageType)
		}
	}
}

func (c *WSClient) deliver(handle int, out commandOutcome) {
	c.mu.Lock()
	ch, ok := c.pending[handle]
	delete(c.pending, handle)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("response for unknown handle", "handle", handle)
		return
	}
	ch <- out
}

func (c *WSClient) invoke(ctx context.Context, oid int, method model.MethodID, args map[string]any) (any, error) {
	c.mu.Lock()
	conn, done := c.conn, c.done
	if conn == nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.handle++
	handle := c.handle
	ch := make(chan commandOutcome, 1)
	c.pending[handle] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, handle)
		c.mu.Unlock()
	}()

	msg := CommandMessage{
		MessageType: MessageCommand,
		Commands: []Command{{
			Handle:    handle,
			OID:       oid,
			MethodID:  method,
			Arguments: args,
		}},
	}

	c.writeMu.Lock()
	err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err == nil {
		err = conn.WriteJSON(msg)
	}
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ncp: write command: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		if out.err != nil {
			if de, ok := out.err.(*DeviceError); ok {
				de.OID = oid
				de.Method = MethodName(method)
			}
			return nil, out.err
		}
		if !out.result.Status.OK() {
			return nil, &DeviceError{
				Status:  out.result.Status,
				Message: out.result.ErrorMessage,
				OID:     oid,
				Method:  MethodName(method),
			}
		}
		return out.result.Value, nil
	case <-timer.C:
		return nil, fmt.Errorf("%s on oid %d: %w", MethodName(method), oid, ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		c.mu.Lock()
		readErr := c.readErr
		c.mu.Unlock()
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrClosed, readErr)
		}
		return nil, ErrClosed
	}
}

// GetProperty invokes NcObject Get.
func (c *WSClient) GetProperty(ctx context.Context, oid int, id model.PropertyID) (any, error) {
	return c.invoke(ctx, oid, model.MethodGet, map[string]any{"id": id})
}

// SetProperty invokes NcObject Set.
func (c *WSClient) SetProperty(ctx context.Context, oid int, id model.PropertyID, value any) error {
	_, err := c.invoke(ctx, oid, model.MethodSet, map[string]any{"id": id, "value": value})
	return err
}

// GetMemberDescriptors invokes NcBlock GetMemberDescriptors.
func (c *WSClient) GetMemberDescriptors(ctx context.Context, oid int, recurse bool) ([]model.Descriptor, error) {
	v, err := c.invoke(ctx, oid, model.MethodGetMemberDescriptors, map[string]any{"recurse": recurse})
	if err != nil {
		return nil, err
	}
	return DescriptorList(v)
}

// GetControlClass invokes NcClassManager GetControlClass.
func (c *WSClient) GetControlClass(ctx context.Context, oid int, classID model.ClassID, includeInherited bool) (model.Descriptor, error) {
	v, err := c.invoke(ctx, oid, model.MethodGetControlClass, map[string]any{
		"classId":          []int(classID),
		"includeInherited": includeInherited,
	})
	if err != nil {
		return nil, err
	}
	d, ok := v.(map[string]any)
	if !ok {
		return nil, &ProtocolError{Message: "expected class descriptor object", Value: v}
	}
	return d, nil
}

// MethodName names the standard methods for diagnostics.
func MethodName(id model.MethodID) string {
	switch id {
	case model.MethodGet:
		return "Get"
	case model.MethodSet:
		return "Set"
	case model.MethodGetMemberDescriptors:
		return "GetMemberDescriptors"
	case model.MethodGetControlClass:
		return "GetControlClass"
	case model.MethodGetDatatype:
		return "GetDatatype"
	default:
		return "method " + id.String()
	}
}
