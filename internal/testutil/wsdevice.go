package testutil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/roach88/ms05probe/internal/model"
	"github.com/roach88/ms05probe/internal/ncp"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// WSDevice serves a FakeDevice over an IS-12 WebSocket.
type WSDevice struct {
	Server *httptest.Server
	Device *FakeDevice

	// Silent drops commands for these methods without responding.
	Silent map[model.MethodID]bool
}

// URL returns the ws:// address of the control endpoint.
func (w *WSDevice) URL() string {
	return "ws" + strings.TrimPrefix(w.Server.URL, "http") + "/x-nmos/ncp/v1.0"
}

// ServeWS starts a WebSocket server for dev, closed with the test.
func ServeWS(t *testing.T, dev *FakeDevice) *WSDevice {
	t.Helper()
	w := &WSDevice{Device: dev, Silent: make(map[model.MethodID]bool)}
	w.Server = httptest.NewServer(http.HandlerFunc(w.handle))
	t.Cleanup(w.Server.Close)
	return w
}

func (w *WSDevice) handle(rw http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var msg ncp.CommandMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.MessageType != ncp.MessageCommand {
			_ = conn.WriteJSON(ncp.InboundMessage{
				MessageType:  ncp.MessageError,
				Status:       ncp.StatusBadCommandFormat,
				ErrorMessage: "unsupported message type",
			})
			continue
		}

		resp := ncp.InboundMessage{MessageType: ncp.MessageCommandResponse}
		for _, cmd := range msg.Commands {
			if w.Silent[cmd.MethodID] {
				continue
			}
			resp.Responses = append(resp.Responses, ncp.CommandResponse{
				Handle: cmd.Handle,
				Result: w.dispatch(r.Context(), cmd),
			})
		}
		if len(resp.Responses) == 0 {
			continue
		}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (w *WSDevice) dispatch(ctx context.Context, cmd ncp.Command) ncp.MethodResult {
	var (
		value any
		err   error
	)
	switch cmd.MethodID {
	case model.MethodGet:
		var id model.PropertyID
		if id, err = model.ParseElementID(cmd.Arguments["id"]); err == nil {
			value, err = w.Device.GetProperty(ctx, cmd.OID, id)
		}
	case model.MethodSet:
		var id model.PropertyID
		if id, err = model.ParseElementID(cmd.Arguments["id"]); err == nil {
			err = w.Device.SetProperty(ctx, cmd.OID, id, cmd.Arguments["value"])
		}
	case model.MethodGetMemberDescriptors:
		recurse, _ := cmd.Arguments["recurse"].(bool)
		var list []model.Descriptor
		list, err = w.Device.GetMemberDescriptors(ctx, cmd.OID, recurse)
		value = list
	case model.MethodGetControlClass:
		var classID model.ClassID
		if classID, err = model.ParseClassID(cmd.Arguments["classId"]); err == nil {
			inherited, _ := cmd.Arguments["includeInherited"].(bool)
			value, err = w.Device.GetControlClass(ctx, cmd.OID, classID, inherited)
		}
	default:
		return ncp.MethodResult{Status: ncp.StatusMethodNotImplemented, ErrorMessage: "method not implemented"}
	}

	if err != nil {
		var de *ncp.DeviceError
		if errors.As(err, &de) {
			return ncp.MethodResult{Status: de.Status, ErrorMessage: de.Message}
		}
		return ncp.MethodResult{Status: ncp.StatusBadCommandFormat, ErrorMessage: err.Error()}
	}
	return ncp.MethodResult{Status: ncp.StatusOK, Value: value}
}
