package ncp

import (
	"errors"
	"fmt"
)

// Status is an NcMethodStatus value.
type Status int

const (
	StatusOK                     Status = 200
	StatusPropertyDeprecated     Status = 298
	StatusMethodDeprecated       Status = 299
	StatusBadCommandFormat       Status = 400
	StatusUnauthorized           Status = 401
	StatusBadOID                 Status = 404
	StatusReadonly               Status = 405
	StatusInvalidRequest         Status = 406
	StatusConflict               Status = 409
	StatusBufferOverflow         Status = 413
	StatusIndexOutOfBounds       Status = 414
	StatusParameterError         Status = 417
	StatusLocked                 Status = 423
	StatusDeviceError            Status = 500
	StatusMethodNotImplemented   Status = 501
	StatusPropertyNotImplemented Status = 502
	StatusNotReady               Status = 503
	StatusTimeout                Status = 504
)

// OK reports whether the status is a success (2xx).
func (s Status) OK() bool {
	return s >= 200 && s < 300
}

var (
	// ErrTimeout is returned when no response arrives within the message timeout.
	ErrTimeout = errors.New("ncp: timed out waiting for response")

	// ErrClosed is returned for calls on a client that is not open.
	ErrClosed = errors.New("ncp: connection closed")
)

// DeviceError is a non-success status returned by the device, either in a
// command response or in a protocol error message.
type DeviceError struct {
	Status  Status
	Message string
	OID     int
	Method  string
}

func (e *DeviceError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("%s on oid %d: status %d: %s", e.Method, e.OID, int(e.Status), e.Message)
	}
	return fmt.Sprintf("status %d: %s", int(e.Status), e.Message)
}

// ProtocolError reports a response that does not have the expected shape.
type ProtocolError struct {
	Message string
	Value   any
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ncp: malformed response: %s (got %T)", e.Message, e.Value)
}

// IsDeviceError reports whether err carries a device status.
// Uses errors.As to handle wrapped errors.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// Detail renders the structured part of err for diagnostics: the device
// status and message when present, otherwise the error text.
func Detail(err error) string {
	var de *DeviceError
	if errors.As(err, &de) {
		return fmt.Sprintf("status %d: %s", int(de.Status), de.Message)
	}
	return err.Error()
}
