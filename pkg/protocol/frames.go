// Package protocol defines the WebSocket wire protocol between the gateway
// and connected clients (agent backends, control CLIs, dashboards).
package protocol

import "encoding/json"

// ProtocolVersion is bumped on breaking frame changes.
const ProtocolVersion = 1

// Frame types.
const (
	FrameRequest  = "req"
	FrameResponse = "res"
	FrameEvent    = "event"
)

// RequestFrame is a client → server method invocation.
type RequestFrame struct {
	Type   string          `json:"type"` // "req"
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseFrame is the server's reply to a RequestFrame.
type ResponseFrame struct {
	Type   string      `json:"type"` // "res"
	ID     string      `json:"id"`
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo carries a machine-readable error code plus a human message.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventFrame is a server → client push.
type EventFrame struct {
	Type    string      `json:"type"` // "event"
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEvent creates an event frame.
func NewEvent(name string, payload interface{}) *EventFrame {
	return &EventFrame{Type: FrameEvent, Event: name, Payload: payload}
}

// OKResponse creates a success response for a request id.
func OKResponse(id string, result interface{}) ResponseFrame {
	return ResponseFrame{Type: FrameResponse, ID: id, OK: true, Result: result}
}

// ErrResponse creates an error response for a request id.
func ErrResponse(id, code, message string) ResponseFrame {
	return ResponseFrame{Type: FrameResponse, ID: id, OK: false, Error: &ErrorInfo{Code: code, Message: message}}
}

// Error codes.
const (
	ErrUnauthorized  = "unauthorized"
	ErrUnknownMethod = "unknown_method"
	ErrBadParams     = "bad_params"
	ErrRateLimited   = "rate_limited"
	ErrInternal      = "internal"
	ErrNotFound      = "not_found"
)
