package router

import (
	"context"
	"encoding/json"
)

// Message is the inbound request envelope sent by transient contexts
// (popup, options page, sandboxed script host).
type Message struct {
	// Action selects the registered handler.
	Action string `json:"action"`
	// Params is the action-specific payload, decoded by the handler.
	Params json.RawMessage `json:"params,omitempty"`
	// Target optionally names the consumer the message is addressed to,
	// so several listeners can share one transport.
	Target string `json:"target,omitempty"`
	// CallbackID correlates out-of-band replies for contexts that cannot
	// use request/response semantics directly.
	CallbackID string `json:"callbackId,omitempty"`
}

// Response is the outbound envelope. Exactly one of Data and Error is
// meaningful, selected by Success.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK wraps a handler result into a success response.
func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Fail wraps an error message into a failure response.
func Fail(message string) Response {
	return Response{Success: false, Error: message}
}

// Sender describes the origin context of a message.
type Sender struct {
	TabID       int    `json:"tabId,omitempty"`
	FrameID     int    `json:"frameId,omitempty"`
	ExtensionID string `json:"extensionId,omitempty"`
	URL         string `json:"url,omitempty"`
	Origin      string `json:"origin,omitempty"`
}

// Handler implements the domain logic for one or more actions.
type Handler interface {
	// Handle executes the action against params and returns the raw
	// result. Errors become {success:false} responses at the router
	// boundary.
	Handle(ctx context.Context, params json.RawMessage, sender Sender) (any, error)
	// CanHandle reports whether this handler serves action. The router
	// does not call it on the dispatch path; it exists for capability
	// checks when aggregating handlers by feature.
	CanHandle(action string) bool
}

// HandlerFunc adapts a function to the Handler interface for handlers that
// serve exactly one action.
type HandlerFunc func(ctx context.Context, params json.RawMessage, sender Sender) (any, error)

// Handle implements Handler by calling f.
func (f HandlerFunc) Handle(ctx context.Context, params json.RawMessage, sender Sender) (any, error) {
	return f(ctx, params, sender)
}

// CanHandle implements Handler; a bare func serves whatever action it was
// registered under.
func (f HandlerFunc) CanHandle(string) bool { return true }
