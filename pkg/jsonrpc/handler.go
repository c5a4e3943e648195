package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Dispatcher is the contract between the HTTP transport and a JSON-RPC engine.
//
// HandleRequest receives the complete request body and returns the serialized
// response, or ok == false when nothing must be sent back. It must be safe for
// concurrent use: every connection of a listener calls the same dispatcher.
// The context only carries connection information; it is never cancelled
// while a call is running.
type Dispatcher interface {
	HandleRequest(ctx context.Context, request string) (response string, ok bool)
}

// MethodFunc executes a call and returns its result.
type MethodFunc func(ctx context.Context, params Params) (any, error)

// NotificationFunc executes a notification. Notifications have no result.
type NotificationFunc func(ctx context.Context, params Params)

// IoHandler is a Dispatcher backed by a registry of named methods and
// notifications.
type IoHandler struct {
	mu            sync.RWMutex
	methods       map[string]MethodFunc
	notifications map[string]NotificationFunc
}

// NewIoHandler creates an empty registry.
func NewIoHandler() *IoHandler {
	return &IoHandler{
		methods:       make(map[string]MethodFunc),
		notifications: make(map[string]NotificationFunc),
	}
}

// AddMethod registers fn under name, replacing any previous method.
func (h *IoHandler) AddMethod(name string, fn MethodFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.methods[name] = fn
}

// AddNotification registers fn under name, replacing any previous
// notification handler.
func (h *IoHandler) AddNotification(name string, fn NotificationFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.notifications[name] = fn
}

// Methods returns the registered method names, sorted.
func (h *IoHandler) Methods() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.methods))
	for name := range h.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// isNotification reports whether the request carries no id member at all.
// "id": null is a call.
func (r *request) isNotification() bool {
	return r.ID == nil
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

var nullID = json.RawMessage("null")

func failure(id json.RawMessage, err *Error) *response {
	if id == nil {
		id = nullID
	}
	return &response{JSONRPC: "2.0", Error: err, ID: id}
}

// HandleRequest implements Dispatcher.
func (h *IoHandler) HandleRequest(ctx context.Context, body string) (string, bool) {
	raw := bytes.TrimSpace([]byte(body))

	if len(raw) > 0 && raw[0] == '[' {
		return h.handleBatch(ctx, raw)
	}

	resp := h.handleSingle(ctx, raw)
	if resp == nil {
		return "", false
	}
	return encode(resp)
}

func (h *IoHandler) handleBatch(ctx context.Context, raw []byte) (string, bool) {
	var calls []json.RawMessage
	if err := json.Unmarshal(raw, &calls); err != nil {
		return encode(failure(nil, errParse()))
	}
	if len(calls) == 0 {
		return encode(failure(nil, errInvalidRequest()))
	}

	responses := make([]*response, 0, len(calls))
	for _, call := range calls {
		if resp := h.handleSingle(ctx, call); resp != nil {
			responses = append(responses, resp)
		}
	}

	if len(responses) == 0 {
		return "", false
	}
	return encode(responses)
}

// handleSingle executes one request object and returns nil for notifications.
func (h *IoHandler) handleSingle(ctx context.Context, raw []byte) *response {
	if !json.Valid(raw) {
		return failure(nil, errParse())
	}

	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return failure(nil, errInvalidRequest())
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return failure(req.ID, errInvalidRequest())
	}

	if req.isNotification() {
		h.notify(ctx, &req)
		return nil
	}

	return h.call(ctx, &req)
}

func (h *IoHandler) notify(ctx context.Context, req *request) {
	h.mu.RLock()
	fn, ok := h.notifications[req.Method]
	h.mu.RUnlock()

	if ok {
		fn(ctx, Params(req.Params))
	}
}

func (h *IoHandler) call(ctx context.Context, req *request) *response {
	h.mu.RLock()
	fn, ok := h.methods[req.Method]
	h.mu.RUnlock()

	if !ok {
		return failure(req.ID, errMethodNotFound(req.Method))
	}

	result, err := fn(ctx, Params(req.Params))
	if err != nil {
		return failure(req.ID, toError(err))
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return failure(req.ID, NewError(CodeInternalError, fmt.Sprintf("encode result: %v", err)))
	}
	return &response{JSONRPC: "2.0", Result: encoded, ID: req.ID}
}

func encode(v any) (string, bool) {
	out, err := json.Marshal(v)
	if err != nil {
		// Only reachable if an error's Data cannot be encoded.
		out, _ = json.Marshal(failure(nil, NewError(CodeInternalError, "Internal error")))
	}
	return string(out), true
}
