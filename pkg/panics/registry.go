// Package panics holds the crash-notification slot shared by every connection
// of a JSON-RPC listener.
//
// A connection whose processing unwinds abnormally (a panic inside the
// dispatcher or anywhere else in the connection goroutine) notifies the
// registry while it is being released. The registry invokes the currently
// registered Handler, if any. The listener itself never calls Notify.
package panics

import (
	"runtime/debug"
	"sync"

	"github.com/marmos91/dittorpc/internal/logger"
)

// Handler observes connection crashes.
type Handler interface {
	Invoke()
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func()

func (f HandlerFunc) Invoke() { f() }

// Registry is an optional Handler guarded by a mutex.
//
// Set and Notify hold the same lock, so a registration is never observed
// half-done and a running callback never interleaves with a replacement.
// The zero value is an empty registry ready to use.
type Registry struct {
	mu      sync.Mutex
	handler Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Set replaces the registered handler. A nil handler empties the slot.
func (r *Registry) Set(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handler = h
}

// SetFunc is Set for plain functions. A nil fn empties the slot.
func (r *Registry) SetFunc(fn func()) {
	if fn == nil {
		r.Set(nil)
		return
	}
	r.Set(HandlerFunc(fn))
}

// Registered reports whether a handler is currently installed.
func (r *Registry) Registered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.handler != nil
}

// Notify invokes the registered handler and reports whether one ran.
// It is a no-op when the registry is empty.
//
// Notify runs inside a goroutine that is already unwinding, so a panic
// raised by the handler is recovered and logged here instead of escaping.
func (r *Registry) Notify() (invoked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.handler == nil {
		return false
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Panic handler panicked: %v\n%s", rec, debug.Stack())
		}
	}()

	invoked = true
	r.handler.Invoke()
	return invoked
}
