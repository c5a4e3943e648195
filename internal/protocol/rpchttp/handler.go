package rpchttp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/marmos91/dittorpc/pkg/cors"
	rpc "github.com/marmos91/dittorpc/pkg/jsonrpc"
	"github.com/marmos91/dittorpc/pkg/panics"
)

// readChunkSize is the buffer offered to the decoder on each readable event.
const readChunkSize = 4096

// ServerHandler is the state of a single HTTP exchange.
//
// A handler is driven by exactly one goroutine and is not safe for
// concurrent use. It holds a shared reference to the listener's dispatcher
// and panic registry, and a copy of its CORS policy.
type ServerHandler struct {
	dispatcher rpc.Dispatcher
	policy     cors.Policy
	panics     *panics.Registry

	state State
	kind  Kind

	request strings.Builder
	buf     []byte

	response    []byte
	hasResponse bool
	writePos    int

	dispatched bool
	released   bool
	err        error
}

// NewServerHandler creates a handler in StateAwaitingMethod. registry may be
// nil, in which case abnormal releases notify nobody.
func NewServerHandler(dispatcher rpc.Dispatcher, policy cors.Policy, registry *panics.Registry) *ServerHandler {
	return &ServerHandler{
		dispatcher: dispatcher,
		policy:     policy,
		panics:     registry,
		state:      StateAwaitingMethod,
	}
}

// State returns the current lifecycle position.
func (h *ServerHandler) State() State { return h.state }

// Kind returns the request classification decided by OnRequest.
func (h *ServerHandler) Kind() Kind { return h.kind }

// Dispatched reports whether the dispatcher has been called.
func (h *ServerHandler) Dispatched() bool { return h.dispatched }

// Err returns the hard error that ended the exchange early, if any.
func (h *ServerHandler) Err() error { return h.err }

// RequestLen returns the number of body bytes accumulated so far.
func (h *ServerHandler) RequestLen() int { return h.request.Len() }

// Written returns the number of response body bytes flushed so far.
func (h *ServerHandler) Written() int { return h.writePos }

// Body returns the pending response body and whether one was produced.
func (h *ServerHandler) Body() ([]byte, bool) { return h.response, h.hasResponse }

// OnRequest classifies the request by its HTTP method.
//
// OPTIONS produces an empty response immediately and POST starts reading the
// body. Anything else is answered with 405 and no body. Calls after the
// first one are ignored.
func (h *ServerHandler) OnRequest(method string) Next {
	if h.state != StateAwaitingMethod {
		return h.next()
	}

	switch method {
	case http.MethodOptions:
		h.kind = KindPreflight
		h.setResponse("")
		h.state = StateWritingResponse
	case http.MethodPost:
		h.kind = KindSubmission
		h.state = StateReadingBody
	default:
		h.kind = KindRejected
		h.state = StateWritingResponse
	}
	return h.next()
}

// OnReadable consumes whatever the decoder has available.
//
// A read of zero bytes (or io.EOF) ends the body and dispatches it. A positive
// read keeps the handler reading. ErrWouldBlock leaves everything untouched
// and asks for another readable event. Any other error ends the connection
// without dispatching.
func (h *ServerHandler) OnReadable(ctx context.Context, dec Decoder) Next {
	if h.state != StateReadingBody {
		return h.next()
	}

	if h.buf == nil {
		h.buf = make([]byte, readChunkSize)
	}

	n, err := dec.Read(h.buf)
	if n > 0 {
		h.request.Write(h.buf[:n])
	}

	switch {
	case errors.Is(err, ErrWouldBlock):
		return NextRead
	case err != nil && !errors.Is(err, io.EOF):
		return h.fail(err)
	case n > 0 && err == nil:
		return NextRead
	}

	h.dispatch(ctx)
	return h.next()
}

// dispatch hands the body to the dispatcher exactly once. A panic in the
// dispatcher leaves the handler in StateDispatching and propagates.
func (h *ServerHandler) dispatch(ctx context.Context) {
	if h.dispatched {
		return
	}
	h.dispatched = true
	h.state = StateDispatching
	h.buf = nil

	if result, ok := h.dispatcher.HandleRequest(ctx, h.request.String()); ok {
		h.setResponse(result + "\n")
	}
	h.state = StateWritingResponse
}

// OnResponse fills in the response head: the fixed header set, the
// Access-Control-Allow-Origin header when the policy has one, the status and
// the content length. Without a response body the status is 405.
func (h *ServerHandler) OnResponse(res *Response) Next {
	if res.Header == nil {
		res.Header = make(http.Header)
	}
	for name, values := range responseHeaders(h.policy) {
		res.Header[name] = values
	}

	if h.hasResponse {
		res.Status = http.StatusOK
		res.ContentLength = int64(len(h.response))
	} else {
		res.Status = http.StatusMethodNotAllowed
		res.ContentLength = 0
	}

	if h.state != StateWritingResponse {
		return h.next()
	}
	if !h.hasResponse || h.writePos == len(h.response) {
		h.state = StateDone
		return NextEnd
	}
	return NextWrite
}

// OnWritable writes the unwritten suffix of the body.
//
// Partial writes advance the cursor and ask for another writable event.
// ErrWouldBlock keeps the cursor in place. Any other error ends the
// connection.
func (h *ServerHandler) OnWritable(enc Encoder) Next {
	if h.state != StateWritingResponse {
		return h.next()
	}
	if !h.hasResponse || h.writePos == len(h.response) {
		h.state = StateDone
		return NextEnd
	}

	n, err := enc.Write(h.response[h.writePos:])
	if n < 0 || n > len(h.response)-h.writePos {
		return h.fail(io.ErrShortWrite)
	}
	h.writePos += n

	if err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return NextWrite
		}
		return h.fail(err)
	}

	if h.writePos == len(h.response) {
		h.state = StateDone
		return NextEnd
	}
	return NextWrite
}

// Release ends the handler's life. When panicking is true the panic registry
// is notified; it returns whether a registered handler ran. Only the first
// call has any effect.
func (h *ServerHandler) Release(panicking bool) bool {
	if h.released {
		return false
	}
	h.released = true
	h.state = StateDone

	if !panicking || h.panics == nil {
		return false
	}
	return h.panics.Notify()
}

func (h *ServerHandler) setResponse(body string) {
	h.response = []byte(body)
	h.hasResponse = true
	h.writePos = 0
}

func (h *ServerHandler) fail(err error) Next {
	h.err = err
	h.state = StateDone
	return NextEnd
}

// next maps the current state to the action the engine should take.
func (h *ServerHandler) next() Next {
	switch h.state {
	case StateReadingBody:
		return NextRead
	case StateWritingResponse:
		return NextWrite
	default:
		return NextEnd
	}
}
