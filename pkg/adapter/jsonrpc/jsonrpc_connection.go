package jsonrpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittorpc/internal/logger"
	"github.com/marmos91/dittorpc/internal/protocol/rpchttp"
	rpc "github.com/marmos91/dittorpc/pkg/jsonrpc"
	"github.com/marmos91/dittorpc/pkg/metrics"
)

// badRequestResponse is sent when the request head cannot be parsed.
const badRequestResponse = "HTTP/1.1 400 Bad Request\r\nContent-Length: 0\r\nConnection: close\r\n\r\n"

// continueResponse is the interim response to "Expect: 100-continue".
const continueResponse = "HTTP/1.1 100 Continue\r\n\r\n"

// RPCConnection drives one accepted connection through the rpchttp state
// machine: parse the request head, feed body reads and response writes to
// the handler, close.
type RPCConnection struct {
	server *Server
	conn   net.Conn
	id     string

	bytesIn  int64
	bytesOut int64
}

// NewRPCConnection wraps an accepted connection of server.
//
// Parameters:
//   - server: the owning listener (dispatcher, CORS policy, panic registry, limits)
//   - conn: the accepted TCP connection; Serve closes it
//
// Returns a connection with a fresh uuid used as its ID in logs and in the
// dispatch context.
func NewRPCConnection(server *Server, conn net.Conn) *RPCConnection {
	return &RPCConnection{
		server: server,
		conn:   conn,
		id:     uuid.NewString(),
	}
}

// ID returns the connection identifier used in logs.
func (c *RPCConnection) ID() string { return c.id }

// Serve handles the single exchange carried by the connection.
//
// The connection is always closed on return. A panic anywhere in the
// exchange (most likely in the dispatcher) is recovered here: the handler is
// released as crashed, which notifies the panic registry, and the listener
// keeps serving other connections.
func (c *RPCConnection) Serve(ctx context.Context) {
	start := time.Now()
	clientAddr := c.conn.RemoteAddr().String()

	handler := rpchttp.NewServerHandler(c.server.dispatcher, c.server.policy, c.server.panics)
	outcome := metrics.OutcomeAbandoned
	status := 0

	defer func() {
		if r := recover(); r != nil {
			handled := handler.Release(true)
			outcome = metrics.OutcomePanicked
			c.server.metrics.RecordPanic(handled)
			logger.Error("Panic in JSON-RPC connection %s from %s (handler invoked: %v): %v\n%s",
				c.id, clientAddr, handled, r, debug.Stack())
		} else {
			handler.Release(false)
		}

		_ = c.conn.Close()

		m := c.server.metrics
		m.RecordBytesTransferred(metrics.DirectionIn, c.bytesIn)
		m.RecordBytesTransferred(metrics.DirectionOut, c.bytesOut)
		m.RecordConnectionClosed(outcome)
		if handler.Kind() != rpchttp.KindUnknown {
			m.RecordRequest(handler.Kind().String(), status, time.Since(start))
		}
	}()

	select {
	case <-ctx.Done():
		logger.Debug("Connection %s from %s closed due to server shutdown", c.id, clientAddr)
		return
	default:
	}

	if err := c.setReadDeadline(); err != nil {
		logger.Warn("Failed to set read deadline for %s: %v", clientAddr, err)
	}

	br := bufio.NewReader(c.conn)
	req, err := http.ReadRequest(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			logger.Debug("Connection %s from %s closed by client before sending a request", c.id, clientAddr)
			return
		}
		if isTimeout(err) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrUnexpectedEOF) {
			c.logAbandoned(err, clientAddr)
			return
		}
		logger.Debug("Malformed request head on %s from %s: %v", c.id, clientAddr, err)
		outcome = metrics.OutcomeRejected
		status = http.StatusBadRequest
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
		_, _ = io.WriteString(c.conn, badRequestResponse)
		return
	}

	logger.Debug("Request on %s from %s: %s %s", c.id, clientAddr, req.Method, req.URL)

	body := http.MaxBytesReader(nil, req.Body, c.server.config.MaxRequestSize)
	defer body.Close()

	// Dispatch must not observe shutdown: once the body is complete the
	// request runs to the end.
	dispatchCtx := context.WithoutCancel(rpc.WithConnInfo(ctx, rpc.ConnInfo{ID: c.id, RemoteAddr: clientAddr}))
	dec := &bodyDecoder{r: body, n: &c.bytesIn}

	next := handler.OnRequest(req.Method)
	if next == rpchttp.NextRead && expectsContinue(req) {
		// The client holds the body back until it sees the interim response.
		if err := c.writeContinue(); err != nil {
			c.logAbandoned(err, clientAddr)
			return
		}
	}
	for next == rpchttp.NextRead {
		if ctx.Err() != nil && handler.RequestLen() == 0 {
			logger.Debug("Connection %s abandoned: server shutting down", c.id)
			return
		}

		dispatchStart := time.Now()
		next = handler.OnReadable(dispatchCtx, dec)
		if handler.Dispatched() {
			_, answered := handler.Body()
			c.server.metrics.RecordDispatch(time.Since(dispatchStart), answered)
		}
	}

	if next != rpchttp.NextWrite {
		c.logAbandoned(handler.Err(), clientAddr)
		return
	}

	res := rpchttp.NewResponse()
	next = handler.OnResponse(res)
	status = res.Status

	if err := c.setWriteDeadline(); err != nil {
		logger.Warn("Failed to set write deadline for %s: %v", clientAddr, err)
	}
	if err := writeHead(c.conn, res); err != nil {
		c.logAbandoned(err, clientAddr)
		return
	}

	enc := &connEncoder{w: c.conn, n: &c.bytesOut}
	for next == rpchttp.NextWrite {
		next = handler.OnWritable(enc)
	}

	if err := handler.Err(); err != nil {
		c.logAbandoned(err, clientAddr)
		return
	}
	outcome = metrics.OutcomeCompleted
}

func (c *RPCConnection) logAbandoned(err error, clientAddr string) {
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		logger.Debug("Connection %s from %s ended without a response", c.id, clientAddr)
	case errors.As(err, &tooLarge):
		logger.Warn("Request body on %s from %s exceeds %d bytes", c.id, clientAddr, tooLarge.Limit)
	case isTimeout(err):
		logger.Debug("Connection %s from %s timed out: %v", c.id, clientAddr, err)
	default:
		logger.Debug("Connection %s from %s abandoned: %v", c.id, clientAddr, err)
	}
}

func (c *RPCConnection) writeContinue() error {
	if err := c.setWriteDeadline(); err != nil {
		return err
	}
	_, err := io.WriteString(c.conn, continueResponse)
	return err
}

// expectsContinue reports whether the client waits for 100 Continue before
// sending the body. Only HTTP/1.1 clients may ask for it.
func expectsContinue(req *http.Request) bool {
	return req.ProtoAtLeast(1, 1) && strings.EqualFold(req.Header.Get("Expect"), "100-continue")
}

func (c *RPCConnection) setReadDeadline() error {
	if c.server.config.ReadTimeout <= 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout))
}

func (c *RPCConnection) setWriteDeadline() error {
	if c.server.config.WriteTimeout <= 0 {
		return nil
	}
	return c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
}

// writeHead serializes the response head. Content-Length and
// Connection: close are added to the handler's header set.
func writeHead(w io.Writer, res *rpchttp.Response) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", res.Status, http.StatusText(res.Status)); err != nil {
		return err
	}

	header := res.Header.Clone()
	header.Set("Content-Length", strconv.FormatInt(res.ContentLength, 10))
	header.Set("Connection", "close")
	if err := header.Write(bw); err != nil {
		return err
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// bodyDecoder adapts the request body to rpchttp.Decoder.
type bodyDecoder struct {
	r io.Reader
	n *int64
}

func (d *bodyDecoder) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	*d.n += int64(n)
	if n == 0 && err == nil {
		// A zero read means end of body to the handler; ask again instead.
		return 0, rpchttp.ErrWouldBlock
	}
	return n, err
}

// connEncoder adapts the connection to rpchttp.Encoder.
type connEncoder struct {
	w io.Writer
	n *int64
}

func (e *connEncoder) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	*e.n += int64(n)
	return n, err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
