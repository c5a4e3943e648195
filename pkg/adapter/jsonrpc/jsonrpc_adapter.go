package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittorpc/internal/logger"
	"github.com/marmos91/dittorpc/internal/ratelimiter"
	"github.com/marmos91/dittorpc/pkg/cors"
	rpc "github.com/marmos91/dittorpc/pkg/jsonrpc"
	"github.com/marmos91/dittorpc/pkg/metrics"
	"github.com/marmos91/dittorpc/pkg/panics"
)

// Server is a JSON-RPC HTTP listener. It implements adapter.Adapter.
//
// Each accepted connection carries exactly one request: the response is
// written, then the connection is closed. Connections are served by their own
// goroutine and share the dispatcher, the CORS policy and the panic registry.
//
// Shutdown flow:
//  1. Close()/Stop() called or the Serve context cancelled
//  2. Listener closed (no new connections)
//  3. Wait for active connections to complete (up to ShutdownTimeout)
//  4. Force-close any remaining connections after timeout
//
// Thread safety:
// All methods are safe for concurrent use. Shutdown is guarded by sync.Once,
// so the listener is released exactly once however many times Close or Stop
// are called.
type Server struct {
	config     Config
	dispatcher rpc.Dispatcher
	policy     cors.Policy
	panics     *panics.Registry
	metrics    metrics.RPCMetrics

	// limiter throttles Accept. nil when rate limiting is disabled.
	limiter *ratelimiter.RateLimiter

	listenerMu sync.Mutex
	listener   net.Listener

	// activeConns tracks connection goroutines for graceful shutdown
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}

	connCount atomic.Int32

	// connSemaphore limits concurrent connections if MaxConnections > 0
	connSemaphore chan struct{}

	// shutdownCtx is cancelled during shutdown. Connections that have not
	// dispatched yet give up; dispatch itself is never interrupted.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps connection IDs to net.Conn for forced closure
	activeConnections sync.Map

	// serveDone is closed when a background Serve started by Start returns.
	serveDone chan struct{}
	serveErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a Server that is not yet listening. Call Serve (or use Start)
// to accept connections.
//
// Parameters:
//   - config: Listener configuration. Zero values are replaced by defaults.
//   - dispatcher: Handles each complete request body. Must not be nil.
//   - policy: CORS policy applied to every response
//   - m: Metrics collector. nil disables metrics.
//
// Returns:
//   - *Server: Ready to Serve
//   - error: nil dispatcher or invalid configuration
func New(config Config, dispatcher rpc.Dispatcher, policy cors.Policy, m metrics.RPCMetrics) (*Server, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher cannot be nil")
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC config: %w", err)
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("JSON-RPC connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("JSON-RPC connection limit: unlimited")
	}

	var limiter *ratelimiter.RateLimiter
	if config.RateLimit.ConnectionsPerSecond > 0 {
		limiter = ratelimiter.New(config.RateLimit.ConnectionsPerSecond, config.RateLimit.Burst)
		logger.Debug("JSON-RPC accept rate limit: %d/s (burst %d)",
			config.RateLimit.ConnectionsPerSecond, config.RateLimit.Burst)
	}

	if m == nil {
		m = metrics.NewNoopRPCMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &Server{
		config:         config,
		dispatcher:     dispatcher,
		policy:         policy,
		panics:         panics.NewRegistry(),
		metrics:        m,
		limiter:        limiter,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}, nil
}

// Start binds addr ("host:port") with the default configuration and begins
// serving in the background.
//
// Parameters:
//   - addr: Address to bind. Port 0 asks the OS for a free port.
//   - dispatcher: Handles each complete request body
//   - policy: CORS policy applied to every response
//
// Returns:
//   - *Server: Listening and serving; stop it with Close
//   - *StartError: ErrorKindIO when the socket cannot be bound,
//     ErrorKindOther for an unusable address
func Start(addr string, dispatcher rpc.Dispatcher, policy cors.Policy) (*Server, error) {
	cfg := DefaultConfig()
	if err := cfg.SetAddress(addr); err != nil {
		return nil, otherError(err)
	}
	return StartWithConfig(cfg, dispatcher, policy, nil)
}

// StartWithConfig is Start with a full configuration and optional metrics.
//
// Returns *StartError on failure: ErrorKindIO when binding fails,
// ErrorKindOther when the configuration is rejected.
func StartWithConfig(config Config, dispatcher rpc.Dispatcher, policy cors.Policy, m metrics.RPCMetrics) (*Server, error) {
	s, err := New(config, dispatcher, policy, m)
	if err != nil {
		return nil, otherError(err)
	}

	if err := s.listen(); err != nil {
		s.cancelRequests()
		return nil, ioError(err)
	}

	s.serveDone = make(chan struct{})
	go func() {
		defer close(s.serveDone)
		s.serveErr = s.Serve(s.shutdownCtx)
	}()

	return s, nil
}

// listen binds the listener once.
func (s *Server) listen() error {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	if s.listener != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return err
	}
	s.listener = listener

	logger.Info("JSON-RPC server listening on %s", listener.Addr())
	logger.Debug("JSON-RPC config: max_connections=%d read_timeout=%v write_timeout=%v max_request_size=%d cors=%s",
		s.config.MaxConnections, s.config.ReadTimeout, s.config.WriteTimeout, s.config.MaxRequestSize, s.policy)
	return nil
}

func (s *Server) getListener() net.Listener {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	return s.listener
}

// SetPanicHandler replaces the callback run when a connection crashes.
// A nil handler removes it. It may be called at any time; connections
// crashing afterwards observe the new handler.
func (s *Server) SetPanicHandler(h panics.Handler) {
	s.panics.Set(h)
	s.logPanicHandler()
}

// SetPanicFunc is SetPanicHandler for plain functions.
func (s *Server) SetPanicFunc(fn func()) {
	s.panics.SetFunc(fn)
	s.logPanicHandler()
}

func (s *Server) logPanicHandler() {
	if s.panics.Registered() {
		logger.Debug("JSON-RPC panic handler installed")
	} else {
		logger.Debug("JSON-RPC panic handler removed")
	}
}

// Serve binds the listener if Start did not, then accepts connections until
// the context is cancelled or Stop/Close is called.
//
// Returns nil when every connection finished within ShutdownTimeout, an error
// if some had to be force-closed.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.listen(); err != nil {
		return fmt.Errorf("failed to create JSON-RPC listener on %s: %w", s.config.Address(), err)
	}
	listener := s.getListener()

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("JSON-RPC shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(s.shutdownCtx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		if s.limiter != nil {
			throttled, err := s.limiter.Admit(s.shutdownCtx)
			if throttled {
				s.metrics.RecordThrottled()
			}
			if err != nil {
				s.releaseSlot()
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			s.releaseSlot()

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting JSON-RPC connection: %v", err)
				if errors.Is(err, net.ErrClosed) {
					s.initiateShutdown()
					return s.gracefulShutdown()
				}
				continue
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)

		conn := NewRPCConnection(s, tcpConn)
		s.activeConnections.Store(conn.ID(), tcpConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("JSON-RPC connection %s accepted from %s (active: %d)",
			conn.ID(), tcpConn.RemoteAddr(), currentConns)

		go func(c *RPCConnection) {
			defer func() {
				s.activeConnections.Delete(c.ID())

				s.activeConns.Done()
				s.connCount.Add(-1)
				s.releaseSlot()

				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)

				logger.Debug("JSON-RPC connection %s closed (active: %d)", c.ID(), currentConns)
			}()

			c.Serve(s.shutdownCtx)
		}(conn)
	}
}

func (s *Server) releaseSlot() {
	if s.connSemaphore != nil {
		<-s.connSemaphore
	}
}

// initiateShutdown closes the shutdown channel and the listener, and cancels
// the connection context. Safe to call multiple times.
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("JSON-RPC shutdown initiated")

		close(s.shutdown)

		if listener := s.getListener(); listener != nil {
			if err := listener.Close(); err != nil {
				logger.Debug("Error closing JSON-RPC listener: %v", err)
			}
		}

		s.cancelRequests()
	})
}

// gracefulShutdown waits for active connections up to ShutdownTimeout, then
// force-closes the rest.
func (s *Server) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("JSON-RPC graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.config.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		logger.Info("JSON-RPC graceful shutdown complete: all connections closed")
		return nil

	case <-timer.C:
		remaining := s.connCount.Load()
		logger.Warn("JSON-RPC shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("JSON-RPC shutdown timeout: %d connections force-closed", remaining)
	}
}

// forceCloseConnections closes every tracked connection. Pending reads and
// writes fail immediately and the connection goroutines unwind.
func (s *Server) forceCloseConnections() {
	logger.Info("Force-closing active JSON-RPC connections")

	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		id := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection %s: %v", id, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
			logger.Debug("Force-closed connection %s", id)
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates shutdown and waits until every connection is gone or ctx
// expires. Safe to call multiple times and concurrently with Serve.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		ctx = context.Background()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("JSON-RPC shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

// Close stops accepting connections, releases the listener and waits for the
// in-flight connections (force-closing them after ShutdownTimeout). Only the
// first call does any work; later calls return the same result.
//
// Returns nil when every connection finished in time, an error if some had
// to be force-closed.
//
// Thread safety:
// Safe to call concurrently and from several goroutines; all of them block
// until the first call completes.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.initiateShutdown()

		if s.serveDone != nil {
			<-s.serveDone
			s.closeErr = s.serveErr
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			s.forceCloseConnections()
			s.closeErr = err
		}
	})
	return s.closeErr
}

// logMetrics periodically logs the active connection count until ctx is
// cancelled.
func (s *Server) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.limiter != nil {
				logger.Info("JSON-RPC metrics: active_connections=%d accept_tokens=%.1f",
					s.connCount.Load(), s.limiter.Tokens())
			} else {
				logger.Info("JSON-RPC metrics: active_connections=%d", s.connCount.Load())
			}
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (s *Server) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Addr returns the bound address, or nil before the listener exists.
func (s *Server) Addr() net.Addr {
	if listener := s.getListener(); listener != nil {
		return listener.Addr()
	}
	return nil
}

// Port returns the bound TCP port, or the configured port before binding.
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.config.Port
}

// Protocol returns "JSON-RPC".
func (s *Server) Protocol() string {
	return "JSON-RPC"
}
