package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittorpc/internal/logger"
	"github.com/marmos91/dittorpc/pkg/adapter"
)

// ErrAlreadyServed is returned by Serve when it is called a second time.
var ErrAlreadyServed = errors.New("server: Serve already called")

// defaultStopTimeout bounds the Stop() calls issued during shutdown.
const defaultStopTimeout = 30 * time.Second

// DittoServer manages the lifecycle of the protocol adapters of one process:
// typically the JSON-RPC transport and the metrics endpoint.
//
// Lifecycle:
//  1. Creation: New()
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: Context cancellation triggers graceful shutdown of all adapters
//
// Thread safety:
// DittoServer is safe for concurrent use. Serve() may only be called once.
//
// Example usage:
//
//	server := New(30 * time.Second)
//	server.AddAdapter(jsonrpc.New(rpcConfig, dispatcher, policy, rpcMetrics))
//	server.AddAdapter(metrics.NewServer(metrics.ServerConfig{Port: 9090}))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := server.Serve(ctx); err != nil && err != context.Canceled {
//	    log.Fatal(err)
//	}
type DittoServer struct {
	// adapters contains all registered protocol adapters
	adapters []adapter.Adapter

	// mu protects the adapters slice and the served flag
	mu sync.RWMutex

	served bool

	stopTimeout time.Duration
}

// New creates an empty DittoServer.
//
// Parameters:
//   - stopTimeout: Bounds the Stop() calls made during shutdown. Zero or a
//     negative value means 30s.
//
// Returns a server with no adapters; register them with AddAdapter().
func New(stopTimeout time.Duration) *DittoServer {
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	return &DittoServer{
		adapters:    make([]adapter.Adapter, 0, 2),
		stopTimeout: stopTimeout,
	}
}

// AddAdapter registers a protocol adapter.
//
// Duplicate protocols and port conflicts are rejected. Port 0 (OS assigned)
// never conflicts.
//
// Parameters:
//   - a: The adapter to register. Must not be nil.
//
// Returns:
//   - nil on success
//   - error if the protocol is already registered or the port is taken
//
// Thread safety:
// Safe to call concurrently. Panics if the adapter is nil or Serve() has
// already been called.
func (s *DittoServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter",
				port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)

	return nil
}

// Serve starts all registered adapters and blocks until the context is cancelled
// or an adapter fails.
//
// On shutdown every adapter receives Stop() in reverse registration order,
// then Serve waits for all of them to return.
//
// Parameters:
//   - ctx: Controls the server lifecycle. Cancellation triggers shutdown.
//
// Returns:
//   - context.Canceled (or the context's error) on signal-driven shutdown
//   - the first adapter error if an adapter failed
//   - ErrAlreadyServed on a second call
//
// Thread safety:
// May only be called once. Adapters() may be called concurrently.
func (s *DittoServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true

	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting DittoServer with %d adapter(s)", len(adapters))

	// Buffered so failing adapters never block.
	errChan := make(chan adapterError, len(adapters))

	var wg sync.WaitGroup

	startTime := time.Now()
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			if err := a.Serve(ctx); err != nil {
				// context.Canceled is expected during shutdown
				if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped gracefully", protocol)
				}
			} else {
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	logger.Debug("Adapters launched in %v", time.Since(startTime))

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("DittoServer stopped gracefully")

	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters calls Stop() on every adapter in reverse registration order
// under a shared timeout. Errors are logged and do not interrupt the sequence.
func (s *DittoServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stop signal sent", protocol)
		}
	}
}

// Adapters returns a snapshot of currently registered adapters.
func (s *DittoServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
