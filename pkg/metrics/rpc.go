package metrics

import "time"

// Connection outcomes reported to RecordConnectionClosed.
const (
	OutcomeCompleted = "completed"
	OutcomeAbandoned = "abandoned"
	OutcomeRejected  = "bad_request"
	OutcomePanicked  = "panicked"
)

// Directions reported to RecordBytesTransferred.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// RPCMetrics provides observability for the JSON-RPC transport.
//
// The interface is optional: when the adapter receives nil it falls back to
// NewNoopRPCMetrics.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewRPCMetrics()
//	srv, err := jsonrpc.StartWithConfig(cfg, dispatcher, policy, m)
//
//	// Without metrics (no-op)
//	srv, err := jsonrpc.StartWithConfig(cfg, dispatcher, policy, nil)
type RPCMetrics interface {
	// RecordRequest records a finished exchange.
	//
	// Parameters:
	//   - kind: "preflight", "submission" or "rejected"
	//   - status: HTTP status code sent back (0 if no head was written)
	//   - duration: time from accept to release
	RecordRequest(kind string, status int, duration time.Duration)

	// RecordDispatch records one dispatcher invocation and whether it
	// produced a response.
	RecordDispatch(duration time.Duration, answered bool)

	// RecordBytesTransferred records body bytes read ("in") or written ("out").
	RecordBytesTransferred(direction string, bytes int64)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter for the
	// given outcome (see the Outcome constants).
	RecordConnectionClosed(outcome string)

	// RecordConnectionForceClosed counts connections closed by a shutdown
	// timeout.
	RecordConnectionForceClosed()

	// RecordThrottled counts accepts delayed by the connection rate limiter.
	RecordThrottled()

	// RecordPanic counts connection crashes and whether a panic handler ran.
	RecordPanic(handled bool)
}

// NewNoopRPCMetrics returns an RPCMetrics that discards everything.
func NewNoopRPCMetrics() RPCMetrics {
	return noopRPCMetrics{}
}

type noopRPCMetrics struct{}

func (noopRPCMetrics) RecordRequest(kind string, status int, duration time.Duration) {}
func (noopRPCMetrics) RecordDispatch(duration time.Duration, answered bool)          {}
func (noopRPCMetrics) RecordBytesTransferred(direction string, bytes int64)          {}
func (noopRPCMetrics) SetActiveConnections(count int32)                              {}
func (noopRPCMetrics) RecordConnectionAccepted()                                     {}
func (noopRPCMetrics) RecordConnectionClosed(outcome string)                         {}
func (noopRPCMetrics) RecordConnectionForceClosed()                                  {}
func (noopRPCMetrics) RecordThrottled()                                              {}
func (noopRPCMetrics) RecordPanic(handled bool)                                      {}
