package jsonrpc

import "context"

// ConnInfo describes the connection a request arrived on.
type ConnInfo struct {
	// ID is unique per accepted connection.
	ID string
	// RemoteAddr is the peer address as reported by the listener.
	RemoteAddr string
}

type connInfoKey struct{}

// WithConnInfo returns a copy of ctx carrying info.
func WithConnInfo(ctx context.Context, info ConnInfo) context.Context {
	return context.WithValue(ctx, connInfoKey{}, info)
}

// ConnInfoFromContext returns the connection information attached by the
// transport, if any.
func ConnInfoFromContext(ctx context.Context) (ConnInfo, bool) {
	info, ok := ctx.Value(connInfoKey{}).(ConnInfo)
	return info, ok
}
