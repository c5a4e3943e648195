package main

import (
	"context"
	"time"

	"github.com/marmos91/dittorpc/internal/logger"
	rpc "github.com/marmos91/dittorpc/pkg/jsonrpc"
)

// startedAt is reported by the "uptime" method.
var startedAt = time.Now()

// newDispatcher builds the method table served by the binary.
func newDispatcher() *rpc.IoHandler {
	h := rpc.NewIoHandler()

	h.AddMethod("say_hello", func(ctx context.Context, params rpc.Params) (any, error) {
		return "hello", nil
	})

	h.AddMethod("echo", func(ctx context.Context, params rpc.Params) (any, error) {
		if params.IsEmpty() {
			return nil, nil
		}
		var v any
		if err := params.Parse(&v); err != nil {
			return nil, err
		}
		return v, nil
	})

	h.AddMethod("add", func(ctx context.Context, params rpc.Params) (any, error) {
		var operands []float64
		if err := params.Parse(&operands); err != nil {
			return nil, err
		}
		var sum float64
		for _, n := range operands {
			sum += n
		}
		return sum, nil
	})

	h.AddMethod("uptime", func(ctx context.Context, params rpc.Params) (any, error) {
		return time.Since(startedAt).Round(time.Second).String(), nil
	})

	h.AddMethod("rpc.methods", func(ctx context.Context, params rpc.Params) (any, error) {
		return h.Methods(), nil
	})

	h.AddNotification("log", func(ctx context.Context, params rpc.Params) {
		var msg string
		if err := params.Parse(&msg); err != nil {
			return
		}
		if info, ok := rpc.ConnInfoFromContext(ctx); ok {
			logger.Info("client %s (%s): %s", info.RemoteAddr, info.ID, msg)
			return
		}
		logger.Info("client: %s", msg)
	})

	return h
}
