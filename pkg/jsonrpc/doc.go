// Package jsonrpc implements a JSON-RPC 2.0 dispatcher for the DittoRPC
// HTTP transport.
//
// The transport hands the dispatcher the raw request body and writes back
// whatever text it returns. Anything the dispatcher has to say, including
// protocol errors, is encoded in that text; HandleRequest never fails.
//
// # Basic Usage
//
//	io := jsonrpc.NewIoHandler()
//	io.AddMethod("say_hello", func(ctx context.Context, params jsonrpc.Params) (any, error) {
//	    return "hello", nil
//	})
//
//	srv, err := rpcadapter.Start("127.0.0.1:3030", io, cors.Null())
//
// # Params
//
// Params holds the raw "params" member. Parse decodes it into a struct
// (named params) or a slice (positional params):
//
//	var args []int
//	if err := params.Parse(&args); err != nil {
//	    return nil, err
//	}
//
// # Errors
//
// Return *Error for protocol-level failures; any other error becomes
// CodeInternalError with the error text as message:
//
//	return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "division by zero")
//
// # Notifications and batches
//
// A request without "id" is a notification: it is executed but produces no
// response. A batch made only of notifications yields no response at all, and
// HandleRequest then returns ok == false.
//
// # Panics
//
// Method panics are NOT recovered here. They unwind into the transport,
// which isolates the failing connection and notifies its panic registry.
package jsonrpc
