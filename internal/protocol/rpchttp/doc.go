// Package rpchttp implements the per-connection protocol state machine of the
// JSON-RPC HTTP transport.
//
// A ServerHandler owns one connection from the moment its HTTP method is
// known until the response has been flushed. It does no I/O of its own: the
// connection engine delivers events (OnRequest, OnReadable, OnResponse,
// OnWritable) and honors the Next action each event returns. Reads and writes
// go through the Decoder and Encoder contracts, which may report partial
// progress or ErrWouldBlock at any time.
//
// State flow:
//
//	AwaitingMethod --OPTIONS------------------------------> WritingResponse (200, empty body)
//	AwaitingMethod --POST--> ReadingBody --EOF--> Dispatching --> WritingResponse (200, result)
//	AwaitingMethod --other--------------------------------> WritingResponse (405, empty body)
//	WritingResponse --flushed / hard error--> Done
//	ReadingBody --hard error--> Done
//
// The engine must call Release on every exit path, including panics, with a
// flag telling whether the connection is unwinding abnormally. Release is
// where the panic registry gets notified.
package rpchttp
