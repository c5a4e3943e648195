package rpchttp

import "errors"

// ErrWouldBlock is the transient "not ready" condition. Decoders and encoders
// return it (possibly wrapped) when no progress can be made right now; the
// handler re-arms for the same event instead of failing.
var ErrWouldBlock = errors.New("rpchttp: operation would block")

// Decoder reads the request body.
//
// Read returns the number of bytes copied into p. A read of zero bytes with a
// nil error (or io.EOF) marks the end of the body. ErrWouldBlock means no bytes
// are available yet; any other error abandons the connection.
type Decoder interface {
	Read(p []byte) (n int, err error)
}

// Encoder writes the response body.
//
// Write returns how many bytes of p were accepted, which may be fewer than
// len(p) or zero. ErrWouldBlock means the connection is not writable yet; any
// other error abandons the connection.
type Encoder interface {
	Write(p []byte) (n int, err error)
}
