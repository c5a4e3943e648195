package jsonrpc

import "fmt"

// ErrorKind classifies a StartError.
type ErrorKind uint8

const (
	// ErrorKindIO is a failure of the underlying network layer, typically
	// binding the listening socket.
	ErrorKindIO ErrorKind = iota + 1
	// ErrorKindOther is any other startup failure: invalid address or
	// configuration.
	ErrorKindOther
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindIO:
		return "io"
	case ErrorKindOther:
		return "other"
	default:
		return "unknown"
	}
}

// StartError is returned by Start and StartWithConfig.
type StartError struct {
	Kind ErrorKind
	Err  error
}

func (e *StartError) Error() string {
	if e.Kind == ErrorKindIO {
		return fmt.Sprintf("transport: io error: %v", e.Err)
	}
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

func ioError(err error) *StartError    { return &StartError{Kind: ErrorKindIO, Err: err} }
func otherError(err error) *StartError { return &StartError{Kind: ErrorKindOther, Err: err} }
