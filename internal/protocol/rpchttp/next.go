package rpchttp

// Next is the action a handler asks the engine to perform after an event.
type Next uint8

const (
	// NextRead asks for another readable event.
	NextRead Next = iota + 1
	// NextWrite asks for the response head (first time) or another writable event.
	NextWrite
	// NextEnd finishes the connection. No further events are delivered.
	NextEnd
)

func (n Next) String() string {
	switch n {
	case NextRead:
		return "read"
	case NextWrite:
		return "write"
	case NextEnd:
		return "end"
	default:
		return "unknown"
	}
}

// State is the lifecycle position of a ServerHandler.
type State uint8

const (
	StateAwaitingMethod State = iota
	StateReadingBody
	StateDispatching
	StateWritingResponse
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingMethod:
		return "awaiting_method"
	case StateReadingBody:
		return "reading_body"
	case StateDispatching:
		return "dispatching"
	case StateWritingResponse:
		return "writing_response"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Kind classifies a request by its HTTP method.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindPreflight is an OPTIONS request.
	KindPreflight
	// KindSubmission is a POST request carrying an RPC payload.
	KindSubmission
	// KindRejected is any other method; it is answered with 405.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindPreflight:
		return "preflight"
	case KindSubmission:
		return "submission"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
