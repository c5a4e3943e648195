package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// Params is the raw "params" member of a request. It is empty when the
// request had none.
type Params json.RawMessage

// IsEmpty reports whether the request omitted params (or sent null).
func (p Params) IsEmpty() bool {
	trimmed := bytes.TrimSpace(p)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Parse decodes the params into v. Decoding failures are reported as
// CodeInvalidParams so methods can return the error unchanged.
func (p Params) Parse(v any) error {
	if p.IsEmpty() {
		return NewError(CodeInvalidParams, "Invalid params: missing params")
	}
	if err := json.Unmarshal(p, v); err != nil {
		return NewError(CodeInvalidParams, "Invalid params: "+err.Error())
	}
	return nil
}
