// Package cors describes which Access-Control-Allow-Origin value, if any, the
// JSON-RPC transport attaches to its responses.
//
// A Policy is an immutable value. The listener copies it into every
// connection handler, so it needs no synchronization.
package cors

import (
	"errors"
	"fmt"
	"strings"

	jcors "github.com/jub0bs/cors"
	"github.com/jub0bs/cors/cfgerrors"
)

// HeaderAllowOrigin is the response header driven by a Policy.
const HeaderAllowOrigin = "Access-Control-Allow-Origin"

// Kind enumerates the recognized policy configurations.
type Kind uint8

const (
	// KindNone emits no Access-Control-Allow-Origin header.
	KindNone Kind = iota
	// KindAny allows any origin ("*").
	KindAny
	// KindNull allows the opaque "null" origin.
	KindNull
	// KindOrigin allows exactly one origin.
	KindOrigin
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAny:
		return "any"
	case KindNull:
		return "null"
	case KindOrigin:
		return "origin"
	default:
		return "unknown"
	}
}

// Policy is the CORS configuration of a listener. The zero value is None.
type Policy struct {
	kind   Kind
	origin string
}

// None returns the policy that never emits an origin header.
func None() Policy { return Policy{kind: KindNone} }

// Any returns the policy that allows every origin.
func Any() Policy { return Policy{kind: KindAny} }

// Null returns the policy that allows the "null" origin.
func Null() Policy { return Policy{kind: KindNull} }

// Origin returns a policy allowing exactly origin. The value is not validated;
// use ParseOrigin for untrusted input.
func Origin(origin string) Policy { return Policy{kind: KindOrigin, origin: origin} }

// Kind reports which configuration p holds.
func (p Policy) Kind() Kind { return p.kind }

// HeaderValue returns the Access-Control-Allow-Origin value for p and
// whether the header must be set at all.
func (p Policy) HeaderValue() (string, bool) {
	switch p.kind {
	case KindAny:
		return "*", true
	case KindNull:
		return "null", true
	case KindOrigin:
		return p.origin, true
	default:
		return "", false
	}
}

func (p Policy) String() string {
	if p.kind == KindOrigin {
		return "origin(" + p.origin + ")"
	}
	return p.kind.String()
}

// ErrInvalidOrigin is returned (wrapped) by ParseOrigin and Parse.
var ErrInvalidOrigin = errors.New("cors: invalid origin")

// ParseOrigin validates origin as a single Web origin (scheme, host and
// optional port, no path, no wildcard) and returns the matching policy.
func ParseOrigin(origin string) (Policy, error) {
	if origin == "" || origin == "*" || strings.Contains(origin, "*") {
		return Policy{}, fmt.Errorf("%w %q: a single origin is required", ErrInvalidOrigin, origin)
	}

	if _, err := jcors.NewMiddleware(jcors.Config{Origins: []string{origin}}); err != nil {
		var patternErr *cfgerrors.UnacceptableOriginPatternError
		if errors.As(err, &patternErr) {
			return Policy{}, fmt.Errorf("%w %q: %s", ErrInvalidOrigin, origin, patternErr.Reason)
		}
		return Policy{}, fmt.Errorf("%w %q: %v", ErrInvalidOrigin, origin, err)
	}

	return Origin(origin), nil
}

// Parse builds a policy from its configuration form. mode is one of "none",
// "any", "null" or "origin" (case-insensitive, empty means none); origin is
// only used with "origin".
func Parse(mode, origin string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "none":
		return None(), nil
	case "any", "*":
		return Any(), nil
	case "null":
		return Null(), nil
	case "origin":
		return ParseOrigin(strings.TrimSpace(origin))
	default:
		return Policy{}, fmt.Errorf("cors: unknown policy mode %q", mode)
	}
}
