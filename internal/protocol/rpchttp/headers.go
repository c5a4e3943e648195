package rpchttp

import (
	"net/http"

	"github.com/marmos91/dittorpc/pkg/cors"
)

const (
	headerAllow             = "Allow"
	headerContentType       = "Content-Type"
	headerAllowHeaders      = "Access-Control-Allow-Headers"
	allowedMethods          = http.MethodOptions + ", " + http.MethodPost
	contentTypeJSON         = "application/json"
	allowedRequestHeaderSet = "origin, content-type, accept"
)

// Response is the response head the engine serializes before the body.
type Response struct {
	Status        int
	Header        http.Header
	ContentLength int64
}

// NewResponse returns an empty 200 response head.
func NewResponse() *Response {
	return &Response{Status: http.StatusOK, Header: make(http.Header)}
}

// responseHeaders returns the header set carried by every response.
func responseHeaders(policy cors.Policy) http.Header {
	h := make(http.Header, 4)
	h.Set(headerAllow, allowedMethods)
	h.Set(headerContentType, contentTypeJSON)
	h.Set(headerAllowHeaders, allowedRequestHeaderSet)

	if origin, ok := policy.HeaderValue(); ok {
		h.Set(cors.HeaderAllowOrigin, origin)
	}
	return h
}
