package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherMethods(t *testing.T) {
	h := newDispatcher()
	ctx := context.Background()

	tests := []struct {
		name    string
		request string
		want    string
	}{
		{"say_hello", `{"jsonrpc":"2.0","method":"say_hello","id":1}`, `{"jsonrpc":"2.0","result":"hello","id":1}`},
		{"echo", `{"jsonrpc":"2.0","method":"echo","params":{"a":[1,2]},"id":2}`, `{"jsonrpc":"2.0","result":{"a":[1,2]},"id":2}`},
		{"add", `{"jsonrpc":"2.0","method":"add","params":[1,2,3.5],"id":3}`, `{"jsonrpc":"2.0","result":6.5,"id":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := h.HandleRequest(ctx, tt.request)
			require.True(t, ok)
			assert.JSONEq(t, tt.want, out)
		})
	}
}

func TestDispatcherListsMethods(t *testing.T) {
	h := newDispatcher()
	assert.Equal(t, []string{"add", "echo", "rpc.methods", "say_hello", "uptime"}, h.Methods())
}

func TestLogNotificationHasNoResponse(t *testing.T) {
	h := newDispatcher()

	_, ok := h.HandleRequest(context.Background(), `{"jsonrpc":"2.0","method":"log","params":"hi"}`)
	assert.False(t, ok)
}
