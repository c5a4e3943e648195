package cors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderValue(t *testing.T) {
	tests := []struct {
		name       string
		policy     Policy
		wantValue  string
		wantHeader bool
	}{
		{name: "zero value", policy: Policy{}, wantHeader: false},
		{name: "none", policy: None(), wantHeader: false},
		{name: "any", policy: Any(), wantValue: "*", wantHeader: true},
		{name: "null", policy: Null(), wantValue: "null", wantHeader: true},
		{name: "origin", policy: Origin("https://example.com"), wantValue: "https://example.com", wantHeader: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, ok := tt.policy.HeaderValue()
			assert.Equal(t, tt.wantHeader, ok)
			assert.Equal(t, tt.wantValue, value)
		})
	}
}

func TestPolicyIsComparable(t *testing.T) {
	assert.Equal(t, None(), Policy{})
	assert.Equal(t, Origin("https://a.example"), Origin("https://a.example"))
	assert.NotEqual(t, Origin("https://a.example"), Origin("https://b.example"))
}

func TestParseOrigin(t *testing.T) {
	p, err := ParseOrigin("https://example.com")
	require.NoError(t, err)
	assert.Equal(t, KindOrigin, p.Kind())
	assert.Equal(t, "origin(https://example.com)", p.String())

	p, err = ParseOrigin("http://localhost:8080")
	require.NoError(t, err)
	v, _ := p.HeaderValue()
	assert.Equal(t, "http://localhost:8080", v)
}

func TestParseOriginRejects(t *testing.T) {
	for _, origin := range []string{
		"",
		"*",
		"https://*.example.com",
		"example.com",
		"https://example.com/path",
	} {
		t.Run(origin, func(t *testing.T) {
			_, err := ParseOrigin(origin)
			assert.ErrorIs(t, err, ErrInvalidOrigin)
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		mode   string
		origin string
		want   Policy
	}{
		{mode: "", want: None()},
		{mode: "none", want: None()},
		{mode: "ANY", want: Any()},
		{mode: "*", want: Any()},
		{mode: "null", want: Null()},
		{mode: "origin", origin: " https://rpc.example.org ", want: Origin("https://rpc.example.org")},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			got, err := Parse(tt.mode, tt.origin)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("sometimes", "")
	assert.Error(t, err)

	_, err = Parse("origin", "")
	assert.ErrorIs(t, err, ErrInvalidOrigin)
}
