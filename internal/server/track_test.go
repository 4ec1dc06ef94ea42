package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedirectTarget(t *testing.T) {
	allowed := []string{"flasti.com", "app.flasti.com"}

	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"relative path", "/checkout", "/checkout", true},
		{"relative with query", "/checkout?plan=pro", "/checkout?plan=pro", true},
		{"allowed host", "https://flasti.com/buy", "https://flasti.com/buy", true},
		{"allowed host case-insensitive", "https://FLASTI.com/buy", "https://FLASTI.com/buy", true},
		{"allowed subdomain entry", "http://app.flasti.com/", "http://app.flasti.com/", true},
		{"foreign host", "https://evil.example.com/", "", false},
		{"unlisted subdomain", "https://evil.flasti.com.example.com/", "", false},
		{"scheme-relative", "//evil.example.com/", "", false},
		{"javascript scheme", "javascript:alert(1)", "", false},
		{"data scheme", "data:text/html,x", "", false},
		{"backslash path", `/\evil.example.com`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := redirectTarget(tc.raw, allowed)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	_, ok := redirectTarget("https://flasti.com/", nil)
	assert.False(t, ok, "empty allowlist must reject absolute targets")
}

func TestAppendTokenEscapes(t *testing.T) {
	got := appendToken("/checkout?plan=pro", "123_app 1_99")
	assert.Equal(t, "/checkout?plan=pro&ref=123_app+1_99", got)

	got = appendToken("https://flasti.com/buy", "123_app-1_99")
	assert.Equal(t, "https://flasti.com/buy?ref=123_app-1_99", got)
}
