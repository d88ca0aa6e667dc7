package probe

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCSPBlocksScripts(t *testing.T) {
	tests := []struct {
		name string
		csp  string
		want bool
	}{
		{name: "empty", csp: "", want: false},
		{name: "default none", csp: "default-src 'none'; style-src 'unsafe-inline'", want: true},
		{name: "script self", csp: "script-src 'self'", want: true},
		{name: "script none", csp: "script-src 'none'", want: true},
		{name: "unsafe inline", csp: "script-src 'self' 'unsafe-inline'", want: false},
		{name: "wildcard default", csp: "default-src *", want: false},
		{name: "script-src wins over default-src", csp: "default-src 'none'; script-src 'unsafe-inline'", want: false},
		{name: "style only", csp: "style-src 'self'", want: false},
		{name: "data scheme", csp: "script-src data:", want: false},
		{name: "first directive applies", csp: "script-src 'self'; script-src *", want: true},
		{name: "case insensitive", csp: "Default-Src 'NONE'", want: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CSPBlocksScripts(tc.csp))
		})
	}
}

func TestAnalyzeSecurityHeaders(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	resp.Header.Set("Content-Security-Policy", "default-src 'none'")
	resp.Header.Set("X-Content-Type-Options", "nosniff")
	resp.Header.Set("Referrer-Policy", "no-referrer")

	h := AnalyzeSecurityHeaders(resp)
	assert.Equal(t, "text/html; charset=utf-8", h.ContentType)
	assert.True(t, h.CSPBlocksScripts)
	assert.True(t, h.HasAntiXSS)
	assert.Equal(t, "no-referrer", h.ReferrerPolicy)

	h = AnalyzeSecurityHeaders(&http.Response{Header: http.Header{}})
	assert.False(t, h.HasAntiXSS)
}

func TestIsHTML(t *testing.T) {
	assert.True(t, IsHTML("text/html; charset=utf-8"))
	assert.True(t, IsHTML("TEXT/HTML"))
	assert.True(t, IsHTML("application/xhtml+xml"))
	assert.False(t, IsHTML("text/plain"))
	assert.False(t, IsHTML(""))
}
