package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestField_Or(t *testing.T) {
	assert.Equal(t, "Unknown", None().Or("Unknown"))
	assert.Equal(t, "GET", Some("GET").Or("Unknown"))
	// present but empty is not absent
	assert.Equal(t, "", Some("").Or("None"))
}

func TestRequestMetadata_Resolve(t *testing.T) {
	env := EnvironmentSnapshot{
		"REQUEST_METHOD":  "POST",
		"REQUEST_URI":     "/cgi-bin/test?a=1",
		"QUERY_STRING":    "a=1",
		"HTTP_USER_AGENT": "curl/8.0",
		"CONTENT_TYPE":    "text/plain",
	}

	t.Run("absent fields come from env", func(t *testing.T) {
		m := RequestMetadata{}.Resolve(env)
		assert.Equal(t, Some("POST"), m.Method)
		assert.Equal(t, Some("/cgi-bin/test?a=1"), m.URI)
		assert.Equal(t, Some("a=1"), m.QueryString)
		assert.Equal(t, Some("curl/8.0"), m.UserAgent)
		assert.Equal(t, Some("text/plain"), m.ContentType)
		assert.False(t, m.ContentLength.Present)
		assert.True(t, m.IsPost())
	})

	t.Run("present fields win", func(t *testing.T) {
		m := RequestMetadata{Method: Some("GET"), QueryString: Some("")}.Resolve(env)
		assert.Equal(t, Some("GET"), m.Method)
		assert.Equal(t, Some(""), m.QueryString)
		assert.False(t, m.IsPost())
	})

	t.Run("empty env leaves fields absent", func(t *testing.T) {
		m := RequestMetadata{}.Resolve(nil)
		assert.Equal(t, RequestMetadata{}, m)
	})
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		wantErr bool
	}{
		{name: "Valid http", target: "http://example.com", wantErr: false},
		{name: "Valid https with port", target: "https://127.0.0.1:8443/", wantErr: false},
		{name: "Empty URL", target: "", wantErr: true},
		{name: "Invalid URL", target: "://invalid", wantErr: true},
		{name: "Unsupported scheme", target: "ftp://example.com", wantErr: true},
		{name: "Missing host", target: "http://", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTarget(tc.target)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidateTarget() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
