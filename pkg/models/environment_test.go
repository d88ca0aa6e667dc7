package models

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var prefixes = []string{"HTTP_", "SERVER_", "REQUEST_", "GATEWAY_"}

func TestEnvironmentSnapshot_Filter(t *testing.T) {
	env := EnvironmentSnapshot{
		"HTTP_X_FOO":        "bar",
		"SERVER_NAME":       "x",
		"OTHER_VAR":         "ignored",
		"GATEWAY_INTERFACE": "CGI/1.1",
		"REQUEST_METHOD":    "GET",
		"http_lower":        "case matters",
		"XHTTP_":            "prefix must be leading",
	}

	got := env.Filter(prefixes)
	assert.Equal(t, []Variable{
		{Key: "GATEWAY_INTERFACE", Value: "CGI/1.1"},
		{Key: "HTTP_X_FOO", Value: "bar"},
		{Key: "REQUEST_METHOD", Value: "GET"},
		{Key: "SERVER_NAME", Value: "x"},
	}, got)
}

func TestEnvironmentSnapshot_FilterProperties(t *testing.T) {
	env := EnvironmentSnapshot{}
	for i, k := range []string{"HTTP_B", "HTTP_A", "SERVER_Z", "PATH", "HOME", "REQUEST_", "GATEWAY_X", "SERVER_", "HTTP_a"} {
		env[k] = strings.Repeat("v", i)
	}

	got := env.Filter(prefixes)

	want := 0
	for k := range env {
		if hasAnyPrefix(k, prefixes) {
			want++
		}
	}
	assert.Len(t, got, want)
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i].Key < got[j].Key }))

	seen := map[string]bool{}
	for _, v := range got {
		assert.False(t, seen[v.Key], "duplicate key %s", v.Key)
		seen[v.Key] = true
		assert.Equal(t, env[v.Key], v.Value)
	}
}

func TestEnvironmentSnapshot_FilterEmpty(t *testing.T) {
	assert.Empty(t, EnvironmentSnapshot(nil).Filter(prefixes))
	assert.Empty(t, EnvironmentSnapshot{"PATH": "/bin"}.Filter(prefixes))
}

func TestEnvironmentSnapshot_LookupAndClone(t *testing.T) {
	env := EnvironmentSnapshot{"SERVER_SOFTWARE": "TestServer/1.0"}
	assert.Equal(t, Some("TestServer/1.0"), env.Lookup("SERVER_SOFTWARE"))
	assert.Equal(t, None(), env.Lookup("MISSING"))

	c := env.Clone()
	c["SERVER_SOFTWARE"] = "changed"
	assert.Equal(t, "TestServer/1.0", env["SERVER_SOFTWARE"])
}
