package models

import (
	"fmt"
	"net/url"
	"strings"
)

type HTTPMethod string

const (
	MethodGET  HTTPMethod = "GET"
	MethodHEAD HTTPMethod = "HEAD"
	MethodPOST HTTPMethod = "POST"
)

// Field is an optional string. The zero value is absent.
type Field struct {
	Value   string
	Present bool
}

// Some returns a present Field holding v. An empty string is still present.
func Some(v string) Field {
	return Field{Value: v, Present: true}
}

// None returns an absent Field.
func None() Field {
	return Field{}
}

// Or returns the value when present and fallback otherwise.
func (f Field) Or(fallback string) string {
	if !f.Present {
		return fallback
	}
	return f.Value
}

// orElse keeps f when present and falls back to other.
func (f Field) orElse(other Field) Field {
	if f.Present {
		return f
	}
	return other
}

// RequestMetadata describes the request being introspected.
type RequestMetadata struct {
	Method        Field
	URI           Field
	QueryString   Field
	UserAgent     Field
	ContentType   Field
	ContentLength Field

	// Body is the request body as read by the gateway, nil when none was read.
	Body []byte
	// BodyTruncated reports that Body holds only the first part of the request body.
	BodyTruncated bool
}

// CGI variables read directly. The request keys fill absent request fields.
const (
	EnvRequestMethod    = "REQUEST_METHOD"
	EnvRequestURI       = "REQUEST_URI"
	EnvQueryString      = "QUERY_STRING"
	EnvUserAgent        = "HTTP_USER_AGENT"
	EnvContentType      = "CONTENT_TYPE"
	EnvContentLength    = "CONTENT_LENGTH"
	EnvServerSoftware   = "SERVER_SOFTWARE"
	EnvGatewayInterface = "GATEWAY_INTERFACE"
)

// Resolve fills every absent field from the matching CGI variable of env.
// Fields already present win over the environment.
func (m RequestMetadata) Resolve(env EnvironmentSnapshot) RequestMetadata {
	m.Method = m.Method.orElse(env.Lookup(EnvRequestMethod))
	m.URI = m.URI.orElse(env.Lookup(EnvRequestURI))
	m.QueryString = m.QueryString.orElse(env.Lookup(EnvQueryString))
	m.UserAgent = m.UserAgent.orElse(env.Lookup(EnvUserAgent))
	m.ContentType = m.ContentType.orElse(env.Lookup(EnvContentType))
	m.ContentLength = m.ContentLength.orElse(env.Lookup(EnvContentLength))
	return m
}

// IsPost reports whether the request method is POST.
func (m RequestMetadata) IsPost() bool {
	return strings.EqualFold(m.Method.Value, string(MethodPOST)) && m.Method.Present
}

// ValidateTarget checks a probe target URL.
func ValidateTarget(target string) error {
	if target == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}
	return nil
}
