package models

import "fmt"

type InjectionType string

const (
	InjectionQuery  InjectionType = "query"
	InjectionHeader InjectionType = "header"
	InjectionBody   InjectionType = "body"
)

type CheckKind string

const (
	CheckIntrospection CheckKind = "introspection"
	CheckAsset         CheckKind = "asset"
)

type ReflectionContext string

const (
	ContextHTML       ReflectionContext = "html"
	ContextJavaScript ReflectionContext = "javascript"
	ContextCSS        ReflectionContext = "css"
	ContextAttribute  ReflectionContext = "attribute"
	ContextComment    ReflectionContext = "comment"
	ContextTagName    ReflectionContext = "tag_name"
	ContextRCDATA     ReflectionContext = "rcdata"
	ContextUnknown    ReflectionContext = "unknown"
)

type SecurityHeaders struct {
	ContentType         string `json:"content_type,omitempty"`
	CSP                 string `json:"csp,omitempty"`
	CSPBlocksScripts    bool   `json:"csp_blocks_scripts,omitempty"`
	XContentTypeOptions string `json:"x_content_type_options,omitempty"`
	ReferrerPolicy      string `json:"referrer_policy,omitempty"`
	HasAntiXSS          bool   `json:"has_anti_xss"`
}

// Reflection describes how one injected marker came back in a response.
type Reflection struct {
	Parameter     string            `json:"parameter"`
	InjectionType InjectionType     `json:"injection_type"`
	Reflected     bool              `json:"reflected"`
	Unfiltered    []string          `json:"unfiltered"`
	Context       ReflectionContext `json:"context,omitempty"`
}

// Result represents the outcome of one smoke check against a target.
type Result struct {
	URL             string          `json:"url"`
	Method          string          `json:"method"`
	Check           CheckKind       `json:"check"`
	HTTPStatus      int             `json:"http_status"`
	Passed          bool            `json:"passed"`
	Problems        []string        `json:"problems,omitempty"`
	Reflections     []Reflection    `json:"reflections,omitempty"`
	SecurityHeaders SecurityHeaders `json:"security_headers,omitempty"`
	RandomNumber    int             `json:"random_number,omitempty"`
	Variables       int             `json:"variables,omitempty"`
}

// Failf records a problem and marks the result as failed.
func (r *Result) Failf(format string, args ...interface{}) {
	r.Passed = false
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}
