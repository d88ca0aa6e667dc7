package config

import "time"

// Version is the current version of cgiscope
const Version = "v1.0.0"

// Author is the author of the tool
const Author = "@lcalzada-xor"

// Default Values
const (
	DefaultListen         = "127.0.0.1:8080"
	DefaultMode           = "http"
	DefaultNetwork        = "tcp"
	DefaultScriptPath     = "/cgi-bin/test"
	DefaultMetricsPath    = "/metrics"
	DefaultServerSoftware = "cgiscope/" + Version
	DefaultMaxBodyEcho    = 64 << 10
	DefaultReadTimeout    = 15 * time.Second
	DefaultWriteTimeout   = 15 * time.Second
	DefaultShutdownGrace  = 5 * time.Second

	DefaultConcurrency = 10
	DefaultTimeout     = 10 * time.Second
	DefaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.100 Safari/537.36"
)

// Fallback literals rendered when a request field is absent.
const (
	FallbackUnknown = "Unknown"
	FallbackNone    = "None"
)

// ContentTypeHTML is the response content type of the introspection page.
const ContentTypeHTML = "text/html; charset=utf-8"

// GatewayInterface is the CGI revision advertised in GATEWAY_INTERFACE.
const GatewayInterface = "CGI/1.1"

// VariablePrefixes selects which environment keys are listed on the introspection page.
var VariablePrefixes = []string{
	"HTTP_",
	"SERVER_",
	"REQUEST_",
	"GATEWAY_",
}

// DefaultAssets is the list of static fixtures probed when none are given.
var DefaultAssets = []string{
	"/",
	"/js/main.js",
}
