package server

import (
	"net"
	"net/http"
	"net/http/fcgi"
	"os"

	"github.com/lcalzada-xor/cgiscope/pkg/cgienv"
	"github.com/lcalzada-xor/cgiscope/pkg/config"
	"github.com/lcalzada-xor/cgiscope/pkg/models"
)

// EnvironmentSource returns the snapshot a request is rendered with.
type EnvironmentSource func(r *http.Request) models.EnvironmentSnapshot

// ProcessEnvironment reads the environment of the current process, as a CGI
// program sees it.
func ProcessEnvironment() EnvironmentSource {
	return StaticEnvironment(nil)
}

// StaticEnvironment returns the given KEY=VALUE list for every request.
// A nil list reads os.Environ on each call.
func StaticEnvironment(environ []string) EnvironmentSource {
	return func(*http.Request) models.EnvironmentSnapshot {
		if environ == nil {
			return cgienv.FromEnviron(os.Environ())
		}
		return cgienv.FromEnviron(environ)
	}
}

// RequestEnvironment synthesizes the CGI variables from the request itself.
func RequestEnvironment(p cgienv.Params) EnvironmentSource {
	return func(r *http.Request) models.EnvironmentSnapshot {
		return cgienv.FromRequest(r, p)
	}
}

// FastCGIEnvironment overlays the FastCGI params the web server sent over the
// synthesized variables. Params that net/http/fcgi already folded into the
// request (headers, method, URI) come back through the request.
func FastCGIEnvironment(p cgienv.Params) EnvironmentSource {
	return func(r *http.Request) models.EnvironmentSnapshot {
		return cgienv.Merge(cgienv.FromRequest(r, p), fcgi.ProcessEnv(r))
	}
}

// EnvironmentFor picks the source matching a serving mode.
func EnvironmentFor(cfg *config.Server) EnvironmentSource {
	p := ParamsFor(cfg)
	switch cfg.Mode {
	case "cgi":
		return ProcessEnvironment()
	case "fcgi":
		return FastCGIEnvironment(p)
	default:
		return RequestEnvironment(p)
	}
}

// ParamsFor derives the server-side CGI params from the configuration.
func ParamsFor(cfg *config.Server) cgienv.Params {
	p := cgienv.Params{
		ServerSoftware: cfg.ServerSoftware,
		ScriptName:     cfg.ScriptPath,
	}
	if cfg.Network != "unix" {
		if _, port, err := net.SplitHostPort(cfg.Listen); err == nil {
			p.ServerPort = port
		}
	}
	return p
}
