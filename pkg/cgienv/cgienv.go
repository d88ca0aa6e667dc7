// Package cgienv builds the environment snapshot and request metadata the
// introspection page is rendered from, either from a CGI process environment
// or from an *http.Request received over FastCGI or plain HTTP.
package cgienv

import (
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/lcalzada-xor/cgiscope/pkg/config"
	"github.com/lcalzada-xor/cgiscope/pkg/models"
)

// Params holds the server-side values that cannot be derived from the request.
type Params struct {
	ServerSoftware string
	ScriptName     string
	// ServerPort is used when the Host header carries no port.
	ServerPort string
}

// FromEnviron parses KEY=VALUE pairs as returned by os.Environ. Entries
// without '=' or with an empty key are skipped; a later duplicate wins.
func FromEnviron(environ []string) models.EnvironmentSnapshot {
	env := make(models.EnvironmentSnapshot, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// Merge returns a new snapshot holding base overlaid with each override in order.
func Merge(base models.EnvironmentSnapshot, overrides ...map[string]string) models.EnvironmentSnapshot {
	out := base.Clone()
	for _, o := range overrides {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

// HeaderKey maps a header name to its CGI variable: "User-Agent" -> "HTTP_USER_AGENT".
func HeaderKey(name string) string {
	return "HTTP_" + strings.Map(func(r rune) rune {
		if r == '-' {
			return '_'
		}
		return r
	}, strings.ToUpper(name))
}

// FromRequest synthesizes the RFC 3875 variables for r.
func FromRequest(r *http.Request, p Params) models.EnvironmentSnapshot {
	host, port := splitHostPort(r.Host)
	if port == "" {
		port = p.ServerPort
	}
	if port == "" {
		if r.TLS != nil {
			port = "443"
		} else {
			port = "80"
		}
	}

	remoteAddr, remotePort := splitHostPort(r.RemoteAddr)

	software := p.ServerSoftware
	if software == "" {
		software = config.DefaultServerSoftware
	}

	scriptName := p.ScriptName
	pathInfo := ""
	if rest, ok := strings.CutPrefix(r.URL.Path, scriptName); scriptName != "" && ok && (rest == "" || rest[0] == '/') {
		pathInfo = rest
	} else {
		scriptName = r.URL.Path
	}

	env := models.EnvironmentSnapshot{
		"GATEWAY_INTERFACE": config.GatewayInterface,
		"SERVER_SOFTWARE":   software,
		"SERVER_NAME":       host,
		"SERVER_PORT":       port,
		"SERVER_PROTOCOL":   r.Proto,
		"REQUEST_METHOD":    r.Method,
		"REQUEST_URI":       requestURI(r),
		"QUERY_STRING":      r.URL.RawQuery,
		"SCRIPT_NAME":       scriptName,
		"PATH_INFO":         pathInfo,
		"REMOTE_ADDR":       remoteAddr,
		"REMOTE_PORT":       remotePort,
	}
	if r.TLS != nil {
		env["HTTPS"] = "on"
	}

	for name, values := range r.Header {
		switch {
		case strings.EqualFold(name, "Proxy"):
			// httpoxy: never expose the Proxy header as HTTP_PROXY.
			continue
		case strings.EqualFold(name, "Content-Type"):
			env["CONTENT_TYPE"] = strings.Join(values, ", ")
			continue
		case strings.EqualFold(name, "Content-Length"):
			continue
		}
		env[HeaderKey(name)] = strings.Join(values, ", ")
	}
	if r.Host != "" {
		env["HTTP_HOST"] = r.Host
	}
	if r.ContentLength > 0 {
		env["CONTENT_LENGTH"] = strconv.FormatInt(r.ContentLength, 10)
	}
	return env
}

// MetadataFromRequest reads the request metadata and up to maxBody bytes of the
// body. Only the fields the request actually carries are present.
func MetadataFromRequest(r *http.Request, maxBody int64) models.RequestMetadata {
	m := models.RequestMetadata{
		Method:      models.Some(r.Method),
		URI:         models.Some(requestURI(r)),
		QueryString: models.Some(r.URL.RawQuery),
	}
	if ua, ok := r.Header["User-Agent"]; ok {
		m.UserAgent = models.Some(strings.Join(ua, ", "))
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		m.ContentType = models.Some(ct)
	}
	if r.ContentLength >= 0 {
		m.ContentLength = models.Some(strconv.FormatInt(r.ContentLength, 10))
	}

	if r.Body != nil && r.Method == http.MethodPost && maxBody > 0 {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err != nil || int64(len(body)) > maxBody {
			body = body[:min(int64(len(body)), maxBody)]
			m.BodyTruncated = true
		}
		m.Body = body
	}
	return m
}

// requestURI returns the origin-form request target, also for absolute-form
// requests sent through a proxy.
func requestURI(r *http.Request) string {
	if strings.HasPrefix(r.RequestURI, "/") {
		return r.RequestURI
	}
	return r.URL.RequestURI()
}

func splitHostPort(hostport string) (string, string) {
	if hostport == "" {
		return "", ""
	}
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport, ""
	}
	return host, port
}
