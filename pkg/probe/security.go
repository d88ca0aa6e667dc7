package probe

import (
	"net/http"
	"strings"

	"github.com/lcalzada-xor/cgiscope/pkg/models"
)

// AnalyzeSecurityHeaders extracts the headers that limit the impact of a
// reflected value.
func AnalyzeSecurityHeaders(resp *http.Response) models.SecurityHeaders {
	headers := models.SecurityHeaders{
		ContentType:         resp.Header.Get("Content-Type"),
		CSP:                 resp.Header.Get("Content-Security-Policy"),
		XContentTypeOptions: resp.Header.Get("X-Content-Type-Options"),
		ReferrerPolicy:      resp.Header.Get("Referrer-Policy"),
	}
	headers.CSPBlocksScripts = CSPBlocksScripts(headers.CSP)
	headers.HasAntiXSS = headers.CSPBlocksScripts || strings.EqualFold(headers.XContentTypeOptions, "nosniff")
	return headers
}

// CSPBlocksScripts reports whether a policy forbids inline and foreign
// scripts. script-src wins over default-src; a policy with neither allows
// everything.
func CSPBlocksScripts(csp string) bool {
	if csp == "" {
		return false
	}

	directives := make(map[string][]string)
	for _, d := range strings.Split(csp, ";") {
		fields := strings.Fields(strings.ToLower(d))
		if len(fields) == 0 {
			continue
		}
		// The first occurrence of a directive is the one that applies.
		if _, ok := directives[fields[0]]; !ok {
			directives[fields[0]] = fields[1:]
		}
	}

	sources, ok := directives["script-src"]
	if !ok {
		sources, ok = directives["default-src"]
	}
	if !ok {
		return false
	}

	for _, src := range sources {
		switch {
		case src == "'none'":
			return len(sources) == 1
		case src == "'unsafe-inline'", src == "'unsafe-eval'", src == "*",
			src == "data:", src == "blob:", src == "http:", src == "https:":
			return false
		}
	}
	return true
}

// IsHTML reports whether a Content-Type names an HTML document.
func IsHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}
