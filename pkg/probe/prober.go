// Package probe drives a web server under test: it requests the
// introspection page with hostile input, checks that every reflection comes
// back escaped, and verifies that static assets are served intact.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/lcalzada-xor/cgiscope/pkg/config"
	"github.com/lcalzada-xor/cgiscope/pkg/logger"
	"github.com/lcalzada-xor/cgiscope/pkg/models"
	"github.com/lcalzada-xor/cgiscope/pkg/network"
)

// QueryParam is the query parameter carrying the query payload.
const QueryParam = "cgiscope"

// maxBody bounds how much of a response is read.
const maxBody = 4 << 20

// Options selects what a Prober checks.
type Options struct {
	ScriptPath string
	Assets     []string
	Headers    map[string]string
	// CheckPost also sends a POST and checks the echoed body.
	CheckPost bool
	// RequireSecurityHeaders fails pages without nosniff and a script-blocking CSP.
	RequireSecurityHeaders bool
}

// DefaultOptions returns the options matching a default cgiscope server.
func DefaultOptions() Options {
	return Options{
		ScriptPath:             config.DefaultScriptPath,
		Assets:                 append([]string(nil), config.DefaultAssets...),
		CheckPost:              true,
		RequireSecurityHeaders: true,
	}
}

// Prober runs the smoke checks against one or more targets. It is safe for
// concurrent use.
type Prober struct {
	client   *network.Client
	opts     Options
	log      *logger.Logger
	requests atomic.Int64
}

// New creates a Prober.
func New(client *network.Client, opts Options, log *logger.Logger) *Prober {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.ScriptPath == "" {
		opts.ScriptPath = config.DefaultScriptPath
	}
	return &Prober{client: client, opts: opts, log: log}
}

// Requests returns the number of HTTP requests sent so far.
func (p *Prober) Requests() int64 {
	return p.requests.Load()
}

// Probe runs every configured check against base. The error is only set for
// an unusable base URL; failed checks are reported in the results.
func (p *Prober) Probe(ctx context.Context, base string) ([]models.Result, error) {
	if err := models.ValidateTarget(base); err != nil {
		return nil, err
	}

	p.log.Section("Probing " + base)
	results := []models.Result{p.CheckIntrospection(ctx, base)}
	if p.opts.CheckPost && ctx.Err() == nil {
		results = append(results, p.CheckPost(ctx, base))
	}
	for _, asset := range p.opts.Assets {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		results = append(results, p.CheckAsset(ctx, base, asset))
	}
	return results, ctx.Err()
}

// CheckIntrospection requests the page with a payload in the query string and
// another in the User-Agent header.
func (p *Prober) CheckIntrospection(ctx context.Context, base string) models.Result {
	query := NewMarkers()
	header := NewMarkers()

	target := joinURL(base, p.opts.ScriptPath)
	target += "?" + QueryParam + "=" + query.QueryPayload()

	res := models.Result{URL: target, Method: http.MethodGet, Check: models.CheckIntrospection, Passed: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		res.Failf("build request: %v", err)
		return res
	}
	p.setHeaders(req)
	req.Header.Set("User-Agent", header.Payload())

	body, ok := p.fetchPage(req, &res)
	if !ok {
		return res
	}

	p.checkReflection(&res, body, QueryParam, models.InjectionQuery, query)
	p.checkReflection(&res, body, "User-Agent", models.InjectionHeader, header)
	return res
}

// CheckPost sends a plain-text body and checks the POST Data block.
func (p *Prober) CheckPost(ctx context.Context, base string) models.Result {
	markers := NewMarkers()
	target := joinURL(base, p.opts.ScriptPath)
	res := models.Result{URL: target, Method: http.MethodPost, Check: models.CheckIntrospection, Passed: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(markers.Payload()))
	if err != nil {
		res.Failf("build request: %v", err)
		return res
	}
	p.setHeaders(req)
	req.Header.Set("Content-Type", "text/plain")

	body, ok := p.fetchPage(req, &res)
	if !ok {
		return res
	}
	p.checkReflection(&res, body, "body", models.InjectionBody, markers)
	return res
}

// CheckAsset fetches one static asset and checks its integrity.
func (p *Prober) CheckAsset(ctx context.Context, base, asset string) models.Result {
	target := joinURL(base, asset)
	res := models.Result{URL: target, Method: http.MethodGet, Check: models.CheckAsset, Passed: true}
	p.log.V("Checking asset %s", target)

	resp, err := p.do(ctx, target)
	if err != nil {
		res.Failf("request failed: %v", err)
		return res
	}
	defer resp.Body.Close()

	res.HTTPStatus = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		res.Failf("HTTP status %d, want 200", resp.StatusCode)
		return res
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		res.Failf("read body: %v", err)
		return res
	}
	for _, problem := range CheckAsset(asset, resp.Header.Get("Content-Type"), body) {
		res.Failf("%s", problem)
	}
	return res
}

func (p *Prober) do(ctx context.Context, target string) (*http.Response, error) {
	p.requests.Add(1)
	return p.client.Get(ctx, target, p.opts.Headers)
}

func (p *Prober) setHeaders(req *http.Request) {
	for k, v := range p.opts.Headers {
		req.Header.Set(k, v)
	}
}

// fetchPage sends req and runs the checks shared by every introspection
// request. ok is false when the body could not be obtained.
func (p *Prober) fetchPage(req *http.Request, res *models.Result) (string, bool) {
	p.log.V("Requesting %s %s", req.Method, req.URL)
	p.requests.Add(1)

	resp, err := p.client.Do(req)
	if err != nil {
		res.Failf("request failed: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	res.HTTPStatus = resp.StatusCode
	res.SecurityHeaders = AnalyzeSecurityHeaders(resp)
	p.log.Detail("HTTP %d, Content-Type %q", resp.StatusCode, res.SecurityHeaders.ContentType)

	if resp.StatusCode != http.StatusOK {
		res.Failf("HTTP status %d, want 200", resp.StatusCode)
	}
	if ct := res.SecurityHeaders.ContentType; !strings.EqualFold(strings.ReplaceAll(ct, " ", ""), strings.ReplaceAll(config.ContentTypeHTML, " ", "")) {
		res.Failf("Content-Type %q, want %q", ct, config.ContentTypeHTML)
	}
	if p.opts.RequireSecurityHeaders {
		if !res.SecurityHeaders.CSPBlocksScripts {
			res.Failf("Content-Security-Policy does not block scripts: %q", res.SecurityHeaders.CSP)
		}
		if !strings.EqualFold(res.SecurityHeaders.XContentTypeOptions, "nosniff") {
			res.Failf("X-Content-Type-Options is not nosniff")
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		res.Failf("read body: %v", err)
		return "", false
	}
	body := string(raw)

	info, problems := CheckPage(body)
	for _, problem := range problems {
		res.Failf("%s", problem)
	}
	res.RandomNumber = info.RandomNumber
	res.Variables = info.Variables
	return body, true
}

func (p *Prober) checkReflection(res *models.Result, body, param string, kind models.InjectionType, m Markers) {
	reflected, unfiltered := AnalyzeResponse(body, m)
	r := models.Reflection{
		Parameter:     param,
		InjectionType: kind,
		Reflected:     reflected,
		Unfiltered:    unfiltered,
		Context:       DetectContext(body, m.Start),
	}
	res.Reflections = append(res.Reflections, r)

	p.log.Detail("%s %s: reflected=%v context=%s unfiltered=%v", kind, param, reflected, r.Context, unfiltered)

	if !reflected {
		res.Failf("%s %s not reflected", kind, param)
		return
	}
	if dangerous := Dangerous(unfiltered); len(dangerous) > 0 {
		res.Failf("%s %s reflected unescaped: %s", kind, param, strings.Join(dangerous, " "))
	}
	if r.Context != models.ContextHTML && r.Context != models.ContextRCDATA {
		res.Failf("%s %s reflected in %s context", kind, param, r.Context)
	}
}

// joinURL appends an absolute path to the base URL, dropping any query.
func joinURL(base, p string) string {
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + p
	}
	u.Path = strings.TrimRight(u.Path, "/") + p
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// String renders a short summary used in verbose logs.
func (o Options) String() string {
	return fmt.Sprintf("script=%s assets=%v post=%v security-headers=%v", o.ScriptPath, o.Assets, o.CheckPost, o.RequireSecurityHeaders)
}
