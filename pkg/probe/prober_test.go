package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cgiscope/pkg/config"
	"github.com/lcalzada-xor/cgiscope/pkg/logger"
	"github.com/lcalzada-xor/cgiscope/pkg/models"
	"github.com/lcalzada-xor/cgiscope/pkg/network"
	"github.com/lcalzada-xor/cgiscope/pkg/server"
)

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.DefaultServer()
	cfg.StaticDir = filepath.Join("..", "..", "www")
	require.NoError(t, cfg.Validate())

	s := server.New(cfg, logger.NewNop(), server.WithRegistry(prometheus.NewRegistry()))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newProber(opts Options) *Prober {
	return New(network.NewClient(2*time.Second, "", 4, 0), opts, logger.NewNop())
}

func failures(results []models.Result) []string {
	var out []string
	for _, r := range results {
		for _, p := range r.Problems {
			out = append(out, fmt.Sprintf("%s %s: %s", r.Method, r.URL, p))
		}
	}
	return out
}

func TestProbe_Gateway(t *testing.T) {
	ts := newGateway(t)

	opts := DefaultOptions()
	opts.Assets = []string{"/", "/js/main.js", "/css/style.css"}
	p := newProber(opts)

	results, err := p.Probe(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Empty(t, failures(results))

	page := results[0]
	assert.Equal(t, models.CheckIntrospection, page.Check)
	assert.True(t, page.Passed)
	assert.Equal(t, http.StatusOK, page.HTTPStatus)
	assert.GreaterOrEqual(t, page.RandomNumber, 1)
	assert.LessOrEqual(t, page.RandomNumber, 1000)
	assert.Positive(t, page.Variables)
	assert.True(t, page.SecurityHeaders.CSPBlocksScripts)

	require.Len(t, page.Reflections, 2)
	for _, r := range page.Reflections {
		assert.True(t, r.Reflected, r.Parameter)
		assert.Empty(t, Dangerous(r.Unfiltered), r.Parameter)
		assert.Equal(t, models.ContextHTML, r.Context, r.Parameter)
	}

	post := results[1]
	assert.Equal(t, http.MethodPost, post.Method)
	assert.True(t, post.Passed)
	require.Len(t, post.Reflections, 1)
	assert.Equal(t, models.InjectionBody, post.Reflections[0].InjectionType)

	for _, r := range results[2:] {
		assert.Equal(t, models.CheckAsset, r.Check)
		assert.True(t, r.Passed, r.URL)
	}
	assert.EqualValues(t, 5, p.Requests())
}

// vulnerablePage mimics a page that concatenates request data into HTML.
const vulnerablePage = `<!DOCTYPE html>
<html><head><title>t</title></head><body>
<div id="runtime"><div>Server Time: 2024-01-01 00:00:00</div></div>
<div id="request"><div>User Agent: %s</div><div>Query String: %s</div></div>
<div id="environment"></div>
<div id="post-data"></div>
<div id="dynamic"><span id="timestamp">1704067200</span><span id="random-number">7</span></div>
<a href="/">home</a>
</body></html>`

func TestProbe_DetectsUnescapedReflection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, vulnerablePage, r.UserAgent(), r.URL.RawQuery)
	}))
	defer ts.Close()

	opts := DefaultOptions()
	opts.Assets = nil
	opts.CheckPost = false
	p := newProber(opts)

	results, err := p.Probe(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.False(t, res.Passed)
	problems := strings.Join(res.Problems, "\n")
	assert.Contains(t, problems, "header User-Agent reflected unescaped")
	assert.Contains(t, problems, "query cgiscope reflected unescaped")
	assert.Contains(t, problems, "Content-Security-Policy does not block scripts")
	assert.Contains(t, problems, "X-Content-Type-Options is not nosniff")
}

func TestProbe_EscapedButMissingHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, vulnerablePage, escape(r.UserAgent()), escape(r.URL.RawQuery))
	}))
	defer ts.Close()

	opts := DefaultOptions()
	opts.Assets = nil
	opts.CheckPost = false

	t.Run("headers required", func(t *testing.T) {
		results, err := newProber(opts).Probe(context.Background(), ts.URL)
		require.NoError(t, err)
		assert.False(t, results[0].Passed)
		for _, problem := range results[0].Problems {
			assert.NotContains(t, problem, "unescaped")
		}
	})

	t.Run("headers optional", func(t *testing.T) {
		opts.RequireSecurityHeaders = false
		results, err := newProber(opts).Probe(context.Background(), ts.URL)
		require.NoError(t, err)
		assert.Empty(t, failures(results))
	})
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;").Replace(s)
}

func TestProbe_AssetFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/js/broken.js":
			w.Header().Set("Content-Type", "text/javascript")
			fmt.Fprint(w, "function (")
		case "/empty.js":
			w.Header().Set("Content-Type", "text/javascript")
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	p := newProber(Options{Assets: []string{"/js/broken.js", "/empty.js", "/missing.css"}})

	results := []models.Result{
		p.CheckAsset(context.Background(), ts.URL, "/js/broken.js"),
		p.CheckAsset(context.Background(), ts.URL, "/empty.js"),
		p.CheckAsset(context.Background(), ts.URL, "/missing.css"),
	}

	assert.Contains(t, results[0].Problems[0], "javascript syntax")
	assert.Equal(t, []string{"empty body"}, results[1].Problems)
	assert.Equal(t, []string{"HTTP status 404, want 200"}, results[2].Problems)
	for _, r := range results {
		assert.False(t, r.Passed)
	}
}

func TestProbe_InvalidTarget(t *testing.T) {
	_, err := newProber(DefaultOptions()).Probe(context.Background(), "ftp://example.com")
	assert.Error(t, err)
}

func TestProbe_Cancelled(t *testing.T) {
	ts := newGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := newProber(DefaultOptions()).Probe(ctx, ts.URL)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotEmpty(t, results)
	assert.False(t, results[0].Passed)
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://h", "/cgi-bin/test", "http://h/cgi-bin/test"},
		{"http://h/", "/cgi-bin/test", "http://h/cgi-bin/test"},
		{"http://h/app/", "/js/main.js", "http://h/app/js/main.js"},
		{"http://h:8080?x=1#f", "/", "http://h:8080/"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, joinURL(tc.base, tc.path))
	}
}
