// Package introspect renders the request introspection page: runtime and
// server information, the request metadata and the CGI variables of one request.
//
// Every value taken from the request or the environment goes through
// html/template contextual escaping. Nothing is interpolated raw.
package introspect

import (
	"bytes"
	_ "embed"
	"html/template"
	"io"
	"math/rand/v2"
	"runtime"
	"strings"
	"time"

	"github.com/lcalzada-xor/cgiscope/pkg/config"
	"github.com/lcalzada-xor/cgiscope/pkg/models"
)

// TimeLayout is the server time format, YYYY-MM-DD HH:MM:SS.
const TimeLayout = "2006-01-02 15:04:05"

// RandomMax is the upper bound (inclusive) of the random number on the page.
const RandomMax = 1000

//go:embed templates/page.html
var pageSource string

var pageTemplate = template.Must(template.New("page").Parse(pageSource))

// Source draws the random number shown on the page. Implementations shared
// between requests must be safe for concurrent use.
type Source interface {
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// processSource uses the math/rand/v2 top-level generator, which is safe for
// concurrent use.
type processSource struct{}

func (processSource) IntN(n int) int { return rand.IntN(n) }

// ProcessSource returns the process-wide random source.
func ProcessSource() Source { return processSource{} }

// Renderer renders introspection pages. A Renderer holds no per-request state
// and may be used from many goroutines.
type Renderer struct {
	prefixes       []string
	runtimeVersion string
	random         Source
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithRandom replaces the random source.
func WithRandom(src Source) Option {
	return func(r *Renderer) { r.random = src }
}

// WithRuntimeVersion replaces the runtime version string.
func WithRuntimeVersion(v string) Option {
	return func(r *Renderer) { r.runtimeVersion = v }
}

// WithPrefixes replaces the variable prefixes listed on the page.
func WithPrefixes(prefixes []string) Option {
	return func(r *Renderer) { r.prefixes = append([]string(nil), prefixes...) }
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		prefixes:       config.VariablePrefixes,
		runtimeVersion: runtime.Version(),
		random:         ProcessSource(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRenderer = New()

// Render renders a page with the default renderer.
func Render(env models.EnvironmentSnapshot, req models.RequestMetadata, now time.Time) string {
	return defaultRenderer.Render(env, req, now)
}

// Render returns the complete HTML document for one request.
func (r *Renderer) Render(env models.EnvironmentSnapshot, req models.RequestMetadata, now time.Time) string {
	var buf bytes.Buffer
	// bytes.Buffer writes cannot fail and the view holds only strings and ints.
	_ = r.RenderTo(&buf, env, req, now)
	return buf.String()
}

// RenderTo writes the document to w. The only errors are those returned by w.
func (r *Renderer) RenderTo(w io.Writer, env models.EnvironmentSnapshot, req models.RequestMetadata, now time.Time) error {
	return Execute(w, r.View(env, req, now))
}

// Execute writes the document for an already resolved view.
func Execute(w io.Writer, v View) error {
	return pageTemplate.Execute(w, v)
}

// View is the data the page template is executed with.
type View struct {
	RuntimeVersion string
	ServerTime     string
	ServerSoftware string

	Method        string
	URI           string
	QueryString   string
	UserAgent     string
	ContentType   string
	ContentLength string

	Variables []models.Variable
	Post      PostData

	Timestamp    int64
	RandomNumber int
}

// PostData is the "POST Data" block of the page.
type PostData struct {
	IsPost    bool
	Body      string
	Truncated bool
}

// View resolves defaults, filters the environment and draws the random number.
func (r *Renderer) View(env models.EnvironmentSnapshot, req models.RequestMetadata, now time.Time) View {
	req = req.Resolve(env)

	v := View{
		RuntimeVersion: r.runtimeVersion,
		ServerTime:     now.Format(TimeLayout),
		ServerSoftware: env.Lookup(models.EnvServerSoftware).Or(config.FallbackUnknown),

		Method:        req.Method.Or(config.FallbackUnknown),
		URI:           req.URI.Or(config.FallbackUnknown),
		QueryString:   req.QueryString.Or(config.FallbackNone),
		UserAgent:     req.UserAgent.Or(config.FallbackUnknown),
		ContentType:   req.ContentType.Or(config.FallbackNone),
		ContentLength: req.ContentLength.Or("0"),

		Variables: env.Filter(r.prefixes),

		Timestamp:    now.Unix(),
		RandomNumber: r.random.IntN(RandomMax) + 1,
	}

	if req.IsPost() {
		v.Post = PostData{
			IsPost:    true,
			Body:      strings.ToValidUTF8(string(req.Body), "\uFFFD"),
			Truncated: req.BodyTruncated,
		}
	}
	return v
}
