package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/lcalzada-xor/cgiscope/pkg/config"
	"github.com/lcalzada-xor/cgiscope/pkg/probe"
)

// Options holds all configuration options for the probe runner
type Options struct {
	// Probing
	Concurrency int
	Timeout     time.Duration
	Proxy       string
	Headers     []string
	RateLimit   int

	// Checks
	ScriptPath        string
	Assets            []string
	NoPost            bool
	NoSecurityHeaders bool

	// Output
	OutputFormat string
	Verbose      bool
	VeryVerbose  bool
	Silent       bool

	// Targets are probed before anything read from the input stream.
	Targets []string
}

// DefaultOptions returns a new Options struct with default values
func DefaultOptions() *Options {
	return &Options{
		Concurrency:  config.DefaultConcurrency,
		Timeout:      config.DefaultTimeout,
		ScriptPath:   config.DefaultScriptPath,
		Assets:       append([]string(nil), config.DefaultAssets...),
		OutputFormat: "human",
	}
}

// VerboseLevel maps the verbosity flags to a logger level.
func (o *Options) VerboseLevel() int {
	switch {
	case o.VeryVerbose:
		return 2
	case o.Verbose:
		return 1
	}
	return 0
}

// Validate normalizes the options and rejects unusable values.
func (o *Options) Validate() error {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	switch o.OutputFormat {
	case "url", "human", "json":
	default:
		return fmt.Errorf("invalid output format %q (want url, human or json)", o.OutputFormat)
	}
	if !strings.HasPrefix(o.ScriptPath, "/") {
		return fmt.Errorf("script path %q must start with /", o.ScriptPath)
	}
	for _, a := range o.Assets {
		if !strings.HasPrefix(a, "/") {
			return fmt.Errorf("asset path %q must start with /", a)
		}
	}
	_, err := ParseHeaders(o.Headers)
	return err
}

// ProbeOptions converts the runner options to prober options.
func (o *Options) ProbeOptions() (probe.Options, error) {
	headers, err := ParseHeaders(o.Headers)
	if err != nil {
		return probe.Options{}, err
	}
	return probe.Options{
		ScriptPath:             o.ScriptPath,
		Assets:                 o.Assets,
		Headers:                headers,
		CheckPost:              !o.NoPost,
		RequireSecurityHeaders: !o.NoSecurityHeaders,
	}, nil
}

// ParseHeaders parses "Name: value" pairs.
func ParseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (want 'Name: value')", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
