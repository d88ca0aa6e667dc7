package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lcalzada-xor/cgiscope/pkg/cgienv"
	"github.com/lcalzada-xor/cgiscope/pkg/config"
	"github.com/lcalzada-xor/cgiscope/pkg/introspect"
	"github.com/lcalzada-xor/cgiscope/pkg/logger"
	"github.com/lcalzada-xor/cgiscope/pkg/models"
	"github.com/lcalzada-xor/cgiscope/pkg/runner"
	"github.com/lcalzada-xor/cgiscope/pkg/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, runner.ErrChecksFailed) {
			fmt.Fprintf(os.Stderr, "[!] %v\n", err)
		}
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    int
	silent     bool
}

func (g *globalFlags) logger() *logger.Logger {
	if g.silent {
		return logger.NewNop()
	}
	return logger.NewLogger(g.verbose)
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "cgiscope",
		Short: "CGI request introspection page and smoke prober",
		Long: "cgiscope renders an HTML report of the request and the CGI environment it runs in.\n" +
			"It serves the page as a CGI program, a FastCGI responder or a standalone HTTP\n" +
			"server, and probes deployed gateways for escaping and static asset integrity.\n\n" +
			"When GATEWAY_INTERFACE is set and no subcommand is given it answers one CGI request.",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if os.Getenv(models.EnvGatewayInterface) != "" {
				return runServer(cmd, g, &serverFlags{}, "cgi")
			}
			fmt.Fprint(cmd.ErrOrStderr(), runner.Banner)
			return cmd.Help()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	pf.CountVarP(&g.verbose, "verbose", "v", "Verbose output (-v, -vv)")
	pf.BoolVarP(&g.silent, "silent", "s", false, "Silent mode (suppress banner and logs)")

	root.AddCommand(
		newServeCmd(g, "serve", "http", "Serve the page over HTTP until interrupted"),
		newServeCmd(g, "fcgi", "fcgi", "Serve the page as a FastCGI responder on a tcp or unix socket"),
		newServeCmd(g, "cgi", "cgi", "Answer the single CGI request described by the process environment"),
		newRenderCmd(g),
		newProbeCmd(g),
		newVersionCmd(),
	)
	return root
}

// serverFlags hold command line overrides of the YAML configuration.
type serverFlags struct {
	listen            string
	network           string
	scriptPath        string
	staticDir         string
	serverSoftware    string
	timezone          string
	metricsPath       string
	noSecurityHeaders bool
	maxBodyEcho       int64
}

func (f *serverFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.listen, "listen", "l", config.DefaultListen, "Listen address (host:port, or socket path for unix)")
	fl.StringVar(&f.network, "network", config.DefaultNetwork, "FastCGI listener network: tcp or unix")
	fl.StringVarP(&f.scriptPath, "script-path", "p", config.DefaultScriptPath, "Route of the introspection page")
	fl.StringVarP(&f.staticDir, "static-dir", "d", "", "Directory of static files served for other paths")
	fl.StringVar(&f.serverSoftware, "server-software", config.DefaultServerSoftware, "SERVER_SOFTWARE advertised to the page")
	fl.StringVar(&f.timezone, "timezone", "", "IANA time zone of the server time (default local)")
	fl.StringVar(&f.metricsPath, "metrics-path", config.DefaultMetricsPath, "Prometheus metrics route, empty to disable")
	fl.BoolVar(&f.noSecurityHeaders, "no-security-headers", false, "Do not send CSP, nosniff and Referrer-Policy headers")
	fl.Int64Var(&f.maxBodyEcho, "max-body-echo", config.DefaultMaxBodyEcho, "Maximum POST body bytes echoed on the page")
}

// apply copies every flag set on the command line over cfg.
func (f *serverFlags) apply(cmd *cobra.Command, cfg *config.Server) {
	fl := cmd.Flags()
	if fl.Changed("listen") {
		cfg.Listen = f.listen
	}
	if fl.Changed("network") {
		cfg.Network = f.network
	}
	if fl.Changed("script-path") {
		cfg.ScriptPath = f.scriptPath
	}
	if fl.Changed("static-dir") {
		cfg.StaticDir = f.staticDir
	}
	if fl.Changed("server-software") {
		cfg.ServerSoftware = f.serverSoftware
	}
	if fl.Changed("timezone") {
		cfg.Timezone = f.timezone
	}
	if fl.Changed("metrics-path") {
		cfg.MetricsPath = f.metricsPath
	}
	if fl.Changed("no-security-headers") {
		cfg.SecurityHeaders = !f.noSecurityHeaders
	}
	if fl.Changed("max-body-echo") {
		cfg.MaxBodyEcho = f.maxBodyEcho
	}
}

func loadServerConfig(cmd *cobra.Command, g *globalFlags, f *serverFlags, mode string) (*config.Server, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	f.apply(cmd, cfg)
	cfg.Mode = mode
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newServeCmd(g *globalFlags, use, mode, short string) *cobra.Command {
	f := &serverFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, g, f, mode)
		},
	}
	f.register(cmd)
	return cmd
}

func runServer(cmd *cobra.Command, g *globalFlags, f *serverFlags, mode string) error {
	cfg, err := loadServerConfig(cmd, g, f, mode)
	if err != nil {
		return err
	}

	log := g.logger()
	defer log.Sync()

	// stdout carries the response in CGI mode.
	if mode != "cgi" {
		log.V("Serving %s on %s (script %s)", mode, cfg.Listen, cfg.ScriptPath)
	}
	if err := server.New(cfg, log).Run(cmd.Context()); err != nil {
		return fmt.Errorf("%s server: %w", mode, err)
	}
	return nil
}

func newRenderCmd(g *globalFlags) *cobra.Command {
	f := &serverFlags{}
	var output string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the page for the current process environment",
		Long: "render writes the introspection page built from the current process environment,\n" +
			"without the CGI response header. Request fields come from REQUEST_METHOD,\n" +
			"REQUEST_URI, QUERY_STRING and HTTP_USER_AGENT.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(cmd, g, f, "cgi")
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}
			return renderEnvironment(w, cgienv.FromEnviron(os.Environ()), time.Now().In(cfg.Location()))
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the page to a file instead of stdout")
	return cmd
}

func renderEnvironment(w io.Writer, env models.EnvironmentSnapshot, now time.Time) error {
	if err := introspect.New().RenderTo(w, env, models.RequestMetadata{}, now); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

func newProbeCmd(g *globalFlags) *cobra.Command {
	opts := runner.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "probe [base-url...]",
		Short: "Probe deployed gateways for escaping and asset integrity",
		Example: "  cgiscope probe http://localhost:8080\n" +
			"  cat targets.txt | cgiscope probe -o json\n" +
			"  cgiscope probe -a / -a /js/main.js -H 'Cookie: session=123' https://example.com",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Targets = args
			opts.Silent = g.silent
			opts.Verbose = g.verbose >= 1
			opts.VeryVerbose = g.verbose >= 2

			r := runner.NewRunner(opts, g.logger())
			r.SetIO(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
			_, err := r.Run(cmd.Context())
			return err
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&opts.Concurrency, "concurrency", "C", opts.Concurrency, "Number of concurrent workers")
	fl.DurationVarP(&opts.Timeout, "timeout", "t", opts.Timeout, "Request timeout")
	fl.StringVarP(&opts.Proxy, "proxy", "x", "", "Proxy URL (e.g. http://127.0.0.1:8080)")
	fl.StringArrayVarP(&opts.Headers, "header", "H", nil, "Custom header (e.g. 'Cookie: session=123')")
	fl.IntVarP(&opts.RateLimit, "rate-limit", "r", 0, "Maximum requests per second (0 for unlimited)")
	fl.StringVarP(&opts.ScriptPath, "script-path", "p", opts.ScriptPath, "Route of the introspection page")
	fl.StringArrayVarP(&opts.Assets, "asset", "a", opts.Assets, "Static asset path to check (repeatable)")
	fl.BoolVar(&opts.NoPost, "no-post", false, "Skip the POST echo check")
	fl.BoolVar(&opts.NoSecurityHeaders, "no-security-headers", false, "Do not require CSP and nosniff headers")
	fl.StringVarP(&opts.OutputFormat, "output", "o", opts.OutputFormat, "Output format: url, human, json")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cgiscope %s\n", config.Version)
		},
	}
}
