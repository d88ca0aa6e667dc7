package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/lcalzada-xor/cgiscope/pkg/config"
	"github.com/lcalzada-xor/cgiscope/pkg/logger"
	"github.com/lcalzada-xor/cgiscope/pkg/network"
	"github.com/lcalzada-xor/cgiscope/pkg/output"
	"github.com/lcalzada-xor/cgiscope/pkg/probe"
)

// Banner is printed to stderr before a run unless silent.
const Banner = "\n" +
	"   \x1b[38;5;93m▄▀▀▀▀▄  ▄▀▀▀▀▄  ▀█▀  ▄▀▀▀▀▄ ▄▀▀▀▀▄ ▄▀▀▀▀▄ ▄▀▀▀▄ ▄▀▀▀▀\x1b[0m\n" +
	"  \x1b[38;5;129m█       █   ▄▄   █   ▀▄▄▄   █      █    █ █▄▄▄▀ █▄▄▄ \x1b[0m\n" +
	"  \x1b[38;5;141m▀▄▄▄▄▀  ▀▄▄▄▄▀  ▄█▄  ▄▄▄▄▀  ▀▄▄▄▄▀ ▀▄▄▄▄▀ █     ▀▄▄▄▄\x1b[0m\n" +
	"           \x1b[38;5;141m" + config.Version + "\x1b[0m | \x1b[38;5;141m" + config.Author + "\x1b[0m\n"

// ErrChecksFailed is returned by Run when at least one check failed.
var ErrChecksFailed = errors.New("probe checks failed")

// Runner handles the execution of the probing process
type Runner struct {
	options *Options
	log     *logger.Logger
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
}

// NewRunner creates a new Runner reading targets from stdin and writing
// results to stdout.
func NewRunner(options *Options, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{options: options, log: log, in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
}

// SetIO replaces the target input and the result and banner outputs. A nil
// argument keeps the current stream.
func (r *Runner) SetIO(in io.Reader, out, errOut io.Writer) {
	if in != nil {
		r.in = in
	}
	if out != nil {
		r.out = out
	}
	if errOut != nil {
		r.errOut = errOut
	}
}

// Run probes every target and prints results as they complete. Targets come
// from Options.Targets and, when none are given, from the input stream.
func (r *Runner) Run(ctx context.Context) (output.Summary, error) {
	var summary output.Summary
	if err := r.options.Validate(); err != nil {
		return summary, err
	}
	probeOpts, err := r.options.ProbeOptions()
	if err != nil {
		return summary, err
	}

	if !r.options.Silent {
		fmt.Fprint(r.errOut, Banner)
		if r.log.IsVerbose() {
			r.log.V("Concurrency: %d workers", r.options.Concurrency)
			r.log.V("Timeout: %v", r.options.Timeout)
			r.log.V("Checks: %s", probeOpts)
		}
	}

	client := network.NewClient(r.options.Timeout, r.options.Proxy, r.options.Concurrency, float64(r.options.RateLimit))
	client.UserAgent = config.DefaultUserAgent
	prober := probe.New(client, probeOpts, r.log)

	jobs := make(chan string)
	var (
		wg         sync.WaitGroup
		statsMutex sync.Mutex
		outMutex   sync.Mutex
	)

	for i := 0; i < r.options.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				if ctx.Err() != nil {
					continue
				}
				r.log.V("Probing: %s", target)

				results, err := prober.Probe(ctx, target)
				if err != nil && !errors.Is(err, context.Canceled) {
					r.log.Error("Error probing %s: %v", target, err)
				}

				failed := 0
				outMutex.Lock()
				for _, res := range results {
					if !res.Passed {
						failed++
					}
					if r.options.OutputFormat == "url" && res.Passed {
						continue
					}
					fmt.Fprintln(r.out, output.Format(res, r.options.OutputFormat))
				}
				outMutex.Unlock()

				statsMutex.Lock()
				summary.Targets++
				summary.Checks += len(results)
				summary.Failed += failed
				if err != nil && len(results) == 0 {
					summary.Failed++
				}
				statsMutex.Unlock()
			}
		}()
	}

	r.feed(ctx, jobs)
	close(jobs)
	wg.Wait()

	summary.Requests = prober.Requests()
	if !r.options.Silent {
		fmt.Fprintln(r.errOut, "")
		fmt.Fprintln(r.errOut, output.FormatSummary(summary))
	}

	if ctx.Err() != nil {
		return summary, ctx.Err()
	}
	if summary.Failed > 0 {
		return summary, ErrChecksFailed
	}
	return summary, nil
}

func (r *Runner) feed(ctx context.Context, jobs chan<- string) {
	send := func(target string) bool {
		select {
		case jobs <- target:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if len(r.options.Targets) > 0 {
		for _, t := range r.options.Targets {
			if !send(t) {
				return
			}
		}
		return
	}

	scanner := bufio.NewScanner(r.in)
	for scanner.Scan() {
		target := strings.TrimSpace(scanner.Text())
		if target == "" || strings.HasPrefix(target, "#") {
			continue
		}
		if !send(target) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		r.log.Error("Error reading targets: %v", err)
	}
}
