package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cgi"
	"net/http/fcgi"
	"os"
)

// Run serves according to the configured mode until ctx is cancelled or, in
// CGI mode, the single request has been answered.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Mode {
	case "cgi":
		return s.ServeCGI()
	case "fcgi":
		ln, err := Listen(s.cfg.Network, s.cfg.Listen)
		if err != nil {
			return err
		}
		return s.ServeFCGI(ctx, ln)
	default:
		ln, err := Listen("tcp", s.cfg.Listen)
		if err != nil {
			return err
		}
		return s.ServeListener(ctx, ln)
	}
}

// Listen opens a tcp or unix listener. A stale unix socket file is removed first.
func Listen(network, addr string) (net.Listener, error) {
	if network == "unix" {
		if err := os.Remove(addr); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", addr, err)
		}
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s %s: %w", network, addr, err)
	}
	return ln, nil
}

// ServeCGI answers the request described by the process environment and
// stdin, writing the response to stdout.
func (s *Server) ServeCGI() error {
	s.log.V("Serving one CGI request")
	if err := cgi.Serve(s.engine); err != nil {
		return fmt.Errorf("cgi: %w", err)
	}
	return nil
}

// ServeFCGI accepts FastCGI connections on ln until ctx is cancelled.
func (s *Server) ServeFCGI(ctx context.Context, ln net.Listener) error {
	s.log.Info("FastCGI responder on %s://%s", ln.Addr().Network(), ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- fcgi.Serve(ln, s.engine)
	}()

	select {
	case <-ctx.Done():
		ln.Close()
		<-errCh
		s.log.V("FastCGI responder stopped")
		return nil
	case err := <-errCh:
		return fmt.Errorf("fcgi: %w", err)
	}
}

// ServeListener serves plain HTTP on ln until ctx is cancelled, then shuts down
// within the configured grace period.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.log.Info("Listening on http://%s%s", ln.Addr(), s.cfg.ScriptPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		<-errCh
		s.log.V("HTTP listener stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http: %w", err)
	}
}
