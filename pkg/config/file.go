package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidMode is returned when the serving mode is not cgi, fcgi or http.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidNetwork is returned when the fcgi listener network is not tcp or unix.
	ErrInvalidNetwork = errors.New("invalid network")
	// ErrInvalidPath is returned for route paths that do not start with "/".
	ErrInvalidPath = errors.New("invalid path")
)

// Server holds the settings of the gateway server. Every field can be set from
// a YAML file and overridden on the command line.
type Server struct {
	Mode            string        `yaml:"mode"`
	Network         string        `yaml:"network"`
	Listen          string        `yaml:"listen"`
	ScriptPath      string        `yaml:"script_path"`
	StaticDir       string        `yaml:"static_dir"`
	ServerSoftware  string        `yaml:"server_software"`
	Timezone        string        `yaml:"timezone"`
	MetricsPath     string        `yaml:"metrics_path"`
	SecurityHeaders bool          `yaml:"security_headers"`
	MaxBodyEcho     int64         `yaml:"max_body_echo"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownGrace   time.Duration `yaml:"shutdown_grace"`
}

// DefaultServer returns a Server with default values
func DefaultServer() *Server {
	return &Server{
		Mode:            DefaultMode,
		Network:         DefaultNetwork,
		Listen:          DefaultListen,
		ScriptPath:      DefaultScriptPath,
		ServerSoftware:  DefaultServerSoftware,
		MetricsPath:     DefaultMetricsPath,
		SecurityHeaders: true,
		MaxBodyEcho:     DefaultMaxBodyEcho,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		ShutdownGrace:   DefaultShutdownGrace,
	}
}

// Load reads a YAML file on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Server, error) {
	cfg := DefaultServer()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the server configuration.
func (s *Server) Validate() error {
	switch s.Mode {
	case "cgi", "fcgi", "http":
	default:
		return fmt.Errorf("%w: %q (want cgi, fcgi or http)", ErrInvalidMode, s.Mode)
	}

	if s.Mode == "fcgi" {
		switch s.Network {
		case "tcp", "unix":
		default:
			return fmt.Errorf("%w: %q (want tcp or unix)", ErrInvalidNetwork, s.Network)
		}
	}

	if !strings.HasPrefix(s.ScriptPath, "/") {
		return fmt.Errorf("%w: script path %q", ErrInvalidPath, s.ScriptPath)
	}
	if s.MetricsPath != "" && !strings.HasPrefix(s.MetricsPath, "/") {
		return fmt.Errorf("%w: metrics path %q", ErrInvalidPath, s.MetricsPath)
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
		}
	}

	if s.MaxBodyEcho < 0 {
		s.MaxBodyEcho = 0
	}
	return nil
}

// Location returns the time zone used to format the server time.
func (s *Server) Location() *time.Location {
	if s.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}
