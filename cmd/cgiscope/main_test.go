package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cgiscope/pkg/config"
	"github.com/lcalzada-xor/cgiscope/pkg/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "cgiscope "+config.Version+"\n", out)
}

func TestRenderEnvironment(t *testing.T) {
	env := models.EnvironmentSnapshot{
		"REQUEST_METHOD":  "GET",
		"REQUEST_URI":     "/cgi-bin/test?a=1",
		"QUERY_STRING":    "a=1",
		"HTTP_USER_AGENT": "<b>cli</b>",
		"SERVER_SOFTWARE": "Apache/2.4",
		"PATH":            "/usr/bin",
	}
	var buf bytes.Buffer
	require.NoError(t, renderEnvironment(&buf, env, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)))

	page := buf.String()
	assert.Contains(t, page, "2024-05-06 07:08:09")
	assert.Contains(t, page, "Apache/2.4")
	assert.Contains(t, page, "&lt;b&gt;cli&lt;/b&gt;")
	assert.NotContains(t, page, "/usr/bin")
}

func TestRenderCmd_OutputFile(t *testing.T) {
	t.Setenv("REQUEST_METHOD", "GET")
	t.Setenv("HTTP_USER_AGENT", "render-test")

	path := filepath.Join(t.TempDir(), "page.html")
	_, err := execute(t, "render", "--timezone", "UTC", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "render-test")
	assert.Contains(t, string(data), `<a href="/">`)
}

func TestRenderCmd_InvalidTimezone(t *testing.T) {
	_, err := execute(t, "render", "--timezone", "Mars/Olympus")
	assert.Error(t, err)
}

func TestServerFlags_Apply(t *testing.T) {
	f := &serverFlags{}
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--listen", ":9000", "--no-security-headers", "--script-path", "/probe"}))

	cfg := config.DefaultServer()
	cfg.StaticDir = "/srv/www"
	f.apply(cmd, cfg)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "/probe", cfg.ScriptPath)
	assert.False(t, cfg.SecurityHeaders)
	assert.Equal(t, "/srv/www", cfg.StaticDir, "unset flags keep the file value")
	assert.Equal(t, config.DefaultMetricsPath, cfg.MetricsPath)
}

func TestLoadServerConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cgiscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 127.0.0.1:7000\nscript_path: /from-file\ntimezone: UTC\n"), 0o644))

	g := &globalFlags{configPath: path}
	f := &serverFlags{}
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--script-path", "/from-flag"}))

	cfg, err := loadServerConfig(cmd, g, f, "http")
	require.NoError(t, err)
	assert.Equal(t, "http", cfg.Mode)
	assert.Equal(t, "127.0.0.1:7000", cfg.Listen)
	assert.Equal(t, "/from-flag", cfg.ScriptPath)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestProbeCmd_NoTargets(t *testing.T) {
	_, err := execute(t, "--silent", "probe", "-o", "json")
	assert.NoError(t, err)
}

func TestProbeCmd_InvalidFormat(t *testing.T) {
	_, err := execute(t, "--silent", "probe", "-o", "xml", "http://localhost")
	assert.Error(t, err)
}

func TestRootCmd_Help(t *testing.T) {
	t.Setenv(models.EnvGatewayInterface, "")
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "probe")
	assert.Contains(t, out, "serve")
}
