package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7788", c.Server.Listen)
	assert.Equal(t, "/api", c.Server.BasePath)
	assert.Equal(t, 3*time.Second, c.Supervisor.GracePeriod)
	assert.Equal(t, 2*time.Second, c.Supervisor.ShutdownGrace)
	assert.Equal(t, time.Second, c.Supervisor.ReapTimeout)
	assert.Equal(t, 200*time.Millisecond, c.Supervisor.DrainTimeout)
	assert.Equal(t, 2048, c.Supervisor.ScanBuffer)
	assert.Equal(t, uint16(120), c.Supervisor.Cols)
	assert.Equal(t, uint16(30), c.Supervisor.Rows)
	assert.Equal(t, "xterm-256color", c.Supervisor.Term)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 10, c.Log.File.MaxSizeMB)
	assert.False(t, c.Metrics.Enabled)
	assert.Equal(t, "devsup", c.NATS.Prefix)
	assert.Equal(t, "devsup.lock", filepath.Base(c.LockFile))
}

func TestLoad_TOML(t *testing.T) {
	p := writeFile(t, "devsup.toml", `
env = ["BROWSER=none"]

[server]
listen = "0.0.0.0:9000"
base_path = "v1/"
token = "s3cret"

[supervisor]
grace_period = "5s"
scan_buffer = 4096

[log]
level = "debug"
format = "json"

[history]
enabled = true
dsn = ["sqlite://:memory:"]
`)
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", c.Server.Listen)
	assert.Equal(t, "/v1", c.Server.BasePath)
	assert.Equal(t, "s3cret", c.Server.Token)
	assert.Equal(t, 5*time.Second, c.Supervisor.GracePeriod)
	assert.Equal(t, 2*time.Second, c.Supervisor.ShutdownGrace)
	assert.Equal(t, 4096, c.Supervisor.ScanBuffer)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "json", c.Log.Format)
	assert.Equal(t, []string{"sqlite://:memory:"}, c.History.DSN)
	assert.Equal(t, []string{"BROWSER=none"}, c.Env)
}

func TestLoad_YAML(t *testing.T) {
	p := writeFile(t, "devsup.yaml", "nats:\n  enabled: true\n  url: nats://broker:4222\n  prefix: ide\n  token: s3cret\n")
	c, err := Load(p)
	require.NoError(t, err)
	assert.True(t, c.NATS.Enabled)
	assert.Equal(t, "nats://broker:4222", c.NATS.URL)
	assert.Equal(t, "ide", c.NATS.Prefix)
	assert.Equal(t, "s3cret", c.NATS.Token)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DEVSUP_SERVER_LISTEN", "127.0.0.1:1234")
	t.Setenv("DEVSUP_SUPERVISOR_GRACE_PERIOD", "750ms")
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1234", c.Server.Listen)
	assert.Equal(t, 750*time.Millisecond, c.Supervisor.GracePeriod)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	p := writeFile(t, "bad.toml", "[supervisor]\ngrace_period = \"0s\"\n")
	_, err = Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grace_period")

	p = writeFile(t, "hist.toml", "[history]\nenabled = true\n")
	_, err = Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history.dsn")
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{"": "", "/": "", "api": "/api", "/api/": "/api", " /x/y ": "/x/y"} {
		assert.Equal(t, want, normalizeBasePath(in), in)
	}
}

func TestGlobalEnv(t *testing.T) {
	dotenv := writeFile(t, ".env", "# comment\nA=1\nexport B=\"two\"\n\nC = 3\nnoequals\n")
	c := &Config{EnvFiles: []string{dotenv}, Env: []string{"A=override"}}
	got, err := c.GlobalEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"A=1", "B=two", "C=3", "A=override"}, got)

	c.EnvFiles = []string{filepath.Join(t.TempDir(), "nope.env")}
	_, err = c.GlobalEnv()
	assert.Error(t, err)
}
