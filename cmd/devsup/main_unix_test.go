//go:build !windows

package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemon_StartPortStop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	d, err := startDaemon(cfg, quietLogger())
	require.NoError(t, err)
	defer func() { _ = d.Close(context.Background()) }()

	api := "http://" + d.Addr() + "/api"
	out, err := run(t, "start", "--api-url", api, "--key", "1", "--cwd", t.TempDir(),
		"--command", `echo "ready on port 3000"; sleep 30`)
	require.NoError(t, err)
	assert.Contains(t, out, "sleep 30")

	require.Eventually(t, func() bool {
		out, err := run(t, "port", "--api-url", api, "--key", "1")
		return err == nil && strings.TrimSpace(out) == "3000"
	}, 5*time.Second, 50*time.Millisecond)

	out, err = run(t, "list", "--api-url", api)
	require.NoError(t, err)
	assert.Contains(t, out, `"port": 3000`)

	_, err = run(t, "stop", "--api-url", api, "--key", "1")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return d.sup.Len() == 0 }, 5*time.Second, 20*time.Millisecond)
}
