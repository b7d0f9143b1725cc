package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yahook/mcp-terminal/internal/infrastructure/config"
)

func TestVersionFlag(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), Version)
}

func TestRunRejectsInvalidTransport(t *testing.T) {
	err := run(context.Background(), []string{"--transport", "carrier-pigeon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transport")
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("LOG_LEVEL", "warn")

	flags := &serveFlags{}
	root := newRootCommand()
	// Rebind so the test can see the parsed values.
	root.ResetFlags()
	root.Flags().StringVar(&flags.transport, "transport", "", "")
	root.Flags().IntVar(&flags.port, "port", 0, "")
	root.Flags().StringVar(&flags.logLevel, "log-level", "", "")
	require.NoError(t, root.ParseFlags([]string{"--transport", "http", "--log-level", "debug"}))

	cfg, err := loadConfig(root, flags)
	require.NoError(t, err)
	assert.Equal(t, config.TransportHTTP, cfg.Transport)
	assert.Equal(t, 9100, cfg.Server.Port, "env applies when the flag is unset")
	assert.Equal(t, "debug", cfg.Logging.Level, "flag beats env")
}

func TestExecRequiresCommand(t *testing.T) {
	err := run(context.Background(), []string{"exec"})
	require.Error(t, err)
}

func TestExecAcceptsCommandWithArguments(t *testing.T) {
	exec := newExecCommand(&serveFlags{})
	assert.NoError(t, exec.Args(exec, []string{"ls", "-la"}))
	assert.Error(t, exec.Args(exec, nil))
}

func TestExecJoinsArguments(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pty test in short mode")
	}
	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("pseudo-terminals unavailable: %v", err)
	}
	_ = tty.Close()
	_ = ptmx.Close()
	t.Setenv("SHELL", "/bin/sh")
	t.Setenv("LOG_LEVEL", "error")

	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"exec", "--timeout", "10s", "--", "printf", "%s-%s", "a", "b"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "a-b")
}

func TestExitError(t *testing.T) {
	assert.Equal(t, "exit status 3", (&exitError{code: 3}).Error())
}
