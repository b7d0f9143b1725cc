package terminal

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultExecTimeout applies when Execute is called without a timeout.
	DefaultExecTimeout = 300 * time.Second

	pollInterval = 50 * time.Millisecond

	// drainGrace bounds how long Execute waits for trailing output after the
	// child exits. A background grandchild can keep the slave open forever.
	drainGrace = 2 * time.Second
)

// ExecResult is the outcome of a one-shot command.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	ExitCode int    `json:"exit_code"`
}

// Execute runs command with `$SHELL -c` on a throwaway pseudo-terminal and
// waits for it to exit. On timeout or context cancellation the child is
// killed before the error is returned.
func (m *Manager) Execute(ctx context.Context, command, cwd string, timeout time.Duration) (*ExecResult, error) {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}

	workingDir := resolveCwd(cwd)
	shell := resolveShell()

	cmd := exec.Command(shell, "-c", command)
	cmd.Dir = workingDir
	cmd.Env = childEnv()

	start := time.Now()
	proc, err := m.opener.Start(cmd, DefaultSize)
	if err != nil {
		m.metrics.ExecFinished("spawn_error", 0)
		return nil, fmt.Errorf("%w: failed to spawn command: %v", ErrPty, err)
	}

	output := NewBuffer(ExecBufferSize)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		drain(proc, output, func(error) {})
	}()

	exitCode, err := waitWithTimeout(ctx, proc, timeout, pollInterval)
	elapsed := time.Since(start)
	if err != nil {
		if killErr := proc.Kill(); killErr != nil {
			m.logger.Warn("failed to kill command", zap.Int("pid", proc.Pid()), zap.Error(killErr))
		}
		_ = proc.Close()

		status := "error"
		var timeoutErr *TimeoutError
		if errors.As(err, &timeoutErr) {
			status = "timeout"
			m.logger.Warn("command timed out",
				zap.String("command", command),
				zap.Duration("timeout", timeout),
				zap.Duration("elapsed", elapsed),
			)
		}
		m.metrics.ExecFinished(status, elapsed.Seconds())
		return nil, err
	}

	select {
	case <-drained:
	case <-time.After(drainGrace):
		m.logger.Debug("command output still open after exit", zap.Int("pid", proc.Pid()))
	}
	_ = proc.Close()
	select {
	case <-drained:
	case <-time.After(drainGrace):
		m.logger.Warn("command output still open after close", zap.Int("pid", proc.Pid()))
	}

	m.metrics.ExecFinished("ok", elapsed.Seconds())
	m.logger.Debug("command finished",
		zap.String("command", command),
		zap.Int("exit_code", exitCode),
		zap.Duration("elapsed", elapsed),
	)

	return &ExecResult{
		Stdout:   Sanitize(output.Snapshot()),
		ExitCode: exitCode,
	}, nil
}

// waiter is the non-blocking half of Process the supervisor needs.
type waiter interface {
	TryWait() (exitCode int, exited bool, err error)
}

// waitWithTimeout polls w every interval until it exits, the timeout passes
// or ctx is done. It does not kill anything itself.
func waitWithTimeout(ctx context.Context, w waiter, timeout, interval time.Duration) (int, error) {
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		code, exited, err := w.TryWait()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrWait, err)
		}
		if exited {
			return code, nil
		}

		if elapsed := time.Since(start); elapsed >= timeout {
			return 0, &TimeoutError{Limit: timeout, Elapsed: elapsed}
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}
