package terminal

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Size is a terminal geometry in character cells.
type Size struct {
	Rows uint16
	Cols uint16
}

// DefaultSize is used for every session and execute call.
var DefaultSize = Size{Rows: 24, Cols: 200}

// Process is a child attached to the slave side of a pseudo-terminal, as seen
// from the master side. Read and Write may be called concurrently.
type Process interface {
	io.Reader
	io.Writer

	// Pid returns the child's process id.
	Pid() int

	// TryWait reports the exit code if the child has exited. It never blocks.
	TryWait() (exitCode int, exited bool, err error)

	// Kill force-terminates the child's process group. Killing an already
	// exited child is not an error.
	Kill() error

	// Close releases the master handle and terminates the child.
	Close() error
}

// Opener starts a command attached to a fresh pseudo-terminal. The slave
// handle is released before Start returns.
type Opener interface {
	Start(cmd *exec.Cmd, size Size) (Process, error)
}

// PtyOpener opens real pseudo-terminals through creack/pty.
type PtyOpener struct{}

// Start implements Opener.
func (PtyOpener) Start(cmd *exec.Cmd, size Size) (Process, error) {
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: size.Rows,
		Cols: size.Cols,
	})
	if err != nil {
		return nil, err
	}

	ptmx, err = pollable(ptmx)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	p := &ptyProcess{
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
	}
	go p.wait()

	return p, nil
}

// pollable swaps the master for a non-blocking duplicate registered with the
// runtime poller, so Close interrupts a pending Read. pty.Start hands back a
// blocking descriptor, and a blocked read(2) outlives close(2) for as long as
// any process still holds the slave open.
func pollable(ptmx *os.File) (*os.File, error) {
	defer ptmx.Close()

	fd, err := unix.FcntlInt(ptmx.Fd(), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return os.NewFile(uintptr(fd), ptmx.Name()), nil
}

type ptyProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File

	// done is closed once the child has been reaped.
	done     chan struct{}
	exitCode int
	waitErr  error

	closeOnce sync.Once
	closeErr  error
}

// wait reaps the child so neither sessions nor timed-out executes leave
// zombies behind.
func (p *ptyProcess) wait() {
	defer close(p.done)

	err := p.cmd.Wait()
	if err == nil {
		return
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		p.waitErr = err
		return
	}

	p.exitCode = exitErr.ExitCode()
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		p.exitCode = 128 + int(ws.Signal())
	}
}

func (p *ptyProcess) Read(b []byte) (int, error) {
	return p.ptmx.Read(b)
}

func (p *ptyProcess) Write(b []byte) (int, error) {
	return p.ptmx.Write(b)
}

func (p *ptyProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *ptyProcess) TryWait() (int, bool, error) {
	select {
	case <-p.done:
		return p.exitCode, true, p.waitErr
	default:
		return 0, false, nil
	}
}

func (p *ptyProcess) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	return p.killGroup()
}

// killGroup signals the whole process group. The child is a session leader
// (pty start uses setsid), so its pid is also the group id.
func (p *ptyProcess) killGroup() error {
	pid := p.cmd.Process.Pid
	err := unix.Kill(-pid, unix.SIGKILL)
	if err == nil || errors.Is(err, unix.ESRCH) {
		return nil
	}

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *ptyProcess) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.ptmx.Close()
		if err := p.killGroup(); err != nil && p.closeErr == nil {
			p.closeErr = err
		}
	})
	return p.closeErr
}
