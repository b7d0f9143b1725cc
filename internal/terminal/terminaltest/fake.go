// Package terminaltest provides an in-memory pseudo-terminal for tests of
// code built on terminal.Manager.
package terminaltest

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"sync"

	"github.com/Yahook/mcp-terminal/internal/terminal"
)

// Process is a scripted child. Output written with Emit is what the manager
// reads; Exit or Close end the stream.
type Process struct {
	Cmd *exec.Cmd

	pid  int
	outR *io.PipeReader
	outW *io.PipeWriter

	mu       sync.Mutex
	written  bytes.Buffer
	exited   bool
	exitCode int
}

// Emit makes s appear on the child's output. It blocks until the manager's
// drain task has read it.
func (p *Process) Emit(s string) {
	_, _ = p.outW.Write([]byte(s))
}

// Exit simulates the child exiting on its own with code.
func (p *Process) Exit(code int) {
	p.mu.Lock()
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()
	_ = p.outW.Close()
}

// Input returns everything written to the child so far.
func (p *Process) Input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func (p *Process) Read(b []byte) (int, error) { return p.outR.Read(b) }

func (p *Process) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *Process) Pid() int { return p.pid }

func (p *Process) TryWait() (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited, nil
}

func (p *Process) Kill() error {
	p.mu.Lock()
	if !p.exited {
		p.exited = true
		p.exitCode = 137
	}
	p.mu.Unlock()
	return nil
}

func (p *Process) Close() error {
	p.mu.Lock()
	p.exited = true
	p.mu.Unlock()
	return p.outW.CloseWithError(errors.New("master closed"))
}

// Opener hands out Processes. OnStart, when set, runs in its own goroutine
// for each new process, which lets a test script a command's behaviour.
type Opener struct {
	OnStart func(*Process)
	Err     error

	mu    sync.Mutex
	procs []*Process
}

// Start implements terminal.Opener.
func (o *Opener) Start(cmd *exec.Cmd, _ terminal.Size) (terminal.Process, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	r, w := io.Pipe()
	p := &Process{Cmd: cmd, pid: 2000 + len(o.procs), outR: r, outW: w}
	o.procs = append(o.procs, p)
	if o.OnStart != nil {
		go o.OnStart(p)
	}
	return p, nil
}

// Last returns the most recently started process, or nil.
func (o *Opener) Last() *Process {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.procs) == 0 {
		return nil
	}
	return o.procs[len(o.procs)-1]
}

// NewManager returns a manager wired to a fresh Opener.
func NewManager() (*terminal.Manager, *Opener) {
	opener := &Opener{}
	return terminal.NewManager(nil).WithOpener(opener), opener
}
