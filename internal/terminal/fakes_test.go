package terminal

import (
	"bytes"
	"errors"
	"io"
	"os/exec"
	"sync"
)

// fakeProcess stands in for a pty-backed child. Output written with emit is
// what the drain task reads; exit/Close end the stream.
type fakeProcess struct {
	pid  int
	outR *io.PipeReader
	outW *io.PipeWriter

	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
	exited   bool
	exitCode int
	waitErr  error
	kills    int
	closes   int
}

func newFakeProcess(pid int) *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{pid: pid, outR: r, outW: w}
}

func (p *fakeProcess) emit(s string) {
	_, _ = p.outW.Write([]byte(s))
}

// exit simulates the child exiting on its own.
func (p *fakeProcess) exit(code int) {
	p.mu.Lock()
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()
	_ = p.outW.Close()
}

func (p *fakeProcess) Read(b []byte) (int, error) { return p.outR.Read(b) }

func (p *fakeProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) TryWait() (int, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited, p.waitErr
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.kills++
	if !p.exited {
		p.exited = true
		p.exitCode = 137
	}
	p.mu.Unlock()
	return nil
}

func (p *fakeProcess) Close() error {
	p.mu.Lock()
	p.closes++
	p.exited = true
	p.mu.Unlock()
	return p.outW.CloseWithError(errors.New("master closed"))
}

func (p *fakeProcess) input() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func (p *fakeProcess) counts() (kills, closes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills, p.closes
}

// fakeOpener hands out fakeProcesses and remembers the commands it started.
type fakeOpener struct {
	mu    sync.Mutex
	err   error
	cmds  []*exec.Cmd
	procs []*fakeProcess
	// onStart, when set, runs against each new process before Start returns.
	onStart func(*fakeProcess)
}

func (o *fakeOpener) Start(cmd *exec.Cmd, size Size) (Process, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	p := newFakeProcess(1000 + len(o.procs))
	o.cmds = append(o.cmds, cmd)
	o.procs = append(o.procs, p)
	if o.onStart != nil {
		go o.onStart(p)
	}
	return p, nil
}

func (o *fakeOpener) last() (*exec.Cmd, *fakeProcess) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := len(o.procs)
	return o.cmds[n-1], o.procs[n-1]
}
