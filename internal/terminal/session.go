package terminal

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	// SessionBufferSize caps unread output of an interactive session.
	SessionBufferSize = 1024 * 1024
	// ExecBufferSize caps the output kept for a one-shot execute call.
	ExecBufferSize = 2 * 1024 * 1024

	readChunkSize = 4096
)

// Session is one interactive shell running on a pseudo-terminal.
type Session struct {
	ID        string
	Project   string
	Cwd       string
	Shell     string
	CreatedAt time.Time

	// proc owns the pty master; nothing else reads or writes it directly.
	proc    Process
	writeMu sync.Mutex

	output *Buffer

	mu    sync.Mutex
	alive bool

	// drained is closed when the drain task returns.
	drained chan struct{}
}

// SessionInfo is the public snapshot of a session.
type SessionInfo struct {
	SessionID string    `json:"session_id"`
	Project   string    `json:"project,omitempty"`
	Cwd       string    `json:"cwd"`
	Shell     string    `json:"shell,omitempty"`
	IsAlive   bool      `json:"is_alive"`
	CreatedAt time.Time `json:"created_at"`
}

func newSession(id string, proc Process) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		proc:      proc,
		output:    NewBuffer(SessionBufferSize),
		alive:     true,
		drained:   make(chan struct{}),
	}
}

// IsAlive reports whether the session's output stream is still open.
func (s *Session) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *Session) markDead() {
	s.mu.Lock()
	s.alive = false
	s.mu.Unlock()
}

// Info returns a snapshot of the session metadata and liveness.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		SessionID: s.ID,
		Project:   s.Project,
		Cwd:       s.Cwd,
		Shell:     s.Shell,
		IsAlive:   s.IsAlive(),
		CreatedAt: s.CreatedAt,
	}
}

// write sends the exact bytes of input to the shell. Concurrent writers are
// serialized so their payloads never interleave.
func (s *Session) write(input []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for len(input) > 0 {
		n, err := s.proc.Write(input)
		if err != nil {
			return err
		}
		input = input[n:]
	}
	return nil
}

// close releases the pty master, which terminates the shell; the drain task
// then observes end-of-stream and flips liveness.
func (s *Session) close() error {
	return s.proc.Close()
}

// drain copies process output into the buffer until end-of-stream or a read
// error. onEOF runs exactly once before drain returns.
func drain(r io.Reader, buf *Buffer, onEOF func(error)) {
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Append(chunk[:n])
		}
		if err != nil {
			onEOF(err)
			return
		}
		if n == 0 {
			onEOF(io.EOF)
			return
		}
	}
}

// startDrain launches the session's single drain task.
func (s *Session) startDrain(logger *zap.Logger) {
	go func() {
		defer close(s.drained)
		drain(s.proc, s.output, func(err error) {
			logger.Debug("session output closed",
				zap.String("session_id", s.ID),
				zap.Bool("eof", isEndOfStream(err)),
				zap.Error(err),
			)
			s.markDead()
		})
	}()
}

// isEndOfStream reports the read errors a pty master returns once the slave
// side is gone or the master itself was closed.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, unix.EIO)
}
