package terminal

import (
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Yahook/mcp-terminal/internal/shared/id"
)

const (
	defaultShell = "/bin/bash"
	fallbackCwd  = "/tmp"
)

// Recorder receives lifecycle events for metrics. All methods must be safe
// for concurrent use.
type Recorder interface {
	SessionOpened()
	SessionClosed()
	ExecFinished(status string, seconds float64)
}

type nopRecorder struct{}

func (nopRecorder) SessionOpened()                {}
func (nopRecorder) SessionClosed()                {}
func (nopRecorder) ExecFinished(string, float64) {}

// Manager owns every live interactive session. The registry lock is only held
// for map lookups and mutations, never across pty I/O.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	opener  Opener
	logger  *zap.Logger
	metrics Recorder
	newID   func() string
}

// NewManager creates an empty session manager backed by real pseudo-terminals.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opener:   PtyOpener{},
		logger:   logger,
		metrics:  nopRecorder{},
		newID:    func() string { return id.NewSessionID().String() },
	}
}

// WithMetrics attaches a metrics recorder.
func (m *Manager) WithMetrics(r Recorder) *Manager {
	if r != nil {
		m.metrics = r
	}
	return m
}

// WithOpener replaces the pseudo-terminal implementation.
func (m *Manager) WithOpener(o Opener) *Manager {
	if o != nil {
		m.opener = o
	}
	return m
}

// CreateSession starts an interactive shell and registers it. Empty cwd or
// shell fall back to the process working directory and $SHELL.
func (m *Manager) CreateSession(cwd, shell, project string) (string, error) {
	workingDir := resolveCwd(cwd)
	if shell == "" {
		shell = resolveShell()
	}

	cmd := exec.Command(shell)
	cmd.Dir = workingDir
	cmd.Env = childEnv()

	proc, err := m.opener.Start(cmd, DefaultSize)
	if err != nil {
		return "", fmt.Errorf("%w: failed to spawn shell %s: %v", ErrPty, shell, err)
	}

	session := newSession(m.newID(), proc)
	session.Project = project
	session.Cwd = workingDir
	session.Shell = shell
	session.startDrain(m.logger)

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("shell", shell),
		zap.String("cwd", workingDir),
		zap.String("project", project),
		zap.Int("pid", proc.Pid()),
	)

	return session.ID, nil
}

func (m *Manager) lookup(sessionID string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, notFound(sessionID)
	}
	return session, nil
}

// SendInput writes input verbatim to the session's shell. No newline is
// appended.
func (m *Manager) SendInput(sessionID, input string) error {
	session, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	if err := session.write([]byte(input)); err != nil {
		return fmt.Errorf("%w: failed to write to session %s: %v", ErrIO, sessionID, err)
	}
	return nil
}

// ReadOutput takes everything buffered since the previous read, sanitizes it
// and, when maxLines >= 0, keeps only the last maxLines lines. The read is
// destructive. The second result is the session's liveness.
func (m *Manager) ReadOutput(sessionID string, maxLines int) (string, bool, error) {
	session, err := m.lookup(sessionID)
	if err != nil {
		return "", false, err
	}

	raw := session.output.Drain()
	alive := session.IsAlive()

	text := Sanitize(raw)
	if maxLines >= 0 {
		text = TailLines(text, maxLines)
	}
	return text, alive, nil
}

// CloseSession unregisters the session and terminates its shell.
func (m *Manager) CloseSession(sessionID string) error {
	m.mu.Lock()
	session, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return notFound(sessionID)
	}

	m.release(session)
	return nil
}

func (m *Manager) release(session *Session) {
	if err := session.close(); err != nil {
		m.logger.Warn("failed to release pty",
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
	select {
	case <-session.drained:
	case <-time.After(drainGrace):
		m.logger.Warn("session output still open after close", zap.String("session_id", session.ID))
	}
	m.metrics.SessionClosed()
	m.logger.Info("session closed", zap.String("session_id", session.ID))
}

// Info returns a snapshot of one session.
func (m *Manager) Info(sessionID string) (SessionInfo, error) {
	session, err := m.lookup(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	return session.Info(), nil
}

// SessionFilter narrows ListSessions. A nil Project matches every session;
// otherwise the tag must match exactly, so "" selects untagged sessions.
type SessionFilter struct {
	Project *string
}

// ProjectFilter matches sessions tagged with exactly project.
func ProjectFilter(project string) SessionFilter {
	return SessionFilter{Project: &project}
}

func (f SessionFilter) match(s *Session) bool {
	return f.Project == nil || s.Project == *f.Project
}

// ListSessions returns a snapshot of the sessions matching filter, oldest
// first.
func (m *Manager) ListSessions(filter SessionFilter) []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if filter.match(s) {
			sessions = append(sessions, s)
		}
	}
	m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].SessionID < infos[j].SessionID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every registered session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for key, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		m.release(s)
	}
}

func resolveCwd(cwd string) string {
	if cwd != "" {
		return cwd
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return fallbackCwd
}

func resolveShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return defaultShell
}

func childEnv() []string {
	return append(os.Environ(), "TERM=xterm-256color")
}
