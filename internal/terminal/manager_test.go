package terminal

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestManager(t *testing.T) (*Manager, *fakeOpener) {
	t.Helper()
	opener := &fakeOpener{}
	m := NewManager(zaptest.NewLogger(t)).WithOpener(opener)
	t.Cleanup(m.Shutdown)
	return m, opener
}

// readUntil keeps reading until the accumulated output contains want.
func readUntil(t *testing.T, m *Manager, id, want string) string {
	t.Helper()
	var got strings.Builder
	require.Eventually(t, func() bool {
		text, _, err := m.ReadOutput(id, -1)
		if err != nil {
			return false
		}
		got.WriteString(text)
		return strings.Contains(got.String(), want)
	}, 2*time.Second, 5*time.Millisecond, "never read %q", want)
	return got.String()
}

func TestManager_CreateSessionDefaults(t *testing.T) {
	t.Setenv("SHELL", "/bin/zsh")
	m, opener := newTestManager(t)

	id, err := m.CreateSession("", "", "")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	cmd, _ := opener.last()
	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, "/bin/zsh", cmd.Path)
	assert.Equal(t, []string{"/bin/zsh"}, cmd.Args)
	assert.Equal(t, wd, cmd.Dir)
	assert.Contains(t, cmd.Env, "TERM=xterm-256color")

	sessions := m.ListSessions(SessionFilter{})
	require.Len(t, sessions, 1)
	assert.Equal(t, id, sessions[0].SessionID)
	assert.Equal(t, wd, sessions[0].Cwd)
	assert.Empty(t, sessions[0].Project)
	assert.True(t, sessions[0].IsAlive)
	assert.WithinDuration(t, time.Now(), sessions[0].CreatedAt, 5*time.Second)
}

func TestManager_CreateSessionFallsBackToBash(t *testing.T) {
	t.Setenv("SHELL", "")
	m, opener := newTestManager(t)

	_, err := m.CreateSession("/tmp", "", "")
	require.NoError(t, err)

	cmd, _ := opener.last()
	assert.Equal(t, "/bin/bash", cmd.Args[0])
}

func TestManager_CreateSessionExplicitArgs(t *testing.T) {
	m, opener := newTestManager(t)
	dir := t.TempDir()

	id, err := m.CreateSession(dir, "/bin/sh", "alpha")
	require.NoError(t, err)

	cmd, _ := opener.last()
	assert.Equal(t, "/bin/sh", cmd.Args[0])
	assert.Equal(t, dir, cmd.Dir)

	info := m.ListSessions(ProjectFilter("alpha"))
	require.Len(t, info, 1)
	assert.Equal(t, id, info[0].SessionID)
	assert.Equal(t, "alpha", info[0].Project)
	assert.Equal(t, "/bin/sh", info[0].Shell)
}

func TestManager_CreateSessionSpawnFailure(t *testing.T) {
	m, opener := newTestManager(t)
	opener.err = errors.New("no ptys left")

	_, err := m.CreateSession("", "/bin/sh", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPty)
	assert.Contains(t, err.Error(), "no ptys left")
	assert.Equal(t, 0, m.Count())
}

func TestManager_SessionIDsAreUnique(t *testing.T) {
	m, _ := newTestManager(t)

	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		id, err := m.CreateSession("", "/bin/sh", "")
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 25, m.Count())
}

func TestManager_SendInputWritesExactBytes(t *testing.T) {
	m, opener := newTestManager(t)
	id, err := m.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)

	require.NoError(t, m.SendInput(id, "ls -la"))
	require.NoError(t, m.SendInput(id, "\n"))

	_, proc := opener.last()
	assert.Equal(t, "ls -la\n", proc.input())
}

func TestManager_SendInputWriteFailure(t *testing.T) {
	m, opener := newTestManager(t)
	id, err := m.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)

	_, proc := opener.last()
	proc.mu.Lock()
	proc.writeErr = errors.New("broken pipe")
	proc.mu.Unlock()

	err = m.SendInput(id, "echo hi\n")
	assert.ErrorIs(t, err, ErrIO)
}

func TestManager_ReadOutputIsDestructive(t *testing.T) {
	m, opener := newTestManager(t)
	id, err := m.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)

	_, proc := opener.last()
	proc.emit("\x1b[1mbold\x1b[0m\r\n")

	got := readUntil(t, m, id, "bold\n")
	assert.Equal(t, "bold\n", got)

	text, alive, err := m.ReadOutput(id, -1)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.True(t, alive)
}

func TestManager_ReadOutputLastLines(t *testing.T) {
	m, opener := newTestManager(t)
	id, err := m.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)

	_, proc := opener.last()
	proc.emit("a\nb\nc\nd")

	require.Eventually(t, func() bool {
		s, err := m.lookup(id)
		return err == nil && s.output.Len() == len("a\nb\nc\nd")
	}, 2*time.Second, 5*time.Millisecond)

	text, _, err := m.ReadOutput(id, 2)
	require.NoError(t, err)
	assert.Equal(t, "c\nd", text)
}

func TestManager_LivenessFlipsWhenProcessExits(t *testing.T) {
	m, opener := newTestManager(t)
	id, err := m.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)

	_, proc := opener.last()
	proc.emit("bye\n")
	proc.exit(0)

	require.Eventually(t, func() bool {
		return !m.ListSessions(SessionFilter{})[0].IsAlive
	}, 2*time.Second, 5*time.Millisecond)

	// A dead but unclosed session still answers reads and writes.
	text, alive, err := m.ReadOutput(id, -1)
	require.NoError(t, err)
	assert.Equal(t, "bye\n", text)
	assert.False(t, alive)
	assert.NoError(t, m.SendInput(id, "ignored\n"))
}

func TestManager_CloseSession(t *testing.T) {
	m, opener := newTestManager(t)
	id, err := m.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)
	_, proc := opener.last()
	session, err := m.lookup(id)
	require.NoError(t, err)

	require.NoError(t, m.CloseSession(id))

	_, closes := proc.counts()
	assert.Equal(t, 1, closes)
	assert.Empty(t, m.ListSessions(SessionFilter{}))

	assert.ErrorIs(t, m.SendInput(id, "x"), ErrNotFound)
	_, _, err = m.ReadOutput(id, -1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.CloseSession(id), ErrNotFound)

	// The drain task ends once the master is released.
	select {
	case <-session.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("drain task still running after close")
	}
}

func TestManager_UnknownSession(t *testing.T) {
	m, _ := newTestManager(t)

	assert.ErrorIs(t, m.SendInput("nope", "x"), ErrNotFound)
	assert.ErrorIs(t, m.CloseSession("nope"), ErrNotFound)
	_, _, err := m.ReadOutput("nope", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "nope")
	_, err = m.Info("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_Info(t *testing.T) {
	m, _ := newTestManager(t)
	id, err := m.CreateSession("/srv", "/bin/sh", "web")
	require.NoError(t, err)

	info, err := m.Info(id)
	require.NoError(t, err)
	assert.Equal(t, id, info.SessionID)
	assert.Equal(t, "web", info.Project)
	assert.Equal(t, "/srv", info.Cwd)
	assert.Equal(t, "/bin/sh", info.Shell)
	assert.True(t, info.IsAlive)
	assert.False(t, info.CreatedAt.IsZero())
}

func TestManager_ListSessionsFiltersByProject(t *testing.T) {
	m, _ := newTestManager(t)

	x1, err := m.CreateSession("", "/bin/sh", "x")
	require.NoError(t, err)
	_, err = m.CreateSession("", "/bin/sh", "y")
	require.NoError(t, err)
	x2, err := m.CreateSession("", "/bin/sh", "x")
	require.NoError(t, err)
	untagged, err := m.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)

	var ids []string
	for _, info := range m.ListSessions(ProjectFilter("x")) {
		assert.Equal(t, "x", info.Project)
		ids = append(ids, info.SessionID)
	}
	assert.ElementsMatch(t, []string{x1, x2}, ids)
	assert.Len(t, m.ListSessions(SessionFilter{}), 4)
	assert.Empty(t, m.ListSessions(ProjectFilter("z")))

	empty := m.ListSessions(ProjectFilter(""))
	require.Len(t, empty, 1)
	assert.Equal(t, untagged, empty[0].SessionID)
}

func TestManager_ConcurrentSendAndReadKeepOrder(t *testing.T) {
	m, opener := newTestManager(t)
	id, err := m.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)
	_, proc := opener.last()

	const records = 500
	var want strings.Builder
	for i := 0; i < records; i++ {
		fmt.Fprintf(&want, "line-%04d\n", i)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < records; i++ {
			proc.emit(fmt.Sprintf("line-%04d\n", i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < records; i++ {
			_ = m.SendInput(id, "k")
		}
	}()

	var got strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for got.Len() < want.Len() && time.Now().Before(deadline) {
		text, _, err := m.ReadOutput(id, -1)
		require.NoError(t, err)
		got.WriteString(text)
	}
	wg.Wait()

	assert.Equal(t, want.String(), got.String())
	assert.Equal(t, strings.Repeat("k", records), proc.input())
}

func TestManager_ShutdownClosesEverySession(t *testing.T) {
	m, opener := newTestManager(t)
	for i := 0; i < 3; i++ {
		_, err := m.CreateSession("", "/bin/sh", "")
		require.NoError(t, err)
	}

	m.Shutdown()

	assert.Equal(t, 0, m.Count())
	for _, p := range opener.procs {
		_, closes := p.counts()
		assert.Equal(t, 1, closes)
	}
}

type countingRecorder struct {
	mu             sync.Mutex
	opened, closed int
	execStatuses   []string
}

func (r *countingRecorder) SessionOpened() { r.mu.Lock(); r.opened++; r.mu.Unlock() }
func (r *countingRecorder) SessionClosed() { r.mu.Lock(); r.closed++; r.mu.Unlock() }
func (r *countingRecorder) ExecFinished(status string, _ float64) {
	r.mu.Lock()
	r.execStatuses = append(r.execStatuses, status)
	r.mu.Unlock()
}

func TestManager_RecordsMetrics(t *testing.T) {
	rec := &countingRecorder{}
	m, _ := newTestManager(t)
	m.WithMetrics(rec)

	id, err := m.CreateSession("", "/bin/sh", "")
	require.NoError(t, err)
	require.NoError(t, m.CloseSession(id))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 1, rec.opened)
	assert.Equal(t, 1, rec.closed)
}
