// Package terminal manages shell sessions backed by pseudo-terminals.
//
// A Manager owns a registry of interactive sessions. Each session runs a
// shell on the slave side of a pty while a background drain task copies
// everything the shell prints into a bounded buffer (1 MiB, oldest bytes
// evicted first). Reads are destructive: ReadOutput takes the buffered bytes,
// strips terminal control sequences and returns the text together with the
// session's liveness.
//
// Execute is the one-shot path. It runs `$SHELL -c <command>` on a throwaway
// pty, polls for exit every 50ms and kills the process group when the
// timeout (default 300s) expires.
//
// Example Usage:
//
//	m := terminal.NewManager(logger)
//	id, _ := m.CreateSession("/srv/app", "", "billing")
//	_ = m.SendInput(id, "make test\n")
//	text, alive, _ := m.ReadOutput(id, 50)
//	_ = m.CloseSession(id)
//
//	res, err := m.Execute(ctx, "go version", "", 10*time.Second)
package terminal
