// Package id generates identifiers for sessions, requests and attach
// connections.
//
// Session ids are random UUIDv4 strings so clients that already store them
// keep working. Everything that only shows up in logs uses a prefixed ULID,
// which sorts by creation time and is easy to grep for.
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// SessionID identifies an interactive terminal session
type SessionID string

// RequestID identifies one tool call or HTTP request
type RequestID string

// ConnectionID identifies a WebSocket attach connection
type ConnectionID string

const (
	RequestPrefix    = "req"
	ConnectionPrefix = "conn"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source,
// mostly for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a "prefix_ULID" string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewSessionID generates a random UUIDv4 session id
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// NewRequestID generates a prefixed request id
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewConnectionID generates a prefixed attach connection id
func NewConnectionID() ConnectionID {
	return ConnectionID(Default().GenerateWithPrefix(ConnectionPrefix))
}

func (id SessionID) String() string    { return string(id) }
func (id RequestID) String() string    { return string(id) }
func (id ConnectionID) String() string { return string(id) }

// IsSessionID reports whether s has the shape of a session id
func IsSessionID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
