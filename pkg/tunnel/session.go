package tunnel

import (
	"sync"

	"github.com/google/uuid"
)

// State is a session's position in its lifecycle (spec data model §3).
type State int32

const (
	StateInitializing State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// NewSessionID mints a session identifier unique within a relay's
// process lifetime. The source prototype used the client's ephemeral
// TCP port, which collides when a port is reused in a short window;
// a UUIDv4 does not.
func NewSessionID() string {
	return uuid.NewString()
}

// Session is the shared state between an ingress and egress relay for
// one logical tunnel. Socket handles are intentionally not part of this
// type: the ingress relay only ever holds an application socket, the
// egress relay only ever holds a target socket, and neither side should
// be able to reach into the other's half through this struct.
type Session struct {
	ID string

	mu          sync.Mutex
	callbackURL string
	state       State
	bufSize     int
}

// NewSession creates a session in the Initializing state with the
// adaptive buffer at its initial size.
func NewSession(id string) *Session {
	return &Session{
		ID:      id,
		state:   StateInitializing,
		bufSize: InitialBufferSize,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SetState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *Session) CallbackURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbackURL
}

func (s *Session) SetCallbackURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbackURL = url
}

func (s *Session) BufferSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufSize
}
