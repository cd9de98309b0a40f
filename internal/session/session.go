// Package session defines the Session type shared by the master's
// client/worker-facing halves and by the worker's per-client runners,
// and the socket abstraction each is built on.
package session

import (
	"sync"
)

// Kind identifies which half of a client↔engine pipe a session is.
type Kind int

const (
	// ToClient is the master-side session facing an external client.
	ToClient Kind = iota
	// ToPrisoner is the master-side session facing a worker process.
	ToPrisoner
	// InWorker runs inside the worker process itself.
	InWorker
)

func (k Kind) String() string {
	switch k {
	case ToClient:
		return "ToClient"
	case ToPrisoner:
		return "ToPrisoner"
	case InWorker:
		return "InWorker"
	default:
		return "Unknown"
	}
}

// Socket is the minimal transport a Session needs: send frames out,
// and close the connection. gorilla/websocket's *websocket.Conn
// satisfies a thin adapter over this in internal/httpapi.
type Socket interface {
	WriteText(line string) error
	WriteBinary(line string, payload []byte) error
	Close() error
	// ShutdownReceive unblocks a concurrent blocking read, used during
	// abnormal termination so a reader goroutine can be joined.
	ShutdownReceive() error
}

// Session is a long-lived bidirectional channel with a stable id. See
// spec §3 for the full invariant list; the peer pointer is set exactly
// once, at pairing time, and is never cleared afterward except by
// Unpair during teardown.
type Session struct {
	ID   string
	Kind Kind

	mu           sync.RWMutex
	sock         Socket
	docID        string
	loadOptions  string
	curPart      int
	peer         *Session
	saveAsQueue  []string
	stopped      bool
}

// New creates a session with the given id, kind, and socket.
func New(id string, kind Kind, sock Socket) *Session {
	return &Session{ID: id, Kind: kind, sock: sock}
}

// Peer returns the paired session, or nil if unpaired.
func (s *Session) Peer() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peer
}

// Pair links a and b symmetrically. Both must currently be unpaired.
// Each session's own lock is taken in turn; the two links are not set
// atomically as a pair.
func Pair(a, b *Session) {
	a.mu.Lock()
	a.peer = b
	a.mu.Unlock()
	b.mu.Lock()
	b.peer = a
	b.mu.Unlock()
}

// Unpair clears the mutual peer pointer, called during teardown.
func Unpair(a, b *Session) {
	a.mu.Lock()
	if a.peer == b {
		a.peer = nil
	}
	a.mu.Unlock()
	b.mu.Lock()
	if b.peer == a {
		b.peer = nil
	}
	b.mu.Unlock()
}

// DocID returns the document id/URL this session is bound to, or ""
// before load.
func (s *Session) DocID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docID
}

// SetDocID binds the session to a document.
func (s *Session) SetDocID(id string) {
	s.mu.Lock()
	s.docID = id
	s.mu.Unlock()
}

// HasDoc reports whether SetDocID has been called with a non-empty id.
func (s *Session) HasDoc() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docID != ""
}

// LoadOptions returns the free-form options string passed with load.
func (s *Session) LoadOptions() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadOptions
}

// SetLoadOptions stores the free-form options string passed with load.
func (s *Session) SetLoadOptions(opts string) {
	s.mu.Lock()
	s.loadOptions = opts
	s.mu.Unlock()
}

// CurPart returns the last-known current part index (updated by
// curpart: snoops on the master side).
func (s *Session) CurPart() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curPart
}

// SetCurPart updates the current part index.
func (s *Session) SetCurPart(part int) {
	s.mu.Lock()
	s.curPart = part
	s.mu.Unlock()
}

// EnqueueSaveAs appends a rewritten saveas: URL for the client to pick
// up (spec §4.D.3's saveas snoop pushes here rather than forwarding).
func (s *Session) EnqueueSaveAs(url string) {
	s.mu.Lock()
	s.saveAsQueue = append(s.saveAsQueue, url)
	s.mu.Unlock()
}

// DrainSaveAs removes and returns every queued saveas URL.
func (s *Session) DrainSaveAs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.saveAsQueue
	s.saveAsQueue = nil
	return out
}

// SendText writes a single-line text frame to the session's socket.
func (s *Session) SendText(line string) error {
	s.mu.RLock()
	sock := s.sock
	s.mu.RUnlock()
	return sock.WriteText(line)
}

// SendBinary writes a two-part text+binary frame to the session's socket.
func (s *Session) SendBinary(line string, payload []byte) error {
	s.mu.RLock()
	sock := s.sock
	s.mu.RUnlock()
	return sock.WriteBinary(line, payload)
}

// Stop marks the session stopped, the cooperative flag its reader loop
// checks between frames, and closes the socket's receive half so a
// blocked read is unblocked during abnormal termination.
func (s *Session) Stop(abnormal bool) error {
	s.mu.Lock()
	s.stopped = true
	sock := s.sock
	s.mu.Unlock()
	if abnormal {
		return sock.ShutdownReceive()
	}
	return nil
}

// Stopped reports whether Stop has been called.
func (s *Session) Stopped() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopped
}

// Close closes the underlying socket.
func (s *Session) Close() error {
	s.mu.RLock()
	sock := s.sock
	s.mu.RUnlock()
	return sock.Close()
}
