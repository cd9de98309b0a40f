package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collabwsd/wsd/internal/engine"
	"github.com/collabwsd/wsd/internal/protocol"
	"github.com/collabwsd/wsd/internal/session"
)

// Dialer opens the worker's outbound WebSocket back to the master, at
// /collabws/child/<sessionId> per spec §6.2. WSDialer (dial.go) is the
// gorilla/websocket-backed implementation.
type Dialer interface {
	Dial(ctx context.Context, sessionID string) (session.Socket, error)
}

// Host is the worker process's broker.Handler: it answers
// query/thread requests from the supervisor and owns the process's
// single Document (spec §4.C, §4.E, and open question #1: at most one
// document per worker, enforced here rather than left as a gap).
type Host struct {
	eng                  engine.Engine
	dialer               Dialer
	jailID               string
	pid                  int
	viewCallbacksEnabled bool
	idleTimeout          time.Duration
	log                  *zap.Logger

	mu  sync.Mutex
	doc *Document
}

// Config bundles Host construction parameters, mirroring the worker
// CLI flags in spec §6.4.
type Config struct {
	JailID               string
	ViewCallbacksEnabled bool
	IdleTimeout          time.Duration
}

// NewHost constructs a Host with no document loaded yet.
func NewHost(eng engine.Engine, dialer Dialer, cfg Config, log *zap.Logger) *Host {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	return &Host{
		eng:                  eng,
		dialer:               dialer,
		jailID:               cfg.JailID,
		pid:                  os.Getpid(),
		viewCallbacksEnabled: cfg.ViewCallbacksEnabled,
		idleTimeout:          cfg.IdleTimeout,
		log:                  log,
	}
}

// SweepAndQuery implements broker.Handler: discard the document if
// canDiscard() is true, then report the worker's current state.
func (h *Host) SweepAndQuery() (url string, empty bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.doc != nil && h.doc.CanDiscard(h.idleTimeout) {
		h.doc.Destroy(false)
		h.doc = nil
	}
	if h.doc == nil {
		return "", true
	}
	return h.doc.URL, false
}

// Thread implements broker.Handler, spec §4.C's "thread <sessionId>
// <url>" entry point:
//  1. look up or create the document keyed by URL (a request for a
//     second, different URL against an already-loaded worker is
//     rejected — open question #1, resolved to enforce isolation);
//  2. dial the outbound WebSocket to the master;
//  3. send the "child" handshake frame;
//  4. start the session runner.
func (h *Host) Thread(sessionID, url string) error {
	h.mu.Lock()
	if h.doc == nil {
		h.doc = NewDocument(url, h.jailID, h.eng, h.viewCallbacksEnabled, h.log)
	} else if h.doc.URL != url {
		h.mu.Unlock()
		return fmt.Errorf("worker: already hosting %s, refusing thread for %s", h.doc.URL, url)
	}
	doc := h.doc
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sock, err := h.dialer.Dial(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("worker: dial child socket for session %s: %w", sessionID, err)
	}

	sess := session.New(sessionID, session.InWorker, sock)
	if err := sess.SendText(fmt.Sprintf("child %s %s %d", h.jailID, sessionID, h.pid)); err != nil {
		return fmt.Errorf("worker: send child handshake for session %s: %w", sessionID, err)
	}

	runner := newSessionRunner(sess, doc, h.log)
	doc.AddRunner(runner)
	go runner.Run(context.Background())
	h.RegisterReader(runner)

	if pumped, ok := sock.(interface{ Conn() *websocket.Conn }); ok {
		go h.pumpInbound(sessionID, pumped.Conn())
	}
	return nil
}

// pumpInbound reads frames the master forwards down the dialed socket
// and feeds them into sessionID's runner queue, until the connection
// closes.
func (h *Host) pumpInbound(sessionID string, conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		frame := protocol.ParseFrame(data)
		handle := RunnerFor(sessionID)
		if handle == nil {
			break
		}
		handle.Enqueue(frame.Line, frame.Binary)
	}
	if handle := RunnerFor(sessionID); handle != nil {
		handle.Close()
	}
}

// readerRegistry tracks live runners so pumpInbound can find the runner
// to feed with frames read from the dialed socket. Kept separate from
// Document.byID so Host doesn't need to reach into document state.
var readerRegistry sync.Map // sessionID -> *sessionRunner

// RegisterReader makes r discoverable by RunnerFor, for pumpInbound's
// WebSocket read loop to feed frames into.
func (h *Host) RegisterReader(r *sessionRunner) {
	readerRegistry.Store(r.sess.ID, r)
}

// RunnerFor returns the registered runner for a session id, or nil.
func RunnerFor(sessionID string) *sessionRunnerHandle {
	v, ok := readerRegistry.Load(sessionID)
	if !ok {
		return nil
	}
	return &sessionRunnerHandle{r: v.(*sessionRunner)}
}

// sessionRunnerHandle is the narrow view of a sessionRunner that
// pumpInbound's WebSocket read loop needs: enqueue inbound frames and
// signal close.
type sessionRunnerHandle struct {
	r *sessionRunner
}

// Enqueue pushes an inbound frame onto the runner's command queue.
func (h *sessionRunnerHandle) Enqueue(line string, binary []byte) {
	if binary != nil {
		h.r.queue.Push(queueItem{Line: line, Binary: binary})
		return
	}
	h.r.queue.Push(queueItem{Line: line})
}

// Close signals end-of-input to the runner's consumer goroutine.
func (h *sessionRunnerHandle) Close() {
	h.r.CloseQueue()
	readerRegistry.Delete(h.r.sess.ID)
}
