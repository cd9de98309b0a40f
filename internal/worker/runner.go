package worker

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/collabwsd/wsd/internal/protocol"
	"github.com/collabwsd/wsd/internal/queue"
	"github.com/collabwsd/wsd/internal/session"
)

// queueItem is one frame handed from the reader goroutine to the
// consumer goroutine: either a single command line, or (for paste) the
// full binary buffer.
type queueItem struct {
	Line   string
	Binary []byte
}

// sessionRunner is the reader+consumer goroutine pair spec §4.C
// describes for each InWorker session: the reader enqueues frames
// off the WebSocket, the consumer dispatches them into the engine in
// arrival order.
type sessionRunner struct {
	sess *session.Session
	doc  *Document
	log  *zap.Logger

	queue  *queue.Closable[queueItem]
	viewID int

	done chan struct{}
	once sync.Once
}

func newSessionRunner(sess *session.Session, doc *Document, log *zap.Logger) *sessionRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &sessionRunner{
		sess:  sess,
		doc:   doc,
		log:   log,
		queue: queue.New[queueItem](),
		done:  make(chan struct{}),
	}
}

// numericID parses the session's string id as the numeric form used to
// tag view callbacks; the document's session map is keyed by the string.
func (r *sessionRunner) numericID() int {
	n, err := strconv.Atoi(r.sess.ID)
	if err != nil {
		return 0
	}
	return n
}

// Enqueue is called by the WebSocket reader loop for each inbound
// frame. Per spec §4.C, "paste" frames carry the full binary buffer;
// every other command is single-line.
func (r *sessionRunner) Enqueue(frame protocol.Frame) {
	if frame.Command() == "paste" {
		r.queue.Push(queueItem{Line: frame.Line, Binary: frame.Binary})
		return
	}
	r.queue.Push(queueItem{Line: frame.Line})
}

// CloseQueue signals the sentinel close condition: a "disconnect" or
// "eof" frame observed by the reader, or the reader's own EOF.
func (r *sessionRunner) CloseQueue() {
	r.queue.Close()
}

// Wait blocks until the consumer goroutine has returned.
func (r *sessionRunner) Wait() {
	<-r.done
}

// Run is the consumer goroutine: drain the queue, dispatching each
// item to the engine, until the queue is closed and drained, then
// release the session via onUnload.
func (r *sessionRunner) Run(ctx context.Context) {
	defer r.once.Do(func() { close(r.done) })
	for {
		item, ok := r.queue.Pop()
		if !ok {
			break
		}
		r.dispatch(ctx, item)
	}
	r.doc.OnUnload(ctx, r)
	r.doc.RemoveRunner(r.sess.ID)
}

func (r *sessionRunner) dispatch(ctx context.Context, item queueItem) {
	tokens := protocol.Tokenize(item.Line)
	if len(tokens) == 0 {
		return
	}
	cmd := tokens[0]

	switch cmd {
	case "load":
		if r.doc.EngineDocument() != nil && r.viewID != 0 {
			r.sendError(protocol.DocAlreadyLoadedError())
			return
		}
		if _, err := r.doc.OnLoad(ctx, r); err != nil {
			r.log.Warn("worker: load failed", zap.String("session", r.sess.ID), zap.Error(err))
			r.sendError(protocol.URIInvalidError())
			return
		}
	case "disconnect", "eof":
		r.forwardIfLoaded(ctx, item)
		r.queue.Close()
	default:
		if !protocol.IsAllowedCommand(cmd) {
			r.sendError(protocol.UnknownCommandError(cmd))
			return
		}
		r.forwardIfLoaded(ctx, item)
	}
}

func (r *sessionRunner) forwardIfLoaded(ctx context.Context, item queueItem) {
	doc := r.doc.EngineDocument()
	if doc == nil {
		r.sendError(protocol.NoDocLoadedError(protocol.Tokenize(item.Line)[0]))
		return
	}
	line := item.Line
	if item.Binary != nil {
		line = line + "\n" + string(item.Binary)
	}
	if err := doc.Dispatch(ctx, line); err != nil {
		r.log.Warn("worker: dispatch failed", zap.String("session", r.sess.ID), zap.Error(err))
	}
	r.doc.touch()
}

func (r *sessionRunner) sendError(fe *protocol.FrameError) {
	if err := r.sess.SendText(fe.Wire()); err != nil {
		r.log.Warn("worker: failed to send error frame", zap.Error(err))
	}
}

// forwardEngineEvent is invoked by the document/view engine callbacks
// to push an already-formatted response line out to the master over
// this session's WebSocket.
func (r *sessionRunner) forwardEngineEvent(eventType int, payload string) {
	_ = eventType
	if err := r.sess.SendText(payload); err != nil {
		r.log.Warn("worker: failed to forward engine event", zap.String("session", r.sess.ID), zap.Error(err))
	}
}
