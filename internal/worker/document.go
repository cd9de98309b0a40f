// Package worker implements the per-document worker process: it owns
// exactly one engine document, multiplexes client sessions from the
// master onto it, and pumps engine callbacks back out to sessions.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/collabwsd/wsd/internal/engine"
	"github.com/collabwsd/wsd/internal/session"
)

// Document is the single engine-loaded document a worker process
// hosts. Per spec §3, at most one exists per worker.
type Document struct {
	URL    string
	JailID string

	eng                  engine.Engine
	viewCallbacksEnabled bool
	log                  *zap.Logger

	mu          sync.Mutex
	engineDoc   engine.Document
	clientViews int
	createdAt   time.Time
	lastActivity time.Time

	runners *session.Registry
	byID    *runnerIndex
}

// NewDocument constructs a not-yet-loaded document. The engine handle
// is created lazily on the first session's OnLoad.
func NewDocument(url, jailID string, eng engine.Engine, viewCallbacksEnabled bool, log *zap.Logger) *Document {
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now()
	return &Document{
		URL:                  url,
		JailID:               jailID,
		eng:                  eng,
		viewCallbacksEnabled: viewCallbacksEnabled,
		log:                  log,
		createdAt:            now,
		lastActivity:         now,
		runners:              session.NewRegistry(),
		byID:                 &runnerIndex{m: make(map[string]*sessionRunner)},
	}
}

// AddRunner registers a session runner in the document's session map,
// keyed by its session id string as received (spec §3, §4.C step 5);
// the id is not converted to a number for the key.
func (d *Document) AddRunner(r *sessionRunner) {
	d.runners.Add(r.sess)
	d.byID.set(r.sess.ID, r)
}

// runnerIndex maps session id -> *sessionRunner, kept alongside the
// session.Registry (which maps id -> *session.Session) because the
// engine callback fan-out needs the runner, not the bare session.
type runnerIndex struct {
	mu sync.RWMutex
	m  map[string]*sessionRunner
}

func (ri *runnerIndex) set(id string, r *sessionRunner) {
	ri.mu.Lock()
	ri.m[id] = r
	ri.mu.Unlock()
}

func (ri *runnerIndex) get(id string) *sessionRunner {
	ri.mu.RLock()
	defer ri.mu.RUnlock()
	return ri.m[id]
}

func (ri *runnerIndex) delete(id string) {
	ri.mu.Lock()
	delete(ri.m, id)
	ri.mu.Unlock()
}

func (ri *runnerIndex) each(fn func(*sessionRunner)) {
	ri.mu.RLock()
	snapshot := make([]*sessionRunner, 0, len(ri.m))
	for _, r := range ri.m {
		snapshot = append(snapshot, r)
	}
	ri.mu.RUnlock()
	for _, r := range snapshot {
		fn(r)
	}
}

// RemoveRunner drops the session from both the registry and the
// runner index, called from onUnload/session teardown.
func (d *Document) RemoveRunner(id string) {
	d.runners.Remove(id)
	d.byID.delete(id)
}

// touch records that the document is still active, feeding canDiscard's
// idle policy (§9 open-question decision).
func (d *Document) touch() {
	d.mu.Lock()
	d.lastActivity = time.Now()
	d.mu.Unlock()
}

// CanDiscard reports whether the document has no live sessions and has
// been idle for at least idleTimeout, per the resolved open question.
func (d *Document) CanDiscard(idleTimeout time.Duration) bool {
	if d.runners.Len() > 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Since(d.lastActivity) >= idleTimeout
}

// OnLoad implements spec §4.C's onLoad hook: if the engine document
// isn't loaded yet, load it (with the lock released across the call,
// since Load invokes the document callback synchronously) and register
// the document-level callback; then optionally create a per-session
// view. On success it bumps clientViews and returns the loaded
// engine.Document so the runner can dispatch further commands to it.
func (d *Document) OnLoad(ctx context.Context, r *sessionRunner) (engine.Document, error) {
	d.mu.Lock()
	if d.engineDoc == nil {
		d.mu.Unlock()
		doc, err := d.eng.Load(ctx, d.URL)
		if err != nil {
			return nil, fmt.Errorf("worker: load %s: %w (%s)", d.URL, err, d.eng.GetError())
		}
		d.mu.Lock()
		if d.engineDoc == nil {
			d.engineDoc = doc
			if err := doc.RegisterCallback(d.documentCallback, 0); err != nil {
				d.mu.Unlock()
				return nil, fmt.Errorf("worker: register document callback: %w", err)
			}
		}
	}
	engineDoc := d.engineDoc
	d.mu.Unlock()

	if d.viewCallbacksEnabled {
		viewID, err := engineDoc.CreateView(ctx)
		if err != nil {
			return nil, fmt.Errorf("worker: create view for session %s: %w", r.sess.ID, err)
		}
		tag := r.numericID()
		if err := engineDoc.RegisterCallback(d.sessionCallback(r), tag); err != nil {
			return nil, fmt.Errorf("worker: register view callback for session %s: %w", r.sess.ID, err)
		}
		r.viewID = viewID
	}

	d.mu.Lock()
	d.clientViews++
	d.mu.Unlock()
	d.touch()
	return engineDoc, nil
}

// OnUnload implements spec §4.C's onUnload hook: decrement
// clientViews, and if multi-view is enabled, destroy the session's view.
func (d *Document) OnUnload(ctx context.Context, r *sessionRunner) {
	d.mu.Lock()
	if d.clientViews > 0 {
		d.clientViews--
	}
	engineDoc := d.engineDoc
	d.mu.Unlock()

	if d.viewCallbacksEnabled && engineDoc != nil && r.viewID != 0 {
		if err := engineDoc.DestroyView(ctx, r.viewID); err != nil {
			d.log.Warn("worker: destroy view failed", zap.String("session", r.sess.ID), zap.Error(err))
		}
	}
	d.touch()
}

// EngineDocument returns the currently loaded engine document handle,
// or nil if load hasn't completed yet.
func (d *Document) EngineDocument() engine.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engineDoc
}

// ClientViews returns the current live-view count.
func (d *Document) ClientViews() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clientViews
}

// Destroy tears down the document: stops every session runner (per
// spec §9's normal/abnormal termination distinction), then destroys
// the engine document if one was ever loaded.
func (d *Document) Destroy(abnormal bool) {
	d.byID.each(func(r *sessionRunner) {
		_ = r.sess.Stop(abnormal)
		r.queue.Close()
	})
	d.byID.each(func(r *sessionRunner) {
		r.Wait()
	})
	d.mu.Lock()
	engineDoc := d.engineDoc
	d.engineDoc = nil
	d.mu.Unlock()
	if engineDoc != nil {
		engineDoc.Destroy()
	}
}
