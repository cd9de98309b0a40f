package engine

import (
	"context"
	"fmt"
	"sync"
)

// NullEngine is a fake Engine for worker unit tests. It never renders
// anything real; Dispatch only records commands. Tests fire callbacks
// through FireDocumentCallback and FireViewCallback to exercise the
// forwarding path.
type NullEngine struct {
	mu        sync.Mutex
	LoadErr   error
	lastError string
	docs      []*NullDocument
}

// NewNullEngine returns an engine with no documents loaded yet.
func NewNullEngine() *NullEngine {
	return &NullEngine{}
}

func (e *NullEngine) Load(ctx context.Context, uri string) (Document, error) {
	if e.LoadErr != nil {
		e.mu.Lock()
		e.lastError = e.LoadErr.Error()
		e.mu.Unlock()
		return nil, e.LoadErr
	}
	d := &NullDocument{uri: uri}
	e.mu.Lock()
	e.docs = append(e.docs, d)
	e.mu.Unlock()
	return d, nil
}

func (e *NullEngine) GetError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// NullDocument is the Document returned by NullEngine.Load.
type NullDocument struct {
	uri string

	mu        sync.Mutex
	nextView  int
	views     map[int]bool
	docCB     CallbackFunc
	viewCBs   map[int]CallbackFunc
	destroyed bool
	Dispatched []string
}

func (d *NullDocument) CreateView(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.views == nil {
		d.views = make(map[int]bool)
	}
	d.nextView++
	id := d.nextView
	d.views[id] = true
	return id, nil
}

func (d *NullDocument) DestroyView(ctx context.Context, viewID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.views[viewID] {
		return fmt.Errorf("engine: no such view %d", viewID)
	}
	delete(d.views, viewID)
	delete(d.viewCBs, viewID)
	return nil
}

func (d *NullDocument) RegisterCallback(cb CallbackFunc, tag int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if tag == 0 {
		d.docCB = cb
		return nil
	}
	if d.viewCBs == nil {
		d.viewCBs = make(map[int]CallbackFunc)
	}
	d.viewCBs[tag] = cb
	return nil
}

func (d *NullDocument) Dispatch(ctx context.Context, command string) error {
	d.mu.Lock()
	d.Dispatched = append(d.Dispatched, command)
	d.mu.Unlock()
	return nil
}

func (d *NullDocument) Destroy() {
	d.mu.Lock()
	d.destroyed = true
	d.mu.Unlock()
}

// FireDocumentCallback lets a test simulate the engine invoking the
// document-level callback, exactly as Load does synchronously in
// production for the initial status/invalidation events.
func (d *NullDocument) FireDocumentCallback(eventType int, payload string) {
	d.mu.Lock()
	cb := d.docCB
	d.mu.Unlock()
	if cb != nil {
		cb(eventType, payload)
	}
}

// FireViewCallback simulates a view-tagged callback event.
func (d *NullDocument) FireViewCallback(tag, eventType int, payload string) {
	d.mu.Lock()
	cb := d.viewCBs[tag]
	d.mu.Unlock()
	if cb != nil {
		cb(eventType, payload)
	}
}
