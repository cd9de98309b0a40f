// Package engine declares the opaque document-engine collaborator
// interface that internal/worker drives. Production deployments bind
// this to a real document-rendering library out of process; this
// package only defines the contract and a NullEngine test double.
package engine

import "context"

// CallbackFunc is the shape of an engine event callback: an event type
// code plus a free-form textual payload, exactly as the document
// engine's native callback ABI delivers it.
type CallbackFunc func(eventType int, payload string)

// Document is a single loaded document instance inside the engine. A
// worker process owns exactly one Document at a time.
type Document interface {
	// CreateView opens a new view onto the document for a session and
	// returns the engine-assigned view id.
	CreateView(ctx context.Context) (viewID int, err error)
	// DestroyView releases a previously created view.
	DestroyView(ctx context.Context, viewID int) error
	// RegisterCallback installs cb to receive engine events. tag
	// identifies the registration (a numeric session id for
	// view-level callbacks, or a sentinel for the document-level one)
	// so the engine can route ViewCallback events back to it.
	RegisterCallback(cb CallbackFunc, tag int) error
	// Dispatch sends a single text command frame into the engine, the
	// same form a session would have forwarded over the wire.
	Dispatch(ctx context.Context, command string) error
	// Destroy releases the document and every view still open on it.
	Destroy()
}

// Engine is the per-worker-process collaborator. Load is expected to
// invoke any registered document-level callback synchronously during
// the call — callers must not hold a lock the callback would need to
// reacquire.
type Engine interface {
	// Load opens uri and returns the resulting Document, or an error
	// if the engine rejected the load.
	Load(ctx context.Context, uri string) (Document, error)
	// GetError returns the engine's last error string, for surfacing
	// alongside a failed Load.
	GetError() string
}

// EventType enumerates the engine callback event codes. The worker does
// not branch on them: it forwards every callback payload to sessions
// verbatim, whatever its event type.
type EventType int

const (
	EventInvalidateTiles EventType = iota + 1
	EventInvalidateCursor
	EventStatus
	EventCurrentPart
	EventSaveAs
	EventCommandValues
	EventPartPageRectangles
	EventRenderFont
	EventTextSelectionContent
	EventOther
)
