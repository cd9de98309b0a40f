// Package shutdown provides a process-wide shutdown token, a stand-in
// for the two global booleans (TerminationFlag/TerminationState) the
// original implementation used (spec §9's redesign note). No other
// package of this module holds a Token: session runners stop when
// their queue closes or their context is cancelled.
package shutdown

import "sync/atomic"

// Token holds two monotone booleans: shouldStop (a graceful shutdown
// was requested) and abnormal (shutdown was triggered by an
// unrecoverable error, not a clean request). Once set, neither flag
// ever clears — a new Token is created per process lifetime.
type Token struct {
	shouldStop atomic.Bool
	abnormal   atomic.Bool
}

// New returns a fresh, unset Token.
func New() *Token {
	return &Token{}
}

// Stop requests graceful shutdown.
func (t *Token) Stop() {
	t.shouldStop.Store(true)
}

// StopAbnormal requests shutdown due to an unrecoverable error —
// e.g. an exception escaping a session runner (spec's catch-all rule).
func (t *Token) StopAbnormal() {
	t.abnormal.Store(true)
	t.shouldStop.Store(true)
}

// ShouldStop reports whether shutdown has been requested, for any reason.
func (t *Token) ShouldStop() bool {
	return t.shouldStop.Load()
}

// Abnormal reports whether shutdown was triggered abnormally.
func (t *Token) Abnormal() bool {
	return t.abnormal.Load()
}
