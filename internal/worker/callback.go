package worker

// documentCallback is the document-level engine callback (tag 0). It
// fans an event out to every running session so each can forward it to
// the master over its own WebSocket. It deliberately does not hold
// d.mu while forwarding — sess.forwardEngineEvent performs network
// I/O, and spec §4.C requires the callback not stall while holding the
// document lock.
func (d *Document) documentCallback(eventType int, payload string) {
	d.byID.each(func(r *sessionRunner) {
		r.forwardEngineEvent(eventType, payload)
	})
}

// sessionCallback returns a view-tagged callback (open question #2,
// resolved: route ViewCallback-shaped events to only the session that
// owns the view) bound to r.
func (d *Document) sessionCallback(r *sessionRunner) func(eventType int, payload string) {
	return func(eventType int, payload string) {
		r.forwardEngineEvent(eventType, payload)
	}
}
