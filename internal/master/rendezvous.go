package master

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/collabwsd/wsd/internal/broker"
	"github.com/collabwsd/wsd/internal/session"
)

// AvailableTable is the master-global mapping from session id to the
// ToPrisoner session that has just completed its handshake and is
// waiting to be claimed (spec §3). Entries are short-lived.
type AvailableTable struct {
	mu    sync.Mutex
	cond  *sync.Cond
	table map[string]*session.Session
}

// NewAvailableTable returns an empty table.
func NewAvailableTable() *AvailableTable {
	t := &AvailableTable{table: make(map[string]*session.Session)}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Insert registers a freshly handshaken ToPrisoner session and wakes
// any waiters (spec §4.D.1, worker handshake step).
func (t *AvailableTable) Insert(sessionID string, sess *session.Session) {
	t.mu.Lock()
	t.table[sessionID] = sess
	t.mu.Unlock()
	t.cond.Broadcast()
}

// waitTimeout blocks up to timeout for sessionID to appear, claiming
// (removing) it on success. sync.Cond has no built-in timed wait; a
// timer goroutine broadcasts once timeout elapses to unblock the
// waiter. The timer's broadcast is taken under t.mu, the same lock
// waitTimeout holds except while inside cond.Wait() itself, so the
// broadcast can never land in the gap between waitTimeout's deadline
// check and its call to Wait() — it either arrives before Wait() is
// entered (and Wait() blocks on the lock until the waiter is inside
// Wait()) or after (and wakes it directly).
func (t *AvailableTable) waitTimeout(sessionID string, timeout time.Duration) (*session.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.table[sessionID]; ok {
		delete(t.table, sessionID)
		return s, true
	}

	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer timer.Stop()

	for {
		if s, ok := t.table[sessionID]; ok {
			delete(t.table, sessionID)
			return s, true
		}
		if !time.Now().Before(deadline) {
			return nil, false
		}
		t.cond.Wait()
	}
}

// Rendezvous implements spec §4.D.2's child-acquisition handshake: up
// to 3 attempts, each writing a broker "request" line and waiting 2s
// for the corresponding worker to register itself.
type Rendezvous struct {
	table      *AvailableTable
	broker     *broker.MasterClient
	sf         singleflight.Group
	attempts   int
	perAttempt time.Duration
}

// NewRendezvous wires table and broker together with the spec's
// default timing (2s per attempt, 3 attempts).
func NewRendezvous(table *AvailableTable, bc *broker.MasterClient) *Rendezvous {
	return &Rendezvous{
		table:      table,
		broker:     bc,
		attempts:   3,
		perAttempt: 2 * time.Second,
	}
}

// Acquire waits for a worker session for sessionID/docURL to appear,
// issuing a broker request before each of up to 3 waits (so at most 3
// requests, the last two re-issued after a timeout). Two
// concurrent Acquire calls for the same sessionID (e.g. a lazy tile
// miss racing a load completion) collapse into a single wait via
// singleflight, so only one "request" line is issued per timeout
// window rather than one per caller.
func (r *Rendezvous) Acquire(sessionID, docURL string) (*session.Session, error) {
	v, err, _ := r.sf.Do(sessionID, func() (interface{}, error) {
		for i := 0; i < r.attempts; i++ {
			if err := r.broker.RequestChild(sessionID, docURL); err != nil {
				return nil, fmt.Errorf("master: rendezvous request for session %s: %w", sessionID, err)
			}
			if s, ok := r.table.waitTimeout(sessionID, r.perAttempt); ok {
				return s, nil
			}
		}
		return nil, fmt.Errorf("master: rendezvous exhausted for session %s after %d attempts", sessionID, r.attempts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*session.Session), nil
}
