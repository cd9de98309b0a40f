// Package httpapi wires the master's client-facing and worker-facing
// WebSocket endpoints on top of gin and gorilla/websocket, and the
// CORS/rate-limit middleware in front of them.
package httpapi

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsSocket adapts a *websocket.Conn to session.Socket. gorilla only
// permits one concurrent writer per connection, so writes are
// serialized behind wmu; reads are single-reader by construction (one
// goroutine owns ReadMessage per connection) and need no lock.
type wsSocket struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func newWSSocket(conn *websocket.Conn) *wsSocket {
	return &wsSocket{conn: conn}
}

func (s *wsSocket) WriteText(line string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (s *wsSocket) WriteBinary(line string, payload []byte) error {
	buf := make([]byte, 0, len(line)+1+len(payload))
	buf = append(buf, line...)
	buf = append(buf, '\n')
	buf = append(buf, payload...)
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, buf)
}

func (s *wsSocket) Close() error {
	return s.conn.Close()
}

// ShutdownReceive unblocks a concurrent ReadMessage by closing the
// underlying network connection outright; gorilla has no half-close,
// so abnormal termination here means a full close (spec §9 notes the
// original's shutdownReceive is a one-way socket shutdown, not
// available over a pure WebSocket abstraction).
func (s *wsSocket) ShutdownReceive() error {
	return s.conn.Close()
}
