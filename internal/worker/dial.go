package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/collabwsd/wsd/internal/session"
)

// WSDialer implements Dialer by opening an outbound WebSocket from the
// worker process back to the master's /collabws/child/<sessionId>
// endpoint (spec §6.2). masterBase is e.g. "ws://127.0.0.1:9980".
type WSDialer struct {
	masterBase string
}

// NewWSDialer constructs a WSDialer targeting masterBase.
func NewWSDialer(masterBase string) *WSDialer {
	return &WSDialer{masterBase: masterBase}
}

// Dial wraps session.Socket around a new WebSocket connection to the
// master's worker-facing endpoint for sessionID.
func (d *WSDialer) Dial(ctx context.Context, sessionID string) (session.Socket, error) {
	url := fmt.Sprintf("%s/collabws/child/%s", d.masterBase, sessionID)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("worker: dial %s: %w", url, err)
	}
	return newDialedSocket(conn), nil
}

// dialedSocket adapts *websocket.Conn to session.Socket for the
// worker-owned connection; it mirrors internal/httpapi's wsSocket but
// lives here so that worker does not import httpapi (httpapi's
// workerws.go accepts, on the master side, the connection this type
// dials).
type dialedSocket struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

func newDialedSocket(conn *websocket.Conn) *dialedSocket {
	return &dialedSocket{conn: conn}
}

func (s *dialedSocket) WriteText(line string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (s *dialedSocket) WriteBinary(line string, payload []byte) error {
	buf := make([]byte, 0, len(line)+1+len(payload))
	buf = append(buf, line...)
	buf = append(buf, '\n')
	buf = append(buf, payload...)
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, buf)
}

func (s *dialedSocket) Close() error { return s.conn.Close() }

func (s *dialedSocket) ShutdownReceive() error { return s.conn.Close() }

// Conn exposes the underlying connection so the reader loop that feeds
// host.RunnerFor can read inbound frames from the master.
func (s *dialedSocket) Conn() *websocket.Conn { return s.conn }
