package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collabwsd/wsd/internal/protocol"
	"github.com/collabwsd/wsd/internal/session"
)

var workerUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWorkerWS upgrades a worker's outbound connection at
// /collabws/child/:sessionId (spec §6.2) and wraps it as a ToPrisoner
// session; the router adds it to its prisoner registry only when a load
// pairs it with a client. The worker always sends "child <jailId>
// <sessionId> <pid>" as its first frame (spec §4.D.1), which
// handshakePrisoner uses to bind the session's real id and insert it
// into the available-child table — the path parameter here is only a
// routing convenience, not the session's identity.
func (s *Server) handleWorkerWS(c *gin.Context) {
	conn, err := workerUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("worker websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	tempID := c.Param("sessionId")
	sess := session.New(tempID, session.ToPrisoner, newWSSocket(conn))

	ctx := c.Request.Context()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		frame := protocol.ParseFrame(data)
		if s.metrics != nil {
			s.metrics.RecordWSMessage("in", frame.Command())
		}
		if err := s.router.HandleInput(ctx, sess, frame); err != nil {
			s.log.Warn("worker frame handling failed",
				zap.String("session", sess.ID), zap.Error(err))
		}
		if sess.Stopped() {
			break
		}
	}

	if !sess.Stopped() {
		s.router.TeardownAbrupt(sess, "worker transport closed")
	}
}
