package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collabwsd/wsd/internal/protocol"
	"github.com/collabwsd/wsd/internal/session"
)

var clientUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleClientWS upgrades a client's HTTP request to a WebSocket and
// registers it with the router as a ToClient session (spec §6.1's
// "/ws" endpoint).
func (s *Server) handleClientWS(c *gin.Context) {
	conn, err := clientUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("client websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.IncWSConnections()
		defer s.metrics.DecWSConnections()
	}

	sess := session.New(uuid.NewString(), session.ToClient, newWSSocket(conn))
	s.router.AddClient(sess)

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
			s.log.Warn("client frame handling failed",
				zap.String("session", sess.ID), zap.Error(err))
		}
		if sess.Stopped() {
			break
		}
	}

	if !sess.Stopped() {
		s.router.TeardownAbrupt(sess, "client transport closed")
	}
}
