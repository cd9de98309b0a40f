package master

import (
	"context"
	"encoding/json"
	"path"
	"strings"

	"github.com/collabwsd/wsd/internal/cache"
	"github.com/collabwsd/wsd/internal/protocol"
	"github.com/collabwsd/wsd/internal/session"
)

func (rt *Router) handlePrisoner(ctx context.Context, sess *session.Session, frame protocol.Frame) error {
	if !sess.HasDoc() {
		return rt.handshakePrisoner(sess, frame)
	}
	return rt.snoop(sess, frame)
}

// handshakePrisoner implements spec §4.D.1's worker handshake: the
// first frame from a worker must be "child <jailId> <sessionId> <pid>".
// DocID is repurposed here to carry the jailId and double as the
// handshake-completed marker, since a ToPrisoner session never binds
// to a document URL of its own (that lives on its ToClient peer).
func (rt *Router) handshakePrisoner(sess *session.Session, frame protocol.Frame) error {
	tokens := frame.Tokens
	if len(tokens) != 4 || tokens[0] != "child" {
		return sess.Close()
	}
	jailID, sessionID := tokens[1], tokens[2]
	sess.ID = sessionID
	sess.SetDocID(jailID)
	rt.available.Insert(sessionID, sess)
	return nil
}

// snoop implements spec §4.D.3: intercept and (sometimes) cache
// worker→client frames before forwarding them to the paired client.
func (rt *Router) snoop(sess *session.Session, frame protocol.Frame) error {
	peer := sess.Peer()
	if peer == nil {
		return nil
	}
	c := rt.cacheFor(peer.DocID())
	cmd := frame.Command()

	switch {
	case cmd == "curpart:":
		part, _ := firstTokenValue(frame.Tokens, "part")
		if n, ok := parseIntSafe(part); ok {
			peer.SetCurPart(n)
		}
		return nil

	case cmd == "saveas:":
		url, _ := firstTokenValue(frame.Tokens, "url")
		rewritten := RerootSaveAs(path.Join(rt.jailRoot, sess.DocID()), url)
		peer.EnqueueSaveAs(rewritten)
		return nil

	case cmd == "tile:":
		if frame.HasBinary() {
			if key, err := parseTileKey("tile", frame.Tokens); err == nil {
				_ = c.SaveTile(key, frame.Binary)
			}
		}
		return rt.forwardFrame(peer, frame)

	case cmd == "status:":
		_ = c.SaveTextFile("status.txt", frame.Line)
		return rt.forwardFrame(peer, frame)

	case cmd == "commandvalues:":
		saveCommandValues(c, frame.Line)
		return rt.forwardFrame(peer, frame)

	case cmd == "partpagerectangles:":
		if len(frame.Line) > len("partpagerectangles:") {
			_ = c.SaveTextFile("partpagerectangles.txt", frame.Line)
		}
		return rt.forwardFrame(peer, frame)

	case cmd == "invalidatecursor:":
		c.SetEditing(true)
		return rt.forwardFrame(peer, frame)

	case cmd == "invalidatetiles:":
		c.SetEditing(true)
		payload := strings.TrimPrefix(frame.Line, "invalidatetiles:")
		_ = c.InvalidateTilesRaw(payload)
		return rt.forwardFrame(peer, frame)

	case cmd == "renderfont:":
		font, _ := firstTokenValue(frame.Tokens, "font")
		if font != "" && frame.HasBinary() {
			_ = c.SaveRendering(font, "font", frame.Binary)
		}
		return rt.forwardFrame(peer, frame)

	default:
		return rt.forwardFrame(peer, frame)
	}
}

func (rt *Router) forwardFrame(peer *session.Session, frame protocol.Frame) error {
	if frame.HasBinary() {
		return peer.SendBinary(frame.Line, frame.Binary)
	}
	return peer.SendText(frame.Line)
}

func saveCommandValues(c *cache.Cache, line string) {
	jsonPart := line
	if sep := strings.IndexByte(line, ' '); sep >= 0 {
		jsonPart = line[sep+1:]
	}

	var payload struct {
		CommandName string `json:"commandName"`
	}
	if err := json.Unmarshal([]byte(jsonPart), &payload); err != nil {
		return
	}
	if payload.CommandName == ".uno:CharFontName" || payload.CommandName == ".uno:StyleApply" {
		_ = c.SaveTextFile(cmdValuesKey(payload.CommandName), line)
	}
}

func parseIntSafe(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	neg := false
	for i, ch := range s {
		if i == 0 && ch == '-' {
			neg = true
			continue
		}
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + int(ch-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}
