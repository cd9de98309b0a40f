package master

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/collabwsd/wsd/internal/cache"
	"github.com/collabwsd/wsd/internal/protocol"
	"github.com/collabwsd/wsd/internal/session"
)

// tryCacheFirst implements spec §4.D.4: client→worker requests that
// have cached answers short-circuit without bothering the worker.
// handled=true means the caller must not also forward the frame.
func (rt *Router) tryCacheFirst(sess *session.Session, st *clientState, frame protocol.Frame) (handled bool, err error) {
	switch frame.Command() {
	case "status":
		txt, ok, _ := st.cache.GetTextFile("status.txt")
		if ok && txt != "" {
			return true, sess.SendText(txt)
		}
		return false, nil

	case "commandvalues":
		name, _ := firstTokenValue(frame.Tokens, "command")
		if name != "" {
			if txt, ok, _ := st.cache.GetTextFile(cmdValuesKey(name)); ok {
				return true, sess.SendText(txt)
			}
		}
		return false, nil

	case "partpagerectangles":
		txt, ok, _ := st.cache.GetTextFile("partpagerectangles.txt")
		if ok && txt != "" {
			return true, sess.SendText(txt)
		}
		return false, nil

	case "renderfont":
		font, _ := firstTokenValue(frame.Tokens, "font")
		if font != "" {
			if data, ok, _ := st.cache.LookupRendering(font, "font"); ok {
				return true, sess.SendBinary(frame.Line, data)
			}
		}
		return false, nil

	case "tile":
		return rt.handleTile(sess, st, frame)

	case "tilecombine":
		return rt.handleTileCombine(sess, st, frame)

	default:
		return false, nil
	}
}

func cmdValuesKey(commandName string) string {
	return "cmdValues" + commandName + ".txt"
}

// parseTileKey validates and extracts the 7-tuple (spec §4.D.4's
// validation rule: all numeric, width/height/tileWidth/tileHeight > 0,
// part/tilePosX/tilePosY >= 0).
func parseTileKey(cmd string, tokens []string) (cache.TileKey, error) {
	var k cache.TileKey
	fields := map[string]*int{
		"part": &k.Part, "width": &k.Width, "height": &k.Height,
		"tileposx": &k.TilePosX, "tileposy": &k.TilePosY,
		"tilewidth": &k.TileWidth, "tileheight": &k.TileHeight,
	}
	seen := map[string]bool{}
	for _, tok := range tokens[1:] {
		for name, dst := range fields {
			if v, ok := protocol.GetInt(tok, name); ok {
				*dst = v
				seen[name] = true
			}
		}
	}
	for name := range fields {
		if !seen[name] {
			return k, protocol.SyntaxError(cmd)
		}
	}
	if k.Width <= 0 || k.Height <= 0 || k.TileWidth <= 0 || k.TileHeight <= 0 {
		return k, protocol.InvalidError(cmd)
	}
	if k.Part < 0 || k.TilePosX < 0 || k.TilePosY < 0 {
		return k, protocol.InvalidError(cmd)
	}
	return k, nil
}

func (rt *Router) handleTile(sess *session.Session, st *clientState, frame protocol.Frame) (bool, error) {
	key, err := parseTileKey("tile", frame.Tokens)
	if err != nil {
		fe := err.(*protocol.FrameError)
		return true, sess.SendText(fe.Wire())
	}
	data, ok, _ := st.cache.LookupTile(key)
	if !ok {
		return false, nil
	}
	header := "tile: " + strings.Join(frame.Tokens[1:], " ")
	return true, sess.SendBinary(header, data)
}

func (rt *Router) handleTileCombine(sess *session.Session, st *clientState, frame protocol.Frame) (bool, error) {
	var part, width, height, tileWidth, tileHeight int
	var xsRaw, ysRaw string
	for _, tok := range frame.Tokens[1:] {
		if v, ok := protocol.GetInt(tok, "part"); ok {
			part = v
		} else if v, ok := protocol.GetInt(tok, "width"); ok {
			width = v
		} else if v, ok := protocol.GetInt(tok, "height"); ok {
			height = v
		} else if v, ok := protocol.GetInt(tok, "tilewidth"); ok {
			tileWidth = v
		} else if v, ok := protocol.GetInt(tok, "tileheight"); ok {
			tileHeight = v
		} else if v, ok := protocol.GetStr(tok, "tileposx"); ok {
			xsRaw = v
		} else if v, ok := protocol.GetStr(tok, "tileposy"); ok {
			ysRaw = v
		}
	}
	if xsRaw == "" || ysRaw == "" {
		return true, sess.SendText(protocol.SyntaxError("tilecombine").Wire())
	}
	if width <= 0 || height <= 0 || tileWidth <= 0 || tileHeight <= 0 || part < 0 {
		return true, sess.SendText(protocol.InvalidError("tilecombine").Wire())
	}

	xs := strings.Split(xsRaw, ",")
	ys := strings.Split(ysRaw, ",")
	if len(xs) != len(ys) {
		return true, sess.SendText(protocol.InvalidError("tilecombine").Wire())
	}

	var missX, missY []string
	for i := range xs {
		x, errX := strconv.Atoi(xs[i])
		y, errY := strconv.Atoi(ys[i])
		if errX != nil || errY != nil || x < 0 || y < 0 {
			return true, sess.SendText(protocol.InvalidError("tilecombine").Wire())
		}
		key := cache.TileKey{
			Part: part, Width: width, Height: height,
			TilePosX: x, TilePosY: y,
			TileWidth: tileWidth, TileHeight: tileHeight,
		}
		data, ok, _ := st.cache.LookupTile(key)
		if ok {
			header := fmt.Sprintf("tile: part=%d width=%d height=%d tileposx=%d tileposy=%d tilewidth=%d tileheight=%d",
				part, width, height, x, y, tileWidth, tileHeight)
			if err := sess.SendBinary(header, data); err != nil {
				return true, err
			}
			continue
		}
		missX = append(missX, xs[i])
		missY = append(missY, ys[i])
	}

	if len(missX) == 0 {
		return true, nil
	}

	reduced := fmt.Sprintf("tilecombine part=%d width=%d height=%d tileposx=%s tileposy=%s tilewidth=%d tileheight=%d",
		part, width, height, strings.Join(missX, ","), strings.Join(missY, ","), tileWidth, tileHeight)
	peer := sess.Peer()
	if peer == nil {
		return true, sess.SendText(protocol.NoDocLoadedError("tilecombine").Wire())
	}
	return true, peer.SendText(reduced)
}
