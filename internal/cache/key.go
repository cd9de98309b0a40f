package cache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// TileKey is the 7-tuple identifying a rendered tile.
type TileKey struct {
	Part                             int
	Width, Height                    int
	TilePosX, TilePosY               int
	TileWidth, TileHeight            int
}

// Rect is the document-coordinate bounding box a tile was rendered
// from, used for invalidation-region intersection tests.
func (k TileKey) Rect() Rect {
	return Rect{
		Part: k.Part,
		X:    k.TilePosX,
		Y:    k.TilePosY,
		W:    k.TileWidth,
		H:    k.TileHeight,
	}
}

// hashKey is the 64-bit xxhash of a TileKey, used as the key of the
// cache's tile map. The full TileKey is also stored in that map so that
// two tuples which happen to collide under xxhash are never
// conflated; the hash only accelerates bucketing.
type hashKey uint64

func hashTileKey(k TileKey) hashKey {
	var buf [7 * 8]byte
	putInt(buf[0:8], k.Part)
	putInt(buf[8:16], k.Width)
	putInt(buf[16:24], k.Height)
	putInt(buf[24:32], k.TilePosX)
	putInt(buf[32:40], k.TilePosY)
	putInt(buf[40:48], k.TileWidth)
	putInt(buf[48:56], k.TileHeight)
	return hashKey(xxhash.Sum64(buf[:]))
}

func putInt(b []byte, v int) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

// Rect is an inclusive document-coordinate rectangle on a given part.
// A Rect with Part == -1 denotes whole-document invalidation.
type Rect struct {
	Part    int
	X, Y    int
	W, H    int
}

// WholeDocument is the invalidation region meaning "every part, every
// tile" — the decoded form of the engine's "EMPTY" sentinel.
var WholeDocument = Rect{Part: -1}

// IsWholeDocument reports whether r denotes the whole-document region.
func (r Rect) IsWholeDocument() bool { return r.Part == -1 }

// Intersects reports whether r and o overlap, edges inclusive, on the
// same part. A whole-document region intersects everything.
func (r Rect) Intersects(o Rect) bool {
	if r.IsWholeDocument() || o.IsWholeDocument() {
		return true
	}
	if r.Part != o.Part {
		return false
	}
	return r.X <= o.X+o.W && o.X <= r.X+r.W &&
		r.Y <= o.Y+o.H && o.Y <= r.Y+r.H
}

// textKey produces a filename-safe key for named text artifacts
// (status, cmdValues<Name>, partpagerectangles).
func textKey(name string) string {
	return name
}

// fontKey produces a filename-safe key for a font rendering, combining
// the font name and rendering kind.
func fontKey(font, kind string) string {
	return fmt.Sprintf("%s__%s", font, kind)
}
