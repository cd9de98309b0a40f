// Package cache implements the per-document artifact cache: tiles,
// status, command-value listings, and font renderings, content
// addressed and invalidated on document edits.
package cache

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Cache is the per-document artifact store. It is safe for concurrent
// use by multiple session goroutines.
type Cache struct {
	store Store
	log   *zap.Logger

	mu        sync.RWMutex
	tiles     map[hashKey]TileKey
	textNames map[string]struct{}
	isEditing bool
	isSaved   bool
}

// New returns a Cache backed by store. log may be nil, in which case a
// no-op logger is used.
func New(store Store, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		store:     store,
		log:       log,
		tiles:     make(map[hashKey]TileKey),
		textNames: make(map[string]struct{}),
	}
}

func tileStoreKey(hk hashKey) string {
	return "tile:" + strconv.FormatUint(uint64(hk), 36)
}

// SaveTile stores/overwrites the blob under key.
func (c *Cache) SaveTile(key TileKey, data []byte) error {
	hk := hashTileKey(key)
	if err := c.store.Put(tileStoreKey(hk), data); err != nil {
		return fmt.Errorf("cache: save tile: %w", err)
	}
	c.mu.Lock()
	c.tiles[hk] = key
	c.mu.Unlock()
	return nil
}

// LookupTile returns the stored blob for key, or ok=false on a miss.
func (c *Cache) LookupTile(key TileKey) (data []byte, ok bool, err error) {
	hk := hashTileKey(key)
	c.mu.RLock()
	stored, present := c.tiles[hk]
	c.mu.RUnlock()
	if !present || stored != key {
		return nil, false, nil
	}
	data, ok, err = c.store.Get(tileStoreKey(hk))
	if err != nil {
		return nil, false, fmt.Errorf("cache: lookup tile: %w", err)
	}
	return data, ok, nil
}

// SaveTextFile stores a named text artifact (status.txt, cmdValues*.txt,
// partpagerectangles.txt).
func (c *Cache) SaveTextFile(name, contents string) error {
	if err := c.store.Put(textKey(name), []byte(contents)); err != nil {
		return fmt.Errorf("cache: save text %q: %w", name, err)
	}
	c.mu.Lock()
	c.textNames[name] = struct{}{}
	c.mu.Unlock()
	return nil
}

// GetTextFile returns the named text artifact, or "" if absent.
func (c *Cache) GetTextFile(name string) (string, bool, error) {
	data, ok, err := c.store.Get(textKey(name))
	if err != nil {
		return "", false, fmt.Errorf("cache: get text %q: %w", name, err)
	}
	if !ok {
		return "", false, nil
	}
	return string(data), true, nil
}

// SaveRendering stores a font rendering blob keyed by (font, kind).
func (c *Cache) SaveRendering(font, kind string, data []byte) error {
	if err := c.store.Put(fontKey(font, kind), data); err != nil {
		return fmt.Errorf("cache: save rendering %s/%s: %w", font, kind, err)
	}
	return nil
}

// LookupRendering returns the stored font rendering, or ok=false on a miss.
func (c *Cache) LookupRendering(font, kind string) ([]byte, bool, error) {
	data, ok, err := c.store.Get(fontKey(font, kind))
	if err != nil {
		return nil, false, fmt.Errorf("cache: lookup rendering %s/%s: %w", font, kind, err)
	}
	return data, ok, nil
}

// InvalidateTiles drops every tile whose bounding rectangle intersects
// region (inclusive of edges). A whole-document region drops every tile.
func (c *Cache) InvalidateTiles(region Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for hk, key := range c.tiles {
		if key.Rect().Intersects(region) {
			delete(c.tiles, hk)
			if err := c.store.Delete(tileStoreKey(hk)); err != nil {
				c.log.Warn("cache: failed to delete invalidated tile", zap.Error(err))
			}
		}
	}
}

// InvalidateTilesRaw parses the engine's free-form invalidation message
// (the payload following "invalidatetiles:") and applies it. It
// accepts the "EMPTY" sentinel for a whole-document invalidation, or a
// "part=.. x=.. y=.. width=.. height=.." rectangle.
func (c *Cache) InvalidateTilesRaw(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "EMPTY" {
		c.InvalidateTiles(WholeDocument)
		return nil
	}

	fields := strings.Fields(raw)
	vals := map[string]int{}
	for _, f := range fields {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			continue
		}
		n, err := strconv.Atoi(kv[1])
		if err != nil {
			return fmt.Errorf("cache: invalid invalidation field %q: %w", f, err)
		}
		vals[kv[0]] = n
	}
	required := []string{"part", "x", "y", "width", "height"}
	for _, r := range required {
		if _, ok := vals[r]; !ok {
			return fmt.Errorf("cache: missing field %q in invalidation message %q", r, raw)
		}
	}
	c.InvalidateTiles(Rect{
		Part: vals["part"],
		X:    vals["x"],
		Y:    vals["y"],
		W:    vals["width"],
		H:    vals["height"],
	})
	return nil
}

// SetEditing sets the isEditing flag.
func (c *Cache) SetEditing(editing bool) {
	c.mu.Lock()
	c.isEditing = editing
	c.mu.Unlock()
}

// IsEditing reports the current isEditing flag.
func (c *Cache) IsEditing() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isEditing
}

// IsSaved reports the current isSaved flag.
func (c *Cache) IsSaved() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isSaved
}

// DocumentSaved clears isEditing, sets isSaved, and evicts every text
// artifact other than status (cmdValues*, partpagerectangles) since
// they are expensive and only meaningfully stale across a save.
func (c *Cache) DocumentSaved() {
	c.mu.Lock()
	c.isEditing = false
	c.isSaved = true
	var evict []string
	for name := range c.textNames {
		if name == "status.txt" {
			continue
		}
		evict = append(evict, name)
	}
	for _, name := range evict {
		delete(c.textNames, name)
	}
	c.mu.Unlock()

	for _, name := range evict {
		if err := c.store.Delete(textKey(name)); err != nil {
			c.log.Warn("cache: failed to evict text artifact on save", zap.String("key", name), zap.Error(err))
		}
	}
}

// Teardown releases everything the cache holds, for use when the
// owning document is being destroyed.
func (c *Cache) Teardown() error {
	c.mu.Lock()
	c.tiles = make(map[hashKey]TileKey)
	c.mu.Unlock()
	return c.store.Clear()
}
