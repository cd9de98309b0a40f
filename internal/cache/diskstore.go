package cache

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// GzipThreshold is the minimum blob size, in bytes, above which
// DiskStore compresses the persisted file. Small text artifacts
// (status.txt, cmdValues*.txt) are rarely worth the gzip framing
// overhead; tiles and font renderings usually cross it.
const GzipThreshold = 1024

// DiskStore persists artifacts under a per-document directory keyed by
// <docURL, timestamp>, per spec §6.6. Filenames are the artifact key
// with "/", "\" and ".." replaced by "_", with ".gz" appended when the
// blob was compressed.
type DiskStore struct {
	dir string
}

// NewDiskStore creates (if needed) and returns a DiskStore rooted at
// dir. Callers choose dir as e.g. <cacheRoot>/<sanitizedURL>/<unixTimestamp>.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.dir, sanitizeFilename(key))
}

func sanitizeFilename(key string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
}

func (s *DiskStore) Put(key string, data []byte) error {
	path := s.path(key)
	if len(data) < GzipThreshold {
		_ = os.Remove(path + ".gz")
		return os.WriteFile(path, data, 0o644)
	}
	_ = os.Remove(path)
	f, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer f.Close()
	gw := gzip.NewWriter(f)
	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

func (s *DiskStore) Get(key string) ([]byte, bool, error) {
	path := s.path(key)
	if data, err := os.ReadFile(path); err == nil {
		return data, true, nil
	} else if !os.IsNotExist(err) {
		return nil, false, err
	}

	gzPath := path + ".gz"
	f, err := os.Open(gzPath)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, false, err
	}
	defer gr.Close()
	data, err := io.ReadAll(gr)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *DiskStore) Delete(key string) error {
	path := s.path(key)
	err1 := os.Remove(path)
	err2 := os.Remove(path + ".gz")
	if err1 != nil && !os.IsNotExist(err1) {
		return err1
	}
	if err2 != nil && !os.IsNotExist(err2) {
		return err2
	}
	return nil
}

func (s *DiskStore) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
