package cache

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/evidentia/internal/store"
)

const diskSuffix = ".cache"

// DiskCache keeps one file per key so results survive between invocations.
// Each file holds the expiry time on its first line followed by the raw value.
type DiskCache struct {
	dir string
	ttl time.Duration
}

func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl}
}

// Get returns a live entry. Expired and unreadable entries are removed.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	header, value, ok := bytes.Cut(raw, []byte("\n"))
	if !ok {
		_ = os.Remove(path)
		return nil, false
	}
	expires, err := time.Parse(time.RFC3339Nano, string(header))
	if err != nil || !time.Now().Before(expires) {
		_ = os.Remove(path)
		return nil, false
	}
	return value, true
}

// Set stores value; ttl 0 means the cache default
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	var buf bytes.Buffer
	buf.WriteString(time.Now().Add(ttl).UTC().Format(time.RFC3339Nano))
	buf.WriteByte('\n')
	buf.Write(value)

	if err := store.WriteFile(c.path(key), buf.Bytes()); err != nil {
		return fmt.Errorf("cache %s: %w", key, err)
	}
	return nil
}

// Delete removes key; a missing entry is not an error
func (c *DiskCache) Delete(key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every entry file and leaves anything else in the directory alone
func (c *DiskCache) Clear() error {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*"+diskSuffix))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove cache file: %w", err)
		}
	}
	return nil
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, strings.ReplaceAll(key, string(filepath.Separator), "_")+diskSuffix)
}
