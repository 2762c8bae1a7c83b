// Package cache memoizes query results. Keys are derived from the identity
// (path, size, mtime) of the artifacts a result was computed from, so a
// rewritten store file never serves a stale entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Fingerprint identifies the current state of a set of files.
// A missing file contributes a fixed marker instead of failing.
func Fingerprint(paths ...string) string {
	h := sha256.New()
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			fmt.Fprintf(h, "%s|absent\n", p)
			continue
		}
		fmt.Fprintf(h, "%s|%d|%d\n", p, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Key builds the cache key for one kind of query result
func Key(kind, fingerprint string) string {
	return "evidentia-v1-" + kind + "-" + fingerprint
}
