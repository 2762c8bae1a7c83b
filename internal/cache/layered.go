package cache

import (
	"errors"
	"time"
)

// LayeredCache reads through an ordered list of tiers, fastest first.
// A hit in a slower tier is copied into every faster one.
type LayeredCache struct {
	tiers []Cache
}

// NewLayeredCache stacks an in-process cache on top of a disk cache in diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewTiered(
		NewMemoryCache(memoryTTL, 10*time.Minute),
		NewDiskCache(diskDir, diskTTL),
	)
}

// NewTiered builds a layered cache from arbitrary tiers
func NewTiered(tiers ...Cache) *LayeredCache {
	return &LayeredCache{tiers: tiers}
}

func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, tier := range c.tiers {
		val, ok := tier.Get(key)
		if !ok {
			continue
		}
		for _, faster := range c.tiers[:i] {
			// promotion uses the tier's own default ttl
			_ = faster.Set(key, val, 0)
		}
		return val, true
	}
	return nil, false
}

// Set writes through to every tier and reports all failures
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, tier := range c.tiers {
		errs = append(errs, tier.Set(key, value, ttl))
	}
	return errors.Join(errs...)
}

func (c *LayeredCache) Delete(key string) error {
	var errs []error
	for _, tier := range c.tiers {
		errs = append(errs, tier.Delete(key))
	}
	return errors.Join(errs...)
}

func (c *LayeredCache) Clear() error {
	var errs []error
	for _, tier := range c.tiers {
		errs = append(errs, tier.Clear())
	}
	return errors.Join(errs...)
}
