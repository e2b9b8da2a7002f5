package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRU is an in-process cache with a size bound and per-entry TTL.
type LRU struct {
	lru *expirable.LRU[string, []byte]
}

var _ Cache = (*LRU)(nil)

// NewLRU returns a cache holding at most size entries for ttl each.
func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 256
	}
	return &LRU{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns the live entry for key.
func (c *LRU) Get(_ context.Context, key Key) ([]byte, bool, error) {
	v, ok := c.lru.Get(key.String())
	return v, ok, nil
}

// Set stores val under key, evicting the oldest entry when full.
func (c *LRU) Set(_ context.Context, key Key, val []byte) error {
	c.lru.Add(key.String(), val)
	return nil
}

// Invalidate removes key and every key below it.
func (c *LRU) Invalidate(_ context.Context, prefix Key) error {
	p := prefix.String()
	for _, k := range c.lru.Keys() {
		if matches(k, p) {
			c.lru.Remove(k)
		}
	}
	return nil
}

// Len returns the number of live entries.
func (c *LRU) Len() int { return c.lru.Len() }
