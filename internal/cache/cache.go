// Package cache is the query cache port with hierarchical keys and prefix invalidation.
package cache

import (
	"context"
	"net/url"
	"strings"
)

// Key is a hierarchical cache key, e.g. {"items", "list", "1", "20"}.
type Key []string

// K builds a Key from parts.
func K(parts ...string) Key { return Key(parts) }

// String renders the key with escaped segments joined by "/".
func (k Key) String() string {
	esc := make([]string, len(k))
	for i, p := range k {
		esc[i] = url.PathEscape(p)
	}
	return strings.Join(esc, "/")
}

// HasPrefix reports whether p is a segment-wise prefix of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

// matches reports whether the rendered key s falls under the rendered prefix p.
func matches(s, p string) bool {
	return s == p || strings.HasPrefix(s, p+"/")
}

// Cache stores encoded query results.
//
// Invalidate drops every entry whose key has the given prefix. A nil error means later
// reads of those keys miss.
type Cache interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, val []byte) error
	Invalidate(ctx context.Context, prefix Key) error
}

// Nop never stores anything; every read goes to the backend.
type Nop struct{}

var _ Cache = Nop{}

// Get always misses.
func (Nop) Get(context.Context, Key) ([]byte, bool, error) { return nil, false, nil }

// Set discards val.
func (Nop) Set(context.Context, Key, []byte) error { return nil }

// Invalidate has nothing to drop.
func (Nop) Invalidate(context.Context, Key) error { return nil }
