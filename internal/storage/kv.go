// Package storage defines the local key-value port that persists the client session.
package storage

import "context"

// Entry is a single key/value pair written by Put.
type Entry struct {
	Key   string
	Value string
}

// KV is a small persistent key-value store.
// Get returns errs.ErrNotFound for a missing key. Put and Delete apply all-or-nothing.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, entries ...Entry) error
	Delete(ctx context.Context, keys ...string) error
}
