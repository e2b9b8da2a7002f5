// Package resource exposes typed, cached queries and mutations over the backend's
// item and calendar resources.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/and161185/bookly/internal/cache"
	"github.com/and161185/bookly/internal/errs"
)

// API is the authenticated transport. *apiclient.Client implements it.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Put(ctx context.Context, path string, body, out any) error
	Delete(ctx context.Context, path string) error
}

// Cache key roots. Each root is one invalidation scope.
const (
	rootItems        = "items"
	rootAvailability = "availability"
	rootBookings     = "bookings"
	rootTimeSlots    = "timeSlots"
)

// Roots returns every invalidation scope.
func Roots() []cache.Key {
	return []cache.Key{cache.K(rootItems), cache.K(rootAvailability), cache.K(rootBookings), cache.K(rootTimeSlots)}
}

// base holds what every resource service shares.
type base struct {
	api   API
	cache cache.Cache
	log   *zap.Logger
}

func newBase(api API, c cache.Cache, log *zap.Logger) base {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return base{api: api, cache: c, log: log}
}

// cached serves key from the cache or calls fetch and stores its result.
// Cache faults degrade to a backend read and are only logged.
func cached[T any](ctx context.Context, b base, key cache.Key, fetch func(context.Context) (T, error)) (T, error) {
	raw, ok, err := b.cache.Get(ctx, key)
	if err != nil {
		b.log.Warn("cache read failed", zap.String("key", key.String()), zap.Error(err))
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		b.log.Warn("dropping undecodable cache entry", zap.String("key", key.String()))
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := b.cache.Set(ctx, key, raw); err != nil {
			b.log.Warn("cache write failed", zap.String("key", key.String()), zap.Error(err))
		}
	}
	return v, nil
}

// invalidate drops every prefix. Failure is reported: callers must not read stale data
// after a successful mutation.
func (b base) invalidate(ctx context.Context, prefixes ...cache.Key) error {
	var all []error
	for _, p := range prefixes {
		if err := b.cache.Invalidate(ctx, p); err != nil {
			all = append(all, fmt.Errorf("%s: %w", p, err))
		}
	}
	if len(all) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", errs.ErrCacheInvalidation, errors.Join(all...))
}
