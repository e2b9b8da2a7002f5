package cache

import "context"

// anonScope partitions entries read without a signed-in user.
const anonScope = "_anon"

// Scoped partitions a backing cache by a scope read on every call, normally the
// signed-in user's id. Keys are stored as {"u", scope, key...}, so owner-scoped results
// never cross users sharing one backing store.
type Scoped struct {
	inner Cache
	scope func() string
}

var _ Cache = (*Scoped)(nil)

// NewScoped wraps inner. scope returning "" maps to an anonymous partition.
func NewScoped(inner Cache, scope func() string) *Scoped {
	return &Scoped{inner: inner, scope: scope}
}

// Within returns a view pinned to scope, e.g. to purge a user who just signed out.
func (s *Scoped) Within(scope string) Cache {
	return &Scoped{inner: s.inner, scope: func() string { return scope }}
}

func (s *Scoped) key(k Key) Key {
	sc := s.scope()
	if sc == "" {
		sc = anonScope
	}
	out := make(Key, 0, len(k)+2)
	return append(append(out, "u", sc), k...)
}

// Get reads key in the current scope.
func (s *Scoped) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.key(key))
}

// Set writes key in the current scope.
func (s *Scoped) Set(ctx context.Context, key Key, val []byte) error {
	return s.inner.Set(ctx, s.key(key), val)
}

// Invalidate drops prefix in the current scope only.
func (s *Scoped) Invalidate(ctx context.Context, prefix Key) error {
	return s.inner.Invalidate(ctx, s.key(prefix))
}
