package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/storage"
)

// DefaultProfile is used when no profile name is configured.
const DefaultProfile = "default"

// Store implements storage.KV on the session_kv table.
type Store struct {
	db      *DB
	profile string
}

var _ storage.KV = (*Store)(nil)

// NewStore returns a KV scoped to profile.
func NewStore(db *DB, profile string) *Store {
	if profile == "" {
		profile = DefaultProfile
	}
	return &Store{db: db, profile: profile}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const q = `SELECT value FROM session_kv WHERE profile=$1 AND key=$2`
	var v string
	err := s.db.Pool.QueryRow(ctx, q, s.profile, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", errs.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session_kv get: %w", err)
	}
	return v, nil
}

func (s *Store) Put(ctx context.Context, entries ...storage.Entry) (err error) {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const q = `
INSERT INTO session_kv (profile, key, value, updated_at) VALUES ($1,$2,$3,now())
ON CONFLICT (profile, key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	for _, e := range entries {
		if _, err = tx.Exec(ctx, q, s.profile, e.Key, e.Value); err != nil {
			return fmt.Errorf("session_kv put %s: %w", e.Key, err)
		}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	const q = `DELETE FROM session_kv WHERE profile=$1 AND key = ANY($2)`
	if _, err := s.db.Pool.Exec(ctx, q, s.profile, keys); err != nil {
		return fmt.Errorf("session_kv delete: %w", err)
	}
	return nil
}
