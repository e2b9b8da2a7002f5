// Package file persists the session KV as a JSON document in the user config directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/and161185/bookly/internal/crypto/sealbox"
	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/storage"
)

const docVersion = 1

// ErrLocked is returned when a sealed document cannot be opened with the configured passphrase.
var ErrLocked = errors.New("session file is sealed with a different passphrase")

type document struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries,omitempty"`
	Sealed  *sealbox.Box      `json:"sealed,omitempty"`
}

// Store is a KV backed by one JSON file. Writes replace the file atomically.
type Store struct {
	path       string
	passphrase []byte

	mu sync.Mutex
}

var _ storage.KV = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPassphrase seals the document at rest with XChaCha20-Poly1305.
func WithPassphrase(p string) Option {
	return func(s *Store) {
		if p != "" {
			s.passphrase = []byte(p)
		}
	}
}

// New returns a store writing to path. The file is created on first Put.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DefaultPath is $XDG_CONFIG_HOME/bookly/session.json, falling back to ~/.config.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "session.json")
}

// ConfigDir returns the bookly config directory.
func ConfigDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "bookly")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bookly")
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.load()
	if err != nil {
		return "", err
	}
	v, ok := entries[key]
	if !ok {
		return "", errs.ErrNotFound
	}
	return v, nil
}

func (s *Store) Put(ctx context.Context, entries ...storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.load()
	if err != nil {
		return err
	}
	for _, e := range entries {
		cur[e.Key] = e.Value
	}
	return s.save(cur)
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := cur[k]; ok {
			delete(cur, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.save(cur)
}

func (s *Store) load() (map[string]string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if doc.Sealed == nil {
		if doc.Entries == nil {
			doc.Entries = map[string]string{}
		}
		return doc.Entries, nil
	}
	if s.passphrase == nil {
		return nil, ErrLocked
	}
	pt, err := sealbox.Open(s.passphrase, *doc.Sealed, []byte(s.path))
	if err != nil {
		return nil, ErrLocked
	}
	entries := map[string]string{}
	if err := json.Unmarshal(pt, &entries); err != nil {
		return nil, fmt.Errorf("decode sealed entries: %w", err)
	}
	return entries, nil
}

func (s *Store) save(entries map[string]string) error {
	doc := document{Version: docVersion}
	if s.passphrase == nil {
		doc.Entries = entries
	} else {
		pt, err := json.Marshal(entries)
		if err != nil {
			return err
		}
		box, err := sealbox.Seal(s.passphrase, pt, []byte(s.path))
		if err != nil {
			return fmt.Errorf("seal session: %w", err)
		}
		doc.Sealed = &box
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
