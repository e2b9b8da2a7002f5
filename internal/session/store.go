// Package session owns the logged-in identity and its persisted tokens.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
	"github.com/and161185/bookly/internal/storage"
)

// Persisted keys. They are always written and cleared together.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyRememberMe   = "rememberMe"
)

var allKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyRememberMe}

// Authenticator issues sessions for credentials.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (model.AuthResponse, error)
	Register(ctx context.Context, name, email, password string) (model.AuthResponse, error)
}

// Store is the single owner of session state. Construct it once and inject it.
type Store struct {
	kv   storage.KV
	auth Authenticator
	log  *zap.Logger

	mu       sync.RWMutex
	sess     *model.Session
	loading  bool
	onChange []func(*model.User)
}

// NewStore builds a store. Until Initialize returns, IsLoading reports true.
func NewStore(kv storage.KV, auth Authenticator, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, auth: auth, log: log, loading: true}
}

// OnChange registers fn to be called after the current user changes (nil on logout).
func (s *Store) OnChange(fn func(*model.User)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Initialize restores a persisted session. A partial or unreadable session is cleared.
func (s *Store) Initialize(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	sess, err := s.readPersisted(ctx)
	switch {
	case err == nil:
		s.set(sess)
		s.log.Debug("session restored", zap.String("user_id", sess.User.ID.String()))
		return nil
	case errors.Is(err, errs.ErrNotFound):
		s.log.Debug("no persisted session")
	default:
		s.log.Warn("discarding persisted session", zap.Error(err))
	}
	if err := s.kv.Delete(ctx, allKeys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.set(nil)
	return nil
}

func (s *Store) readPersisted(ctx context.Context) (*model.Session, error) {
	access, err := s.kv.Get(ctx, KeyAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := s.kv.Get(ctx, KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	raw, err := s.kv.Get(ctx, KeyUser)
	if err != nil {
		return nil, err
	}
	if access == "" || refresh == "" {
		return nil, errs.ErrNotFound
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	remember, err := s.kv.Get(ctx, KeyRememberMe)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	return &model.Session{User: u, AccessToken: access, RefreshToken: refresh, RememberMe: remember == "true"}, nil
}

// Login authenticates and persists the session. Backend rejection surfaces as errs.ErrAuth.
func (s *Store) Login(ctx context.Context, email, password string, rememberMe bool) error {
	resp, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.establish(ctx, resp, rememberMe)
}

// Register creates an account and persists the resulting session.
func (s *Store) Register(ctx context.Context, name, email, password string) error {
	resp, err := s.auth.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	return s.establish(ctx, resp, false)
}

func (s *Store) establish(ctx context.Context, resp model.AuthResponse, rememberMe bool) error {
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return fmt.Errorf("%w: response without tokens", errs.ErrAuth)
	}
	userJSON, err := json.Marshal(resp.User)
	if err != nil {
		return err
	}
	entries := []storage.Entry{
		{Key: KeyAccessToken, Value: resp.AccessToken},
		{Key: KeyRefreshToken, Value: resp.RefreshToken},
		{Key: KeyUser, Value: string(userJSON)},
	}
	if rememberMe {
		entries = append(entries, storage.Entry{Key: KeyRememberMe, Value: "true"})
	} else if err := s.kv.Delete(ctx, KeyRememberMe); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := s.kv.Put(ctx, entries...); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.set(&model.Session{
		User:         resp.User,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		RememberMe:   rememberMe,
	})
	s.log.Info("session established", zap.String("user_id", resp.User.ID.String()))
	return nil
}

// Logout clears persisted and in-memory state. It never fails; storage errors are logged.
func (s *Store) Logout(ctx context.Context) {
	s.clear(ctx, "logout")
}

// Expire clears the session after a failed token refresh.
func (s *Store) Expire(ctx context.Context) {
	s.clear(ctx, "expired")
}

// clear drops the in-memory session before the keys, so a concurrent SetTokens either
// lands before the delete or writes nothing.
func (s *Store) clear(ctx context.Context, reason string) {
	s.set(nil)
	if err := s.kv.Delete(context.WithoutCancel(ctx), allKeys...); err != nil {
		s.log.Error("clear persisted session", zap.String("reason", reason), zap.Error(err))
	}
	s.log.Info("session cleared", zap.String("reason", reason))
}

// UpdateUser replaces the stored user snapshot.
func (s *Store) UpdateUser(ctx context.Context, u model.User) error {
	s.mu.RLock()
	active := s.sess != nil
	s.mu.RUnlock()
	if !active {
		return errs.ErrUnauthorized
	}
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, storage.Entry{Key: KeyUser, Value: string(b)}); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	s.mu.Lock()
	if s.sess != nil {
		s.sess.User = u
	}
	s.mu.Unlock()
	s.notify(&u)
	return nil
}

// SetTokens persists a refreshed token pair. With no active session (e.g. a refresh
// finishing after Logout) nothing is written and errs.ErrUnauthorized is returned.
func (s *Store) SetTokens(ctx context.Context, t model.Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return fmt.Errorf("persist tokens: %w", errs.ErrUnauthorized)
	}
	if err := s.kv.Put(ctx,
		storage.Entry{Key: KeyAccessToken, Value: t.AccessToken},
		storage.Entry{Key: KeyRefreshToken, Value: t.RefreshToken},
	); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	s.sess.AccessToken = t.AccessToken
	s.sess.RefreshToken = t.RefreshToken
	return nil
}

func (s *Store) set(sess *model.Session) {
	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()
	if sess == nil {
		s.notify(nil)
		return
	}
	u := sess.User
	s.notify(&u)
}

func (s *Store) notify(u *model.User) {
	s.mu.RLock()
	fns := append([]func(*model.User){}, s.onChange...)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(u)
	}
}

// User returns a copy of the current user, or nil when logged out.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return nil
	}
	u := s.sess.User
	return &u
}

// IsAuthenticated reports whether a user is present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess != nil
}

// IsLoading reports whether Initialize has not yet completed.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// RememberMe reports the persisted remember flag of the current session.
func (s *Store) RememberMe() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess != nil && s.sess.RememberMe
}

// AccessToken returns the current access token or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return ""
	}
	return s.sess.AccessToken
}

// RefreshToken returns the current refresh token or "".
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return ""
	}
	return s.sess.RefreshToken
}

// AccessTokenExpiry decodes the exp claim without verifying the signature.
// It is for display only; the backend remains the authority on validity.
func (s *Store) AccessTokenExpiry() (time.Time, bool) {
	tok := s.AccessToken()
	if tok == "" {
		return time.Time{}, false
	}
	return TokenExpiry(tok)
}

// TokenExpiry reads the exp claim of a JWT without verification.
func TokenExpiry(tok string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
