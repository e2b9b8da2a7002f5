package mockapi

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	pkgcrypto "github.com/and161185/bookly/internal/crypto"
	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/limiter"
	"github.com/and161185/bookly/internal/model"
)

type accessClaims struct {
	jwt.RegisteredClaims
	Gen int64 `json:"gen"`
}

type account struct {
	user    model.User
	pwdHash string
}

type refreshGrant struct {
	userID model.ID
	exp    time.Time
}

// Auth issues and verifies credentials for the mock backend.
type Auth struct {
	signKey    []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	lim        limiter.Limiter
	now        func() time.Time

	mu        sync.Mutex
	byEmail   map[string]*account
	refreshes map[string]refreshGrant
	gen       int64
	refreshN  int
}

// NewAuth constructs Auth with required dependencies.
func NewAuth(signKey []byte, accessTTL, refreshTTL time.Duration, lim limiter.Limiter, now func() time.Time) *Auth {
	if now == nil {
		now = time.Now
	}
	return &Auth{
		signKey:    signKey,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		lim:        lim,
		now:        now,
		byEmail:    make(map[string]*account),
		refreshes:  make(map[string]refreshGrant),
	}
}

func normEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// Register creates a new account and signs it in.
func (a *Auth) Register(_ context.Context, name, email, password string) (model.AuthResponse, error) {
	email = normEmail(email)
	verr := &errs.ValidationError{}
	if strings.TrimSpace(name) == "" {
		verr.Add("name", "is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		verr.Add("email", "must be a valid email address")
	}
	if len(password) < 6 {
		verr.Add("password", "must be at least 6 characters")
	}
	if verr.HasErrors() {
		return model.AuthResponse{}, verr
	}
	hash, err := pkgcrypto.Encode(password)
	if err != nil {
		return model.AuthResponse{}, err
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return model.AuthResponse{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, taken := a.byEmail[email]; taken {
		return model.AuthResponse{}, fmt.Errorf("email %s: %w", email, errs.ErrAlreadyExists)
	}
	acc := &account{
		user:    model.User{ID: model.ID(uid.String()), Email: email, Name: strings.TrimSpace(name), CreatedAt: a.now().UTC()},
		pwdHash: hash,
	}
	a.byEmail[email] = acc
	return a.issueLocked(acc.user)
}

// Login authenticates with rate limiting by (email, ip).
func (a *Auth) Login(ctx context.Context, email, password, ip string) (model.AuthResponse, error) {
	email = normEmail(email)
	ipHash := limiter.HashIP(ip)

	allowed, _, err := a.lim.Allow(ctx, email, ipHash)
	if err != nil {
		return model.AuthResponse{}, err
	}
	if !allowed {
		return model.AuthResponse{}, errs.ErrRateLimited
	}

	a.mu.Lock()
	acc, ok := a.byEmail[email]
	a.mu.Unlock()

	valid := false
	if ok {
		valid, _ = pkgcrypto.Verify(password, acc.pwdHash)
	}
	if !valid {
		if blocked, _, ferr := a.lim.Failure(ctx, email, ipHash); ferr == nil && blocked {
			return model.AuthResponse{}, errs.ErrRateLimited
		}
		// unknown email and wrong password look the same
		return model.AuthResponse{}, errs.ErrUnauthorized
	}
	_ = a.lim.Success(ctx, email, ipHash)

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.issueLocked(acc.user)
}

// Refresh rotates a refresh token into a new pair. The old refresh token stops working.
func (a *Auth) Refresh(_ context.Context, refreshToken string) (model.Tokens, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshN++
	g, ok := a.refreshes[refreshToken]
	if !ok || a.now().After(g.exp) {
		return model.Tokens{}, errs.ErrUnauthorized
	}
	delete(a.refreshes, refreshToken)

	resp, err := a.issueLocked(model.User{ID: g.userID})
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

func (a *Auth) issueLocked(u model.User) (model.AuthResponse, error) {
	access, err := a.issueAccessToken(u.ID, a.gen)
	if err != nil {
		return model.AuthResponse{}, err
	}
	raw, err := pkgcrypto.RandBytes(32)
	if err != nil {
		return model.AuthResponse{}, err
	}
	refresh := hex.EncodeToString(raw)
	a.refreshes[refresh] = refreshGrant{userID: u.ID, exp: a.now().Add(a.refreshTTL)}
	return model.AuthResponse{User: u, AccessToken: access, RefreshToken: refresh}, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (a *Auth) issueAccessToken(userID model.ID, gen int64) (string, error) {
	now := a.now()
	jti, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.accessTTL)),
		},
		Gen: gen,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.signKey)
}

// VerifyAccess validates an access token and returns its subject.
func (a *Auth) VerifyAccess(token string) (model.ID, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.signKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrUnauthorized, err)
	}
	a.mu.Lock()
	stale := claims.Gen < a.gen
	a.mu.Unlock()
	if stale || claims.Subject == "" {
		return "", errs.ErrUnauthorized
	}
	return model.ID(claims.Subject), nil
}

// ExpireAccessTokens invalidates every access token issued so far.
func (a *Auth) ExpireAccessTokens() {
	a.mu.Lock()
	a.gen++
	a.mu.Unlock()
}

// RevokeRefreshTokens invalidates every outstanding refresh token.
func (a *Auth) RevokeRefreshTokens() {
	a.mu.Lock()
	a.refreshes = make(map[string]refreshGrant)
	a.mu.Unlock()
}

// RefreshCalls returns how many refresh requests were handled.
func (a *Auth) RefreshCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshN
}

var errBadCredentials = errors.New("invalid email or password")
