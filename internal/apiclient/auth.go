package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
)

// AuthAPI calls the unauthenticated auth endpoints. Its calls are never refresh-retried.
type AuthAPI struct {
	conn *Conn
}

// NewAuthAPI returns an AuthAPI on conn.
func NewAuthAPI(conn *Conn) *AuthAPI { return &AuthAPI{conn: conn} }

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a session. Rejections wrap errs.ErrAuth.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (model.AuthResponse, error) {
	var out model.AuthResponse
	err := a.conn.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   loginRequest{Email: email, Password: password},
	}, &out)
	return out, authError("login", err)
}

// Register creates an account. Rejections wrap errs.ErrAuth.
func (a *AuthAPI) Register(ctx context.Context, name, email, password string) (model.AuthResponse, error) {
	var out model.AuthResponse
	err := a.conn.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Body:   registerRequest{Name: name, Email: email, Password: password},
	}, &out)
	return out, authError("register", err)
}

// Refresh mints a new token pair from a refresh token.
func (a *AuthAPI) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	var out model.Tokens
	err := a.conn.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   refreshRequest{RefreshToken: refreshToken},
	}, &out)
	if err != nil {
		return model.Tokens{}, fmt.Errorf("refresh: %w", err)
	}
	if out.AccessToken == "" {
		return model.Tokens{}, errors.New("refresh: response without access token")
	}
	if out.RefreshToken == "" {
		// backends that do not rotate keep the old refresh token valid
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func authError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *errs.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusConflict, http.StatusUnprocessableEntity, http.StatusTooManyRequests:
			return fmt.Errorf("%s: %w: %w", op, errs.ErrAuth, apiErr)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
