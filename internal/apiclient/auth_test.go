package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
)

func TestAuthAPI(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var body loginRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(model.AuthResponse{
				User:        model.User{ID: "u1", Email: body.Email},
				AccessToken: "a", RefreshToken: "r",
			})
		case "/auth/register":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"Email already registered"}`))
		case "/auth/refresh":
			_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "a2"})
		case "/auth/down":
		}
	}))
	t.Cleanup(srv.Close)
	a := NewAuthAPI(NewConn(srv.URL))
	ctx := context.Background()

	resp, err := a.Login(ctx, "a@b.c", "secret")
	require.NoError(t, err)
	require.Equal(t, "a@b.c", resp.User.Email)

	_, err = a.Login(ctx, "a@b.c", "wrong")
	require.ErrorIs(t, err, errs.ErrAuth)
	require.Equal(t, "auth", errs.Kind(err))

	_, err = a.Register(ctx, "Ann", "a@b.c", "pw")
	require.ErrorIs(t, err, errs.ErrAuth)
	require.ErrorIs(t, err, errs.ErrConflict)

	tok, err := a.Refresh(ctx, "r-old")
	require.NoError(t, err)
	require.Equal(t, model.Tokens{AccessToken: "a2", RefreshToken: "r-old"}, tok)
}

func TestAuthAPI_NetworkIsNotAuth(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewAuthAPI(NewConn(url)).Login(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, errs.ErrNetwork)
	require.NotErrorIs(t, err, errs.ErrAuth)
}
