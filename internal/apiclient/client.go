package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
)

// TokenStore holds the credentials the client sends and refreshes.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(ctx context.Context, t model.Tokens) error
	Expire(ctx context.Context)
}

// Refresher exchanges a refresh token for a new pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
}

var errNoRefreshToken = errors.New("no refresh token")

// Client dispatches authenticated requests. On a 401 it refreshes once and retries once.
type Client struct {
	conn      *Conn
	tokens    TokenStore
	refresher Refresher
	log       *zap.Logger
	onExpired func()

	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// OnSessionExpired sets the hook run after a failed refresh cleared the session.
func OnSessionExpired(fn func()) Option {
	return func(c *Client) { c.onExpired = fn }
}

// WithClientLogger sets the client logger.
func WithClientLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New builds a Client.
func New(conn *Conn, tokens TokenStore, refresher Refresher, opts ...Option) *Client {
	c := &Client{conn: conn, tokens: tokens, refresher: refresher, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do sends an authenticated request and decodes the response into out.
//
// A 401 triggers at most one refresh and one retry. If there is no refresh token or the
// refresh fails, the session is expired and the original error is returned wrapped in
// errs.ErrSessionExpired. A 401 on the retried request is returned as is.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	req.Token = c.tokens.AccessToken()
	err := c.conn.Do(ctx, req, out)
	if !errors.Is(err, errs.ErrUnauthorized) {
		return err
	}

	if rerr := c.refresh(ctx, req.Token); rerr != nil {
		if cerr := ctx.Err(); cerr != nil && errors.Is(rerr, cerr) {
			// the caller gave up; the shared refresh carries on and the session stays
			return transportError(req, rerr)
		}
		c.log.Info("session expired",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(rerr),
		)
		return fmt.Errorf("%w: %w", errs.ErrSessionExpired, err)
	}

	req.Token = c.tokens.AccessToken()
	return c.conn.Do(ctx, req, out)
}

// refresh renews the token pair unless another caller already replaced stale.
// Concurrent callers share one refresh call. The shared call is detached from the
// caller's cancellation and bounded by the Conn deadline; a caller whose ctx ends
// first gets ctx.Err() and the session is left alone.
func (c *Client) refresh(ctx context.Context, stale string) error {
	if cur := c.tokens.AccessToken(); cur != "" && cur != stale {
		return nil
	}
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		if cur := c.tokens.AccessToken(); cur != "" && cur != stale {
			return nil, nil
		}
		rctx := context.WithoutCancel(ctx)
		err := c.doRefresh(rctx)
		if err != nil {
			c.tokens.Expire(rctx)
			if c.onExpired != nil {
				c.onExpired()
			}
		}
		return nil, err
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (c *Client) doRefresh(ctx context.Context) error {
	rt := c.tokens.RefreshToken()
	if rt == "" {
		return errNoRefreshToken
	}
	t, err := c.refresher.Refresh(ctx, rt)
	if err != nil {
		return err
	}
	if err := c.tokens.SetTokens(ctx, t); err != nil {
		return err
	}
	c.log.Debug("access token refreshed")
	return nil
}

// Get issues a GET.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put issues a PUT with an optional JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}
