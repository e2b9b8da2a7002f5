// Package apiclient talks JSON to the booking backend: plain dispatch, auth calls,
// and an authenticated client that recovers from expired access tokens.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/bookly/internal/errs"
)

// DefaultTimeout is the per-request deadline.
const DefaultTimeout = 15 * time.Second

const maxErrorBody = 64 << 10

// Request is a single backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	Token  string
}

// Conn performs JSON requests against a base URL.
type Conn struct {
	hc      *http.Client
	baseURL string
	timeout time.Duration
	log     *zap.Logger
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ConnOption {
	return func(c *Conn) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) ConnOption {
	return func(c *Conn) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger enables request logging through a LoggingTransport.
func WithLogger(log *zap.Logger) ConnOption {
	return func(c *Conn) {
		if log != nil {
			c.log = log
		}
	}
}

// NewConn returns a Conn for baseURL (e.g. "http://localhost:8080/api").
func NewConn(baseURL string, opts ...ConnOption) *Conn {
	c := &Conn{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.hc == nil {
		c.hc = &http.Client{Transport: NewLoggingTransport(nil, c.log)}
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Conn) BaseURL() string { return c.baseURL }

// Do sends req and decodes a 2xx JSON body into out (if non-nil).
// Non-2xx responses return *errs.APIError; transport failures wrap errs.ErrTimeout or errs.ErrNetwork.
func (c *Conn) Do(ctx context.Context, req Request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return err
	}
	hreq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		hreq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	if id, err := uuid.NewV4(); err == nil {
		hreq.Header.Set("X-Request-ID", id.String())
	}

	resp, err := c.hc.Do(hreq)
	if err != nil {
		return transportError(req, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return transportError(req, err)
		}
		return fmt.Errorf("decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

type errorBody struct {
	StatusCode int                 `json:"statusCode"`
	Message    json.RawMessage     `json:"message"`
	Error      string              `json:"error"`
	Errors     map[string][]string `json:"errors"`
}

func decodeAPIError(resp *http.Response) error {
	out := &errs.APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		out.Message = messageText(eb.Message)
		if out.Message == "" {
			out.Message = eb.Error
		}
		out.Errors = eb.Errors
	}
	return out
}

// messageText accepts "message" as a string or a list of strings.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

func transportError(req Request, err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %s %s: %w", errs.ErrTimeout, req.Method, req.Path, err)
	}
	return fmt.Errorf("%w: %s %s: %w", errs.ErrNetwork, req.Method, req.Path, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
