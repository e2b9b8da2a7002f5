// Package mockapi is an in-memory implementation of the booking backend's REST contract
// for local development and end-to-end tests.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/limiter"
	"github.com/and161185/bookly/internal/validate"
)

// Config holds server settings. Zero values get dev defaults.
type Config struct {
	SignKey    []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Login lockout: MaxFails failures within Window block for BlockFor.
	Window   time.Duration
	MaxFails int
	BlockFor time.Duration
	Now      func() time.Time
}

func (c *Config) defaults() {
	if len(c.SignKey) == 0 {
		c.SignKey = []byte("mockapi-dev-signing-key")
	}
	if c.AccessTTL <= 0 {
		c.AccessTTL = 15 * time.Minute
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.MaxFails <= 0 {
		c.MaxFails = 5
	}
	if c.BlockFor <= 0 {
		c.BlockFor = 15 * time.Minute
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Server serves the backend contract under /api.
type Server struct {
	e    *echo.Echo
	auth *Auth
	data *store
	v    *validate.Validator
	log  *zap.Logger
	now  func() time.Time

	mu     sync.Mutex
	counts map[string]int
}

// New builds a server with empty state.
func New(cfg Config, log *zap.Logger) *Server {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	lim := limiter.NewMemory(cfg.Window, cfg.MaxFails, cfg.BlockFor).WithClock(cfg.Now)
	s := &Server{
		e:      echo.New(),
		auth:   NewAuth(cfg.SignKey, cfg.AccessTTL, cfg.RefreshTTL, lim, cfg.Now),
		data:   newStore(),
		v:      validate.New(),
		log:    log,
		now:    cfg.Now,
		counts: make(map[string]int),
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.HTTPErrorHandler = s.errorHandler
	s.e.Use(s.loggingMiddleware, s.recoverMiddleware)
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.e.Group("/api")
	api.GET("/healthz", func(c echo.Context) error { return c.JSON(http.StatusOK, echo.Map{"status": "ok"}) })

	a := api.Group("/auth")
	a.POST("/register", s.register)
	a.POST("/login", s.login)
	a.POST("/refresh", s.refresh)

	items := api.Group("/items", s.requireAuth)
	items.GET("", s.listItems)
	items.POST("", s.createItem)
	items.GET("/:id", s.getItem)
	items.PUT("/:id", s.updateItem)
	items.DELETE("/:id", s.deleteItem)

	cal := api.Group("/calendar")
	cal.GET("/availability", s.availability)
	cal.POST("/book", s.book)
	cal.GET("/bookings", s.listBookings, s.requireAuth)
	cal.PUT("/bookings/:id/approve", s.approveBooking, s.requireAuth)
	cal.PUT("/bookings/:id/reject", s.rejectBooking, s.requireAuth)
	cal.GET("/slots", s.listSlots, s.requireAuth)
	cal.POST("/slots", s.createSlot, s.requireAuth)
	cal.DELETE("/slots/:id", s.deleteSlot, s.requireAuth)
}

// Handler returns the HTTP handler, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.e }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// Auth exposes the credential service for test hooks.
func (s *Server) Auth() *Auth { return s.auth }

// ExpireAccessTokens makes every issued access token fail with 401.
func (s *Server) ExpireAccessTokens() { s.auth.ExpireAccessTokens() }

// RevokeRefreshTokens makes every outstanding refresh token fail with 401.
func (s *Server) RevokeRefreshTokens() { s.auth.RevokeRefreshTokens() }

// Count returns how many requests hit route, e.g. "GET /api/items".
func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[route]
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		uid, err := s.auth.VerifyAccess(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		r := c.Request()
		c.SetRequest(r.WithContext(WithUserID(r.Context(), uid)))
		return next(c)
	}
}

// loggingMiddleware logs request metadata only, never payloads.
func (s *Server) loggingMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		route := c.Request().Method + " " + c.Path()
		s.mu.Lock()
		s.counts[route]++
		s.mu.Unlock()

		s.log.Info("http",
			zap.String("route", route),
			zap.Int("status", c.Response().Status),
			zap.Duration("dur", time.Since(start)),
			zap.String("request_id", c.Request().Header.Get("X-Request-ID")),
			zap.String("peer", c.RealIP()),
		)
		return nil
	}
}

func (s *Server) recoverMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic",
					zap.Any("reason", r),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request().URL.Path),
				)
				err = echo.NewHTTPError(http.StatusInternalServerError, "internal")
			}
		}()
		return next(c)
	}
}

type errorBody struct {
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

// errorHandler maps domain errors onto the wire error body.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	body := errorBody{StatusCode: http.StatusInternalServerError, Message: "internal error"}

	var he *echo.HTTPError
	var ve *errs.ValidationError
	switch {
	case errors.As(err, &he):
		body.StatusCode = he.Code
		body.Message = fmt.Sprint(he.Message)
	case errors.As(err, &ve):
		body.StatusCode = http.StatusBadRequest
		body.Message = ve.Error()
		body.Errors = make(map[string][]string, len(ve.Fields))
		for f, m := range ve.Fields {
			body.Errors[f] = []string{m}
		}
	case errors.Is(err, errs.ErrUnauthorized):
		body.StatusCode = http.StatusUnauthorized
		body.Message = errBadCredentials.Error()
	case errors.Is(err, errs.ErrAlreadyExists), errors.Is(err, errs.ErrConflict):
		body.StatusCode = http.StatusConflict
		body.Message = err.Error()
	case errors.Is(err, errs.ErrNotFound):
		body.StatusCode = http.StatusNotFound
		body.Message = err.Error()
	case errors.Is(err, errs.ErrForbidden):
		body.StatusCode = http.StatusForbidden
		body.Message = err.Error()
	case errors.Is(err, errs.ErrRateLimited):
		body.StatusCode = http.StatusTooManyRequests
		body.Message = "too many failed attempts, try again later"
	case errors.Is(err, errs.ErrBadRequest):
		body.StatusCode = http.StatusBadRequest
		body.Message = err.Error()
	default:
		s.log.Error("request failed", zap.String("path", c.Request().URL.Path), zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(body.StatusCode)
	} else {
		err = c.JSON(body.StatusCode, body)
	}
	if err != nil {
		s.log.Warn("write error response", zap.Error(err))
	}
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrBadRequest, fmt.Sprintf(format, args...))
}
