package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/bookly/internal/config"
	"github.com/and161185/bookly/internal/mockapi"
)

type harness struct {
	t   *testing.T
	srv *mockapi.Server
	cfg config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := mockapi.New(mockapi.Config{}, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{
		t:   t,
		srv: srv,
		cfg: config.Config{
			APIURL:         ts.URL + "/api",
			Timeout:        5 * time.Second,
			Cache:          config.CacheMemory,
			CacheTTL:       time.Minute,
			CacheSize:      64,
			SessionStore:   config.SessionFile,
			SessionDSN:     filepath.Join(t.TempDir(), "session.json"),
			SessionProfile: "default",
		},
	}
}

// bk runs one invocation with stdin and returns exit code, stdout and stderr.
func (h *harness) bk(stdin string, args ...string) (int, string, string) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	c := &cli{
		stdin:      strings.NewReader(stdin),
		stdout:     &out,
		stderr:     &errOut,
		loadConfig: func() (config.Config, error) { return h.cfg, nil },
		newLogger:  func(config.Config) (*zap.Logger, error) { return zaptest.NewLogger(h.t), nil },
		now:        time.Now,
	}
	code := c.run(context.Background(), args)
	return code, out.String(), errOut.String()
}

func (h *harness) ok(args ...string) string {
	h.t.Helper()
	code, out, errOut := h.bk("", args...)
	require.Equal(h.t, exitOK, code, "bk %v: %s", args, errOut)
	return out
}

func (h *harness) login() {
	h.t.Helper()
	h.ok("register", "-name", "Owner", "-email", "owner@example.com", "-password", "secret1")
}

func TestBK_UsageAndVersion(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	code, _, errOut := h.bk("")
	require.Equal(t, exitUsage, code)
	require.Contains(t, errOut, "Usage:")

	code, _, errOut = h.bk("", "frobnicate")
	require.Equal(t, exitUsage, code)
	require.Contains(t, errOut, `unknown command "frobnicate"`)

	require.Contains(t, h.ok("version"), "bk dev")

	code, _, errOut = h.bk("", "item")
	require.Equal(t, exitUsage, code)
	require.Contains(t, errOut, "need -id")
}

func TestBK_SessionLifecycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	code, _, errOut := h.bk("", "whoami")
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "not logged in")

	h.login()
	out := h.ok("whoami")
	require.Contains(t, out, "Owner <owner@example.com>")
	require.Contains(t, out, "access token expires in")

	h.ok("logout")
	code, _, _ = h.bk("", "whoami")
	require.Equal(t, exitErr, code)

	code, _, errOut = h.bk("wrong\n", "login", "-email", "owner@example.com")
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "auth:")

	out = h.ok("login", "-email", "owner@example.com", "-password", "secret1", "-remember")
	require.Contains(t, out, "logged in as owner@example.com")
	require.Contains(t, h.ok("whoami"), "remember me: on")
}

func TestBK_PasswordPrompt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login()
	h.ok("logout")

	code, out, errOut := h.bk("secret1\n", "login", "-email", "owner@example.com")
	require.Equal(t, exitOK, code, errOut)
	require.Contains(t, out, "Password: ")
}

func TestBK_Items(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	code, _, errOut := h.bk("", "items")
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "run `bk login`")

	h.login()
	require.Contains(t, h.ok("items"), "no items")

	out := h.ok("item-add", "-name", "Laptop", "-desc", "work machine", "-tags", "work, tech,work")
	require.Contains(t, out, "created ")
	id := strings.TrimSpace(strings.TrimPrefix(out, "created "))
	h.ok("item-add", "-name", "Bike", "-status", "pending")

	out = h.ok("items", "-q", "WORK")
	require.Contains(t, out, "Laptop")
	require.NotContains(t, out, "Bike")
	require.Contains(t, out, "work,tech")

	out = h.ok("item", "-id", id)
	require.Contains(t, out, "Laptop  [active]")

	h.ok("item-edit", "-id", id, "-status", "archived")
	out = h.ok("item", "-id", id)
	require.Contains(t, out, "[archived]")
	require.Contains(t, out, "work machine", "unset flags are left unchanged")

	out = h.ok("stats")
	require.Contains(t, out, "total")
	require.Regexp(t, `archived\s+1`, out)
	require.Regexp(t, `pending\s+1`, out)

	code, _, errOut = h.bk("", "item-add", "-name", "", "-status", "lost")
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "invalid input:")
	require.Contains(t, errOut, "name: is required")

	code, _, errOut = h.bk("", "item-edit", "-id", id)
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "no fields to update")

	h.ok("item-rm", "-id", id)
	code, _, errOut = h.bk("", "item", "-id", id)
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "not_found")
}

func TestBK_CalendarFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login()

	h.ok("slot-add", "-date", "2030-01-07", "-start", "09:00", "-end", "09:30")
	h.ok("slot-add", "-date", "2030-01-07", "-start", "10:00", "-end", "10:30")
	out := h.ok("availability", "-date", "2030-01-07")
	require.Equal(t, "09:00-09:30\n10:00-10:30\n", out)

	out = h.ok("book", "-name", "Jane Doe", "-email", "jane@x.com", "-date", "2030-01-07", "-start", "09:00", "-end", "09:30")
	require.Contains(t, out, "pending approval")
	require.Equal(t, 1, h.srv.Count("POST /api/calendar/book"))

	code, _, errOut := h.bk("", "book", "-name", "Jane", "-email", "jane@x.com", "-date", "2030-01-07", "-start", "13:00")
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "conflict")

	out = h.ok("bookings", "-status", "pending")
	require.Contains(t, out, "Jane Doe")
	fields := strings.Fields(out)
	id := fields[0]

	out = h.ok("approve", "-id", id)
	require.Contains(t, out, "approved")

	code, _, errOut = h.bk("", "approve", "-id", id)
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "conflict: api 409")

	out = h.ok("bookings")
	require.Contains(t, out, "Pending (0)")
	require.Contains(t, out, "Upcoming (1)")
	require.NotContains(t, out, "Past")

	out = h.ok("slots")
	require.Contains(t, out, "2030-01-07")
	require.Contains(t, out, "[booked]")

	var bookedID, freeID string
	for _, line := range strings.Split(out, "\n") {
		f := strings.Fields(line)
		if len(f) < 2 || !strings.HasPrefix(f[1], "id=") {
			continue
		}
		if strings.Contains(line, "[booked]") {
			bookedID = strings.TrimPrefix(f[1], "id=")
		} else {
			freeID = strings.TrimPrefix(f[1], "id=")
		}
	}
	require.NotEmpty(t, bookedID)
	require.NotEmpty(t, freeID)

	deletes := h.srv.Count("DELETE /api/calendar/slots/:id")
	code, _, errOut = h.bk("", "slot-rm", "-id", bookedID)
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "slot is booked")
	require.Equal(t, deletes, h.srv.Count("DELETE /api/calendar/slots/:id"), "refused locally")

	h.ok("slot-rm", "-id", freeID)
	require.Contains(t, h.ok("availability", "-date", "2030-01-07"), "no free slots")
}

func TestBK_InteractiveBooking(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login()
	h.ok("slot-add", "-date", "2030-01-08", "-start", "09:00", "-end", "09:30")

	script := strings.Join([]string{
		"",           // name missing: re-asked
		"jane@x.com", //
		"",           // phone
		"Jane Doe",   // name again
		"",           // keep email
		"",           // phone
		"2020-01-01", // past date rejected
		"2030-01-09", // no slots
		"2030-01-08", //
		"5",          // out of range
		"1",          //
		"b",          // back from message to time
		"1",          //
		"",           // message
		"y",          //
	}, "\n") + "\n"

	code, out, errOut := h.bk(script, "book")
	require.Equal(t, exitOK, code, errOut)
	require.Contains(t, out, "name: is required")
	require.Contains(t, out, "date: must not be in the past")
	require.Contains(t, out, "no free slots on 2030-01-09")
	require.Contains(t, out, "timeSlot: pick one of the listed numbers")
	require.Contains(t, out, "when:    2030-01-08 09:00-09:30")
	require.Contains(t, out, "pending approval")
	require.Equal(t, 1, h.srv.Count("POST /api/calendar/book"))
}

func TestBK_InteractiveCancelAndEOF(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login()
	h.ok("slot-add", "-date", "2030-01-08", "-start", "09:00", "-end", "09:30")

	code, out, _ := h.bk("Jane\njane@x.com\n\n2030-01-08\n1\n\nn\n", "book")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "cancelled")
	require.Zero(t, h.srv.Count("POST /api/calendar/book"))

	code, _, errOut := h.bk("Jane\n", "book")
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "input closed")
}

func TestBK_SessionExpiredMessage(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login()

	h.srv.ExpireAccessTokens()
	h.srv.RevokeRefreshTokens()
	code, _, errOut := h.bk("", "items")
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "session expired; run `bk login`")

	code, _, errOut = h.bk("", "items")
	require.Equal(t, exitErr, code)
	require.Contains(t, errOut, "not logged in")
}

func TestBK_TransparentRefresh(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login()

	h.srv.ExpireAccessTokens()
	h.ok("items")
	h.ok("items")
	require.Equal(t, 1, h.srv.Auth().RefreshCalls(), "the refreshed pair is persisted")
}
