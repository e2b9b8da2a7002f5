package mockapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/bookly/internal/model"
)

type harness struct {
	t   *testing.T
	srv *Server
	ts  *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := New(Config{MaxFails: 3}, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{t: t, srv: srv, ts: ts}
}

// call sends body as JSON and decodes the response into out when non-nil.
func (h *harness) call(method, path, token string, body, out any) int {
	h.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.ts.URL+path, rd)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.ts.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) register(email string) model.AuthResponse {
	h.t.Helper()
	var resp model.AuthResponse
	code := h.call(http.MethodPost, "/api/auth/register", "", registerReq{Name: "Owner", Email: email, Password: "secret1"}, &resp)
	require.Equal(h.t, http.StatusCreated, code)
	return resp
}

func TestServer_AuthFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	reg := h.register("owner@example.com")

	var body errorBody
	code := h.call(http.MethodPost, "/api/auth/register", "", registerReq{Name: "Owner", Email: "owner@example.com", Password: "secret1"}, &body)
	require.Equal(t, http.StatusConflict, code)
	require.Equal(t, http.StatusConflict, body.StatusCode)

	code = h.call(http.MethodPost, "/api/auth/login", "", loginReq{Email: "owner@example.com", Password: "nope"}, &body)
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "invalid email or password", body.Message)

	var login model.AuthResponse
	code = h.call(http.MethodPost, "/api/auth/login", "", loginReq{Email: "owner@example.com", Password: "secret1"}, &login)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, reg.User.ID, login.User.ID)

	var tok model.Tokens
	code = h.call(http.MethodPost, "/api/auth/refresh", "", refreshReq{RefreshToken: login.RefreshToken}, &tok)
	require.Equal(t, http.StatusOK, code)
	require.NotEqual(t, login.AccessToken, tok.AccessToken)

	code = h.call(http.MethodPost, "/api/auth/refresh", "", refreshReq{RefreshToken: login.RefreshToken}, nil)
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestServer_LoginLockout(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.register("owner@example.com")

	bad := loginReq{Email: "owner@example.com", Password: "wrong"}
	require.Equal(t, http.StatusUnauthorized, h.call(http.MethodPost, "/api/auth/login", "", bad, nil))
	require.Equal(t, http.StatusUnauthorized, h.call(http.MethodPost, "/api/auth/login", "", bad, nil))
	require.Equal(t, http.StatusTooManyRequests, h.call(http.MethodPost, "/api/auth/login", "", bad, nil))

	good := loginReq{Email: "owner@example.com", Password: "secret1"}
	require.Equal(t, http.StatusTooManyRequests, h.call(http.MethodPost, "/api/auth/login", "", good, nil))
}

func TestServer_ItemsCRUD(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	tok := h.register("owner@example.com").AccessToken
	other := h.register("other@example.com").AccessToken

	require.Equal(t, http.StatusUnauthorized, h.call(http.MethodGet, "/api/items", "", nil, nil))

	var body errorBody
	code := h.call(http.MethodPost, "/api/items", tok, model.CreateItemInput{Status: "bogus"}, &body)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body.Errors, "name")
	require.Contains(t, body.Errors, "status")

	var first, second model.Item
	code = h.call(http.MethodPost, "/api/items", tok, model.CreateItemInput{Name: "Laptop", Status: model.ItemActive, Tags: []string{" a ", "a", ""}}, &first)
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, []string{"a"}, first.Tags)
	h.call(http.MethodPost, "/api/items", tok, model.CreateItemInput{Name: "Bike", Status: model.ItemPending}, &second)

	var page model.Page[model.Item]
	require.Equal(t, http.StatusOK, h.call(http.MethodGet, "/api/items?page=1&limit=1", tok, nil, &page))
	require.Equal(t, 2, page.Total)
	require.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 1)
	require.Equal(t, second.ID, page.Data[0].ID, "newest first")

	require.Equal(t, http.StatusBadRequest, h.call(http.MethodGet, "/api/items?page=0", tok, nil, nil))

	var otherPage model.Page[model.Item]
	h.call(http.MethodGet, "/api/items", other, nil, &otherPage)
	require.Empty(t, otherPage.Data)
	require.Equal(t, http.StatusNotFound, h.call(http.MethodGet, "/api/items/"+first.ID.String(), other, nil, nil))

	name := "Laptop Pro"
	var upd model.Item
	require.Equal(t, http.StatusOK, h.call(http.MethodPut, "/api/items/"+first.ID.String(), tok, model.UpdateItemInput{Name: &name}, &upd))
	require.Equal(t, "Laptop Pro", upd.Name)
	require.Equal(t, model.ItemActive, upd.Status)

	require.Equal(t, http.StatusNoContent, h.call(http.MethodDelete, "/api/items/"+first.ID.String(), tok, nil, nil))
	require.Equal(t, http.StatusNotFound, h.call(http.MethodGet, "/api/items/"+first.ID.String(), tok, nil, nil))
	require.Equal(t, 2, h.srv.Count("GET /api/items/:id"))
}

func TestServer_BookingLifecycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	tok := h.register("owner@example.com").AccessToken

	slot := model.CreateTimeSlotInput{Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30"}
	var created model.TimeSlot
	require.Equal(t, http.StatusCreated, h.call(http.MethodPost, "/api/calendar/slots", tok, slot, &created))
	require.Equal(t, http.StatusConflict, h.call(http.MethodPost, "/api/calendar/slots", tok, slot, nil))

	var body errorBody
	code := h.call(http.MethodPost, "/api/calendar/slots", tok, model.CreateTimeSlotInput{Date: "2024-06-10", StartTime: "11:00", EndTime: "10:00"}, &body)
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body.Errors, "endTime")

	var avail []model.AvailabilitySlot
	require.Equal(t, http.StatusOK, h.call(http.MethodGet, "/api/calendar/availability?date=2024-06-10", "", nil, &avail))
	require.Equal(t, []model.AvailabilitySlot{{StartTime: "09:00", EndTime: "09:30"}}, avail)
	require.Equal(t, http.StatusBadRequest, h.call(http.MethodGet, "/api/calendar/availability?date=June", "", nil, nil))

	in := model.CreateBookingInput{Name: "Jane Doe", Email: "jane@example.com", Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30"}
	var b model.Booking
	require.Equal(t, http.StatusCreated, h.call(http.MethodPost, "/api/calendar/book", "", in, &b))
	require.Equal(t, model.BookingPending, b.Status)

	miss := in
	miss.StartTime, miss.EndTime = "13:00", "13:30"
	require.Equal(t, http.StatusConflict, h.call(http.MethodPost, "/api/calendar/book", "", miss, nil))

	require.Equal(t, http.StatusUnauthorized, h.call(http.MethodGet, "/api/calendar/bookings", "", nil, nil))
	var pending []model.Booking
	h.call(http.MethodGet, "/api/calendar/bookings?status=pending", tok, nil, &pending)
	require.Len(t, pending, 1)
	require.Equal(t, http.StatusBadRequest, h.call(http.MethodGet, "/api/calendar/bookings?status=lost", tok, nil, nil))

	var approved model.Booking
	require.Equal(t, http.StatusOK, h.call(http.MethodPut, "/api/calendar/bookings/"+b.ID.String()+"/approve", tok, nil, &approved))
	require.Equal(t, model.BookingApproved, approved.Status)
	require.Equal(t, http.StatusConflict, h.call(http.MethodPut, "/api/calendar/bookings/"+b.ID.String()+"/reject", tok, nil, nil))

	avail = nil
	h.call(http.MethodGet, "/api/calendar/availability?date=2024-06-10", "", nil, &avail)
	require.Empty(t, avail)

	var slots []model.TimeSlot
	h.call(http.MethodGet, "/api/calendar/slots", tok, nil, &slots)
	require.Len(t, slots, 1)
	require.True(t, slots[0].IsBooked)
	require.Equal(t, http.StatusConflict, h.call(http.MethodDelete, "/api/calendar/slots/"+created.ID.String(), tok, nil, nil))
	require.Equal(t, http.StatusNotFound, h.call(http.MethodDelete, "/api/calendar/slots/999", tok, nil, nil))
}

func TestServer_ExpireAccessTokens(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	reg := h.register("owner@example.com")
	require.Equal(t, http.StatusOK, h.call(http.MethodGet, "/api/items", reg.AccessToken, nil, nil))

	h.srv.ExpireAccessTokens()
	require.Equal(t, http.StatusUnauthorized, h.call(http.MethodGet, "/api/items", reg.AccessToken, nil, nil))

	var tok model.Tokens
	h.call(http.MethodPost, "/api/auth/refresh", "", refreshReq{RefreshToken: reg.RefreshToken}, &tok)
	require.Equal(t, http.StatusOK, h.call(http.MethodGet, "/api/items", tok.AccessToken, nil, nil))
	require.Equal(t, 1, h.srv.Auth().RefreshCalls())
}

func TestServer_NowDrivesTimestamps(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	srv := New(Config{Now: func() time.Time { return at }}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	h := &harness{t: t, srv: srv, ts: ts}

	tok := h.register("owner@example.com").AccessToken
	var it model.Item
	h.call(http.MethodPost, "/api/items", tok, model.CreateItemInput{Name: "x", Status: model.ItemActive}, &it)
	require.True(t, it.CreatedAt.Equal(at))
}
