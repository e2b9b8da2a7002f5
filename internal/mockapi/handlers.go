package mockapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/labstack/echo/v4"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
	"github.com/and161185/bookly/internal/validate"
)

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	resp, err := s.auth.Register(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest("email and password are required")
	}
	resp, err := s.auth.Login(c.Request().Context(), req.Email, req.Password, c.RealIP())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token required")
	}
	t, err := s.auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}
	return c.JSON(http.StatusOK, t)
}

func owner(c echo.Context) model.ID {
	id, _ := UserIDFromCtx(c.Request().Context())
	return id
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, badRequest("%s must be a positive integer", name)
	}
	return n, nil
}

func (s *Server) listItems(c echo.Context) error {
	page, err := intParam(c, "page", 1)
	if err != nil {
		return err
	}
	limit, err := intParam(c, "limit", 20)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.data.listItems(owner(c), page, min(limit, 100)))
}

func (s *Server) getItem(c echo.Context) error {
	it, err := s.data.getItem(owner(c), model.ID(c.Param("id")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (s *Server) createItem(c echo.Context) error {
	var in model.CreateItemInput
	if err := c.Bind(&in); err != nil {
		return badRequest("invalid body")
	}
	if err := s.v.Struct(in); err != nil {
		return err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	it := s.data.addItem(model.Item{
		ID:          model.ID(id.String()),
		Name:        in.Name,
		Description: in.Description,
		Status:      in.Status,
		Category:    in.Category,
		Tags:        model.NormalizeTags(in.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      owner(c),
	})
	return c.JSON(http.StatusCreated, it)
}

func (s *Server) updateItem(c echo.Context) error {
	var in model.UpdateItemInput
	if err := c.Bind(&in); err != nil {
		return badRequest("invalid body")
	}
	if err := s.v.Struct(in); err != nil {
		return err
	}
	it, err := s.data.updateItem(owner(c), model.ID(c.Param("id")), in, s.now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (s *Server) deleteItem(c echo.Context) error {
	if err := s.data.deleteItem(owner(c), model.ID(c.Param("id"))); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) availability(c echo.Context) error {
	date := c.QueryParam("date")
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return errs.NewValidationError("date", "must be a date in YYYY-MM-DD format")
	}
	return c.JSON(http.StatusOK, s.data.availability(date))
}

func (s *Server) book(c echo.Context) error {
	var in model.CreateBookingInput
	if err := c.Bind(&in); err != nil {
		return badRequest("invalid body")
	}
	if err := s.v.Struct(in); err != nil {
		return err
	}
	if err := validate.TimeRange(in.StartTime, in.EndTime); err != nil {
		return err
	}
	b, err := s.data.addBooking(in, s.now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

func (s *Server) listBookings(c echo.Context) error {
	status := model.BookingStatus(c.QueryParam("status"))
	switch status {
	case "", model.BookingPending, model.BookingApproved, model.BookingRejected:
	default:
		return badRequest("unknown status %q", status)
	}
	return c.JSON(http.StatusOK, s.data.listBookings(status))
}

func (s *Server) approveBooking(c echo.Context) error {
	return s.resolve(c, model.BookingApproved)
}

func (s *Server) rejectBooking(c echo.Context) error {
	return s.resolve(c, model.BookingRejected)
}

func (s *Server) resolve(c echo.Context, status model.BookingStatus) error {
	b, err := s.data.resolveBooking(model.ID(c.Param("id")), status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (s *Server) listSlots(c echo.Context) error {
	return c.JSON(http.StatusOK, s.data.listSlots())
}

func (s *Server) createSlot(c echo.Context) error {
	var in model.CreateTimeSlotInput
	if err := c.Bind(&in); err != nil {
		return badRequest("invalid body")
	}
	if err := s.v.Struct(in); err != nil {
		return err
	}
	if err := validate.TimeRange(in.StartTime, in.EndTime); err != nil {
		return err
	}
	sl, err := s.data.addSlot(in, s.now().UTC())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sl)
}

func (s *Server) deleteSlot(c echo.Context) error {
	if err := s.data.deleteSlot(model.ID(c.Param("id"))); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
