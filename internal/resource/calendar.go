package resource

import (
	"context"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/bookly/internal/cache"
	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
	"github.com/and161185/bookly/internal/validate"
)

// Calendar is the booking, availability and time slot resource family.
type Calendar struct {
	base
	v *validate.Validator
}

// NewCalendar returns the calendar service. A nil cache disables caching.
func NewCalendar(api API, c cache.Cache, log *zap.Logger) *Calendar {
	return &Calendar{base: newBase(api, c, log), v: validate.New()}
}

// AvailabilityKey is the cache key of one date's free windows.
func AvailabilityKey(date string) cache.Key { return cache.K(rootAvailability, date) }

// BookingsKey is the cache key of a bookings listing; "" lists every status.
func BookingsKey(status model.BookingStatus) cache.Key {
	if status == "" {
		return cache.K(rootBookings, "all")
	}
	return cache.K(rootBookings, string(status))
}

// TimeSlotsKey is the cache key of the slot listing.
func TimeSlotsKey() cache.Key { return cache.K(rootTimeSlots) }

func checkDate(date string) error {
	if date == "" {
		return errs.NewValidationError("date", "is required")
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return errs.NewValidationError("date", "must be a date in YYYY-MM-DD format")
	}
	return nil
}

// Availability returns the free windows for a single date.
func (s *Calendar) Availability(ctx context.Context, date string) ([]model.AvailabilitySlot, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	return cached(ctx, s.base, AvailabilityKey(date), func(ctx context.Context) ([]model.AvailabilitySlot, error) {
		var out []model.AvailabilitySlot
		err := s.api.Get(ctx, "/calendar/availability", url.Values{"date": {date}}, &out)
		return out, err
	})
}

// CreateBooking submits a booking request. It is public: no session is required.
func (s *Calendar) CreateBooking(ctx context.Context, in model.CreateBookingInput) (model.Booking, error) {
	if err := s.v.Struct(in); err != nil {
		return model.Booking{}, err
	}
	if err := validate.TimeRange(in.StartTime, in.EndTime); err != nil {
		return model.Booking{}, err
	}
	var out model.Booking
	if err := s.api.Post(ctx, "/calendar/book", in, &out); err != nil {
		return model.Booking{}, err
	}
	return out, s.invalidate(ctx, cache.K(rootBookings), AvailabilityKey(in.Date))
}

// Bookings lists bookings, optionally filtered by status.
func (s *Calendar) Bookings(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	switch status {
	case "", model.BookingPending, model.BookingApproved, model.BookingRejected:
	default:
		return nil, errs.NewValidationError("status", "must be one of: pending approved rejected")
	}
	return cached(ctx, s.base, BookingsKey(status), func(ctx context.Context) ([]model.Booking, error) {
		var q url.Values
		if status != "" {
			q = url.Values{"status": {string(status)}}
		}
		var out []model.Booking
		err := s.api.Get(ctx, "/calendar/bookings", q, &out)
		return out, err
	})
}

// Approve resolves a pending booking as approved. The backend rejects resolved bookings
// with a conflict.
func (s *Calendar) Approve(ctx context.Context, id model.ID) (model.Booking, error) {
	return s.resolve(ctx, id, "approve")
}

// Reject resolves a pending booking as rejected.
func (s *Calendar) Reject(ctx context.Context, id model.ID) (model.Booking, error) {
	return s.resolve(ctx, id, "reject")
}

func (s *Calendar) resolve(ctx context.Context, id model.ID, action string) (model.Booking, error) {
	if id == "" {
		return model.Booking{}, errs.NewValidationError("id", "is required")
	}
	var out model.Booking
	if err := s.api.Put(ctx, "/calendar/bookings/"+url.PathEscape(id.String())+"/"+action, nil, &out); err != nil {
		return model.Booking{}, err
	}
	// approval books a slot, so slot and availability views change too
	return out, s.invalidate(ctx, cache.K(rootBookings), cache.K(rootAvailability), TimeSlotsKey())
}

// TimeSlots lists every published slot.
func (s *Calendar) TimeSlots(ctx context.Context) ([]model.TimeSlot, error) {
	return cached(ctx, s.base, TimeSlotsKey(), func(ctx context.Context) ([]model.TimeSlot, error) {
		var out []model.TimeSlot
		err := s.api.Get(ctx, "/calendar/slots", nil, &out)
		return out, err
	})
}

// CreateTimeSlot publishes a new slot.
func (s *Calendar) CreateTimeSlot(ctx context.Context, in model.CreateTimeSlotInput) (model.TimeSlot, error) {
	if err := s.v.Struct(in); err != nil {
		return model.TimeSlot{}, err
	}
	if err := validate.TimeRange(in.StartTime, in.EndTime); err != nil {
		return model.TimeSlot{}, err
	}
	var out model.TimeSlot
	if err := s.api.Post(ctx, "/calendar/slots", in, &out); err != nil {
		return model.TimeSlot{}, err
	}
	return out, s.invalidate(ctx, TimeSlotsKey(), cache.K(rootAvailability))
}

// DeleteTimeSlot removes a slot. Whether booked slots may be deleted is up to the backend.
func (s *Calendar) DeleteTimeSlot(ctx context.Context, id model.ID) error {
	if id == "" {
		return errs.NewValidationError("id", "is required")
	}
	if err := s.api.Delete(ctx, "/calendar/slots/"+url.PathEscape(id.String())); err != nil {
		return err
	}
	return s.invalidate(ctx, TimeSlotsKey(), cache.K(rootAvailability))
}
