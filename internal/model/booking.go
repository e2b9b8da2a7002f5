package model

import (
	"sort"
	"time"
)

// DateLayout is the wire format of calendar dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// BookingStatus is the review state of a booking.
type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingApproved BookingStatus = "approved"
	BookingRejected BookingStatus = "rejected"
)

// Resolved reports whether the booking has left pending; resolved bookings are terminal.
func (s BookingStatus) Resolved() bool {
	return s == BookingApproved || s == BookingRejected
}

// Booking is a meeting request made by a public visitor.
type Booking struct {
	ID        ID            `json:"id"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone,omitempty"`
	Date      string        `json:"date"`
	StartTime string        `json:"startTime"`
	EndTime   string        `json:"endTime"`
	Message   string        `json:"message,omitempty"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// TimeSlot is a bookable interval managed by the owner.
type TimeSlot struct {
	ID        ID        `json:"id"`
	Date      string    `json:"date"`
	StartTime string    `json:"startTime"`
	EndTime   string    `json:"endTime"`
	IsBooked  bool      `json:"isBooked"`
	CreatedAt time.Time `json:"createdAt"`
}

// Deletable reports whether the slot may be offered for deletion. Booked slots are kept.
func (s TimeSlot) Deletable() bool { return !s.IsBooked }

// AvailabilitySlot is a free window returned for a single date.
type AvailabilitySlot struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// CreateBookingInput is the payload of the public booking call.
// Optional fields are omitted from the wire when empty.
type CreateBookingInput struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required"`
	Phone     string `json:"phone,omitempty"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
	Message   string `json:"message,omitempty"`
}

// CreateTimeSlotInput is the payload for publishing a new slot.
type CreateTimeSlotInput struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"startTime" validate:"required,hhmm"`
	EndTime   string `json:"endTime" validate:"required,hhmm"`
}

// BookingGroups splits bookings the way the admin screen lists them.
type BookingGroups struct {
	Pending  []Booking
	Upcoming []Booking // approved, today or later
	Past     []Booking // approved, before today
}

// GroupBookings partitions bookings relative to today (a YYYY-MM-DD date).
// Rejected bookings and approved bookings with an unparsable date are left out.
func GroupBookings(bookings []Booking, today time.Time) BookingGroups {
	day := today.Format(DateLayout)
	var g BookingGroups
	for _, b := range bookings {
		switch b.Status {
		case BookingPending:
			g.Pending = append(g.Pending, b)
		case BookingApproved:
			if _, err := time.Parse(DateLayout, b.Date); err != nil {
				continue
			}
			if b.Date >= day {
				g.Upcoming = append(g.Upcoming, b)
			} else {
				g.Past = append(g.Past, b)
			}
		}
	}
	return g
}

// SlotDay is the set of slots published for one date.
type SlotDay struct {
	Date  string
	Slots []TimeSlot
}

// GroupSlotsByDate groups slots by date; dates ascend and slots keep start-time order.
func GroupSlotsByDate(slots []TimeSlot) []SlotDay {
	byDate := make(map[string][]TimeSlot)
	for _, s := range slots {
		byDate[s.Date] = append(byDate[s.Date], s)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	out := make([]SlotDay, 0, len(dates))
	for _, d := range dates {
		day := byDate[d]
		sort.SliceStable(day, func(i, j int) bool { return day[i].StartTime < day[j].StartTime })
		out = append(out, SlotDay{Date: d, Slots: day})
	}
	return out
}
