package mockapi

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
)

// store is the backend's in-memory state.
type store struct {
	mu       sync.Mutex
	items    map[model.ID]*model.Item
	itemSeq  map[model.ID]int64
	slots    map[model.ID]*model.TimeSlot
	bookings map[model.ID]*model.Booking
	seq      int64
}

func newStore() *store {
	return &store{
		items:    make(map[model.ID]*model.Item),
		itemSeq:  make(map[model.ID]int64),
		slots:    make(map[model.ID]*model.TimeSlot),
		bookings: make(map[model.ID]*model.Booking),
	}
}

func (s *store) nextLocked() int64 {
	s.seq++
	return s.seq
}

// ---- items ----

func (s *store) addItem(it model.Item) model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.ID] = &it
	s.itemSeq[it.ID] = s.nextLocked()
	return it
}

// listItems returns owner's items newest first.
func (s *store) listItems(owner model.ID, page, limit int) model.Page[model.Item] {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mine []model.Item
	for _, it := range s.items {
		if it.UserID == owner {
			mine = append(mine, *it)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return s.itemSeq[mine[i].ID] > s.itemSeq[mine[j].ID] })

	out := model.Page[model.Item]{Data: []model.Item{}, Total: len(mine), Page: page, Limit: limit}
	out.TotalPages = (len(mine) + limit - 1) / limit
	from := (page - 1) * limit
	if from < len(mine) {
		to := min(from+limit, len(mine))
		out.Data = mine[from:to]
	}
	return out
}

func (s *store) getItem(owner, id model.ID) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != owner {
		return model.Item{}, fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	return *it, nil
}

func (s *store) updateItem(owner, id model.ID, in model.UpdateItemInput, now time.Time) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != owner {
		return model.Item{}, fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	if in.Name != nil {
		it.Name = *in.Name
	}
	if in.Description != nil {
		it.Description = *in.Description
	}
	if in.Status != nil {
		it.Status = *in.Status
	}
	if in.Category != nil {
		it.Category = *in.Category
	}
	if in.Tags != nil {
		it.Tags = model.NormalizeTags(*in.Tags)
	}
	it.UpdatedAt = now
	return *it, nil
}

func (s *store) deleteItem(owner, id model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || it.UserID != owner {
		return fmt.Errorf("item %s: %w", id, errs.ErrNotFound)
	}
	delete(s.items, id)
	delete(s.itemSeq, id)
	return nil
}

// ---- slots ----

func slotLess(a, b model.TimeSlot) bool {
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.StartTime < b.StartTime
}

func (s *store) addSlot(in model.CreateTimeSlotInput, now time.Time) (model.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if sl.Date == in.Date && sl.StartTime < in.EndTime && in.StartTime < sl.EndTime {
			return model.TimeSlot{}, fmt.Errorf("slot overlaps %s %s-%s: %w", sl.Date, sl.StartTime, sl.EndTime, errs.ErrConflict)
		}
	}
	sl := model.TimeSlot{
		ID:        model.ID(strconv.FormatInt(s.nextLocked(), 10)),
		Date:      in.Date,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		CreatedAt: now,
	}
	s.slots[sl.ID] = &sl
	return sl, nil
}

func (s *store) listSlots() []model.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TimeSlot, 0, len(s.slots))
	for _, sl := range s.slots {
		out = append(out, *sl)
	}
	sort.Slice(out, func(i, j int) bool { return slotLess(out[i], out[j]) })
	return out
}

func (s *store) availability(date string) []model.AvailabilitySlot {
	out := []model.AvailabilitySlot{}
	for _, sl := range s.listSlots() {
		if sl.Date == date && !sl.IsBooked {
			out = append(out, model.AvailabilitySlot{StartTime: sl.StartTime, EndTime: sl.EndTime})
		}
	}
	return out
}

func (s *store) deleteSlot(id model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return fmt.Errorf("slot %s: %w", id, errs.ErrNotFound)
	}
	if sl.IsBooked {
		return fmt.Errorf("slot %s is booked: %w", id, errs.ErrConflict)
	}
	delete(s.slots, id)
	return nil
}

// findSlotLocked returns the slot exactly matching date and times.
func (s *store) findSlotLocked(date, start, end string) *model.TimeSlot {
	for _, sl := range s.slots {
		if sl.Date == date && sl.StartTime == start && sl.EndTime == end {
			return sl
		}
	}
	return nil
}

// ---- bookings ----

func (s *store) addBooking(in model.CreateBookingInput, now time.Time) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := s.findSlotLocked(in.Date, in.StartTime, in.EndTime)
	if sl == nil || sl.IsBooked {
		return model.Booking{}, fmt.Errorf("time slot %s %s-%s is not available: %w", in.Date, in.StartTime, in.EndTime, errs.ErrConflict)
	}
	b := model.Booking{
		ID:        model.ID(strconv.FormatInt(s.nextLocked(), 10)),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Date:      in.Date,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Message:   in.Message,
		Status:    model.BookingPending,
		CreatedAt: now,
	}
	s.bookings[b.ID] = &b
	return b, nil
}

func (s *store) listBookings(status model.BookingStatus) []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		if status == "" || b.Status == status {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

// resolveBooking moves a pending booking to status. Approval books its slot.
func (s *store) resolveBooking(id model.ID, status model.BookingStatus) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %s: %w", id, errs.ErrNotFound)
	}
	if b.Status.Resolved() {
		return model.Booking{}, fmt.Errorf("booking already %s: %w", b.Status, errs.ErrConflict)
	}
	if status == model.BookingApproved {
		sl := s.findSlotLocked(b.Date, b.StartTime, b.EndTime)
		if sl == nil || sl.IsBooked {
			return model.Booking{}, fmt.Errorf("time slot is no longer available: %w", errs.ErrConflict)
		}
		sl.IsBooked = true
	}
	b.Status = status
	return *b, nil
}
