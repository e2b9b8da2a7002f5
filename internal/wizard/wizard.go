// Package wizard implements the public booking flow as a linear state machine:
// contact info, date, time slot, message, review, done.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
	"github.com/and161185/bookly/internal/validate"
)

// Step is a wizard state.
type Step int

const (
	ContactInfo Step = iota
	DateSelect
	TimeSelect
	Message
	Review
	Done
)

var stepNames = [...]string{"contact info", "date", "time", "message", "review", "done"}

func (s Step) String() string {
	if s < ContactInfo || s > Done {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

// Booker is what the wizard needs from the calendar resource.
type Booker interface {
	Availability(ctx context.Context, date string) ([]model.AvailabilitySlot, error)
	CreateBooking(ctx context.Context, in model.CreateBookingInput) (model.Booking, error)
}

// ErrFinished is returned by commands issued after a successful submit. Call Reset.
var ErrFinished = errors.New("wizard: booking already submitted")

// Draft is the data collected so far. It lives only in the wizard until Submit.
type Draft struct {
	Name    string                  `json:"name" validate:"required"`
	Email   string                  `json:"email" validate:"required"`
	Phone   string                  `json:"phone"`
	Date    string                  `json:"date" validate:"required,datetime=2006-01-02"`
	Slot    *model.AvailabilitySlot `json:"timeSlot" validate:"required"`
	Message string                  `json:"message"`
}

// guardFields lists the draft fields that must be valid to leave each step.
var guardFields = map[Step][]string{
	ContactInfo: {"Name", "Email"},
	DateSelect:  {"Date"},
	TimeSelect:  {"Slot"},
}

// Wizard is safe for concurrent use. Network calls run without holding the lock.
type Wizard struct {
	svc Booker
	v   *validate.Validator
	now func() time.Time
	log *zap.Logger

	mu         sync.Mutex
	step       Step
	draft      Draft
	slots      []model.AvailabilitySlot
	slotsFor   string
	gen        uint64
	submitting bool
	lastErr    error
	booking    *model.Booking
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithClock sets the time source used to reject past dates.
func WithClock(now func() time.Time) Option {
	return func(w *Wizard) { w.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(w *Wizard) {
		if log != nil {
			w.log = log
		}
	}
}

// New returns a wizard at ContactInfo.
func New(svc Booker, opts ...Option) *Wizard {
	w := &Wizard{svc: svc, v: validate.New(), now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(w)
	}
	return w
}

// SetContact records the visitor's contact details. Phone is optional.
func (w *Wizard) SetContact(name, email, phone string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	w.draft.Name = strings.TrimSpace(name)
	w.draft.Email = strings.TrimSpace(email)
	w.draft.Phone = strings.TrimSpace(phone)
	return nil
}

// SelectDate sets the date, clears any chosen slot and loads that date's availability.
// An empty availability list is valid. On a fetch failure the date stays selected with
// no slots, and the error is returned.
func (w *Wizard) SelectDate(ctx context.Context, date string) error {
	date = strings.TrimSpace(date)

	w.mu.Lock()
	if err := w.editableLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	if err := w.v.Partial(Draft{Date: date}, "Date"); err != nil {
		w.mu.Unlock()
		return err
	}
	if date < w.now().Format(model.DateLayout) {
		w.mu.Unlock()
		return errs.NewValidationError("date", "must not be in the past")
	}
	w.draft.Date = date
	w.draft.Slot = nil
	w.slots = nil
	w.slotsFor = ""
	w.gen++
	gen := w.gen
	w.mu.Unlock()

	slots, err := w.svc.Availability(ctx, date)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		// a newer date or a reset won
		return nil
	}
	if err != nil {
		w.log.Warn("availability fetch failed", zap.String("date", date), zap.Error(err))
		return fmt.Errorf("load availability for %s: %w", date, err)
	}
	if slots == nil {
		slots = []model.AvailabilitySlot{}
	}
	w.slots = slots
	w.slotsFor = date
	return nil
}

// SelectSlot picks one of the windows returned for the selected date.
func (w *Wizard) SelectSlot(slot model.AvailabilitySlot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	if !w.offeredLocked(slot) {
		return errs.NewValidationError("timeSlot", "is not available on the selected date")
	}
	s := slot
	w.draft.Slot = &s
	return nil
}

// SetMessage records the optional message.
func (w *Wizard) SetMessage(msg string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editableLocked(); err != nil {
		return err
	}
	w.draft.Message = strings.TrimSpace(msg)
	return nil
}

// editableLocked rejects draft edits once finished or while a submit is in flight.
func (w *Wizard) editableLocked() error {
	switch {
	case w.step == Done:
		return ErrFinished
	case w.submitting:
		return errs.ErrBusy
	}
	return nil
}

// Next advances one step if the current step's guard holds. Review is left through Submit.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.step {
	case Review:
		return fmt.Errorf("%w: review is completed by submitting", errs.ErrBadRequest)
	case Done:
		return ErrFinished
	}
	if err := w.guardLocked(w.step); err != nil {
		return err
	}
	w.step++
	return nil
}

// Back returns to the previous step. The draft is kept.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.step == Done:
		return ErrFinished
	case w.submitting:
		return errs.ErrBusy
	case w.step > ContactInfo:
		w.step--
	}
	return nil
}

// Submit sends the draft as exactly one booking request. On success the wizard moves to
// Done and the draft is discarded; on failure it stays on Review and the error is kept in
// LastError. A Submit issued while another is in flight fails with errs.ErrBusy.
func (w *Wizard) Submit(ctx context.Context) (model.Booking, error) {
	w.mu.Lock()
	if w.step != Review {
		step := w.step
		w.mu.Unlock()
		if step == Done {
			return model.Booking{}, ErrFinished
		}
		return model.Booking{}, fmt.Errorf("%w: submit from %s", errs.ErrBadRequest, step)
	}
	if w.submitting {
		w.mu.Unlock()
		return model.Booking{}, errs.ErrBusy
	}
	if err := w.guardLocked(Message); err != nil {
		w.mu.Unlock()
		return model.Booking{}, err
	}
	in := model.CreateBookingInput{
		Name:      w.draft.Name,
		Email:     w.draft.Email,
		Phone:     w.draft.Phone,
		Date:      w.draft.Date,
		StartTime: w.draft.Slot.StartTime,
		EndTime:   w.draft.Slot.EndTime,
		Message:   w.draft.Message,
	}
	w.submitting = true
	w.lastErr = nil
	gen := w.gen
	w.mu.Unlock()

	b, err := w.svc.CreateBooking(ctx, in)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if gen != w.gen {
		// only Reset moves gen while in flight: the result belongs to a discarded draft
		return b, err
	}
	if err != nil && !errors.Is(err, errs.ErrCacheInvalidation) {
		w.lastErr = err
		return model.Booking{}, err
	}
	if err != nil {
		// the booking exists; only local caches are stale
		w.log.Warn("booking created with stale cache", zap.Error(err))
	}
	w.booking = &b
	w.draft = Draft{}
	w.slots, w.slotsFor = nil, ""
	w.step = Done
	return b, nil
}

// Reset discards the draft and restarts at ContactInfo.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.step = ContactInfo
	w.draft = Draft{}
	w.slots, w.slotsFor = nil, ""
	w.lastErr = nil
	w.booking = nil
	w.gen++
}

// CanAdvance reports whether Next (or Submit, on Review) would be accepted now.
func (w *Wizard) CanAdvance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch w.step {
	case Done:
		return false
	case Review:
		return !w.submitting && w.guardLocked(Message) == nil
	}
	return w.guardLocked(w.step) == nil
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Draft returns a copy of the collected data.
func (w *Wizard) Draft() Draft {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.draft
	if d.Slot != nil {
		s := *d.Slot
		d.Slot = &s
	}
	return d
}

// Slots returns the availability loaded for the selected date, nil if none was loaded.
func (w *Wizard) Slots() []model.AvailabilitySlot {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.slots == nil {
		return nil
	}
	return append([]model.AvailabilitySlot{}, w.slots...)
}

// Progress returns the 1-based position of the current step and the step count.
func (w *Wizard) Progress() (current, total int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.step) + 1, int(Done) + 1
}

// Submitting reports whether a submit is in flight.
func (w *Wizard) Submitting() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitting
}

// LastError returns the error of the last failed submit, if any.
func (w *Wizard) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Booking returns the booking created by a successful submit.
func (w *Wizard) Booking() (model.Booking, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.booking == nil {
		return model.Booking{}, false
	}
	return *w.booking, true
}

// guardLocked checks every guard from ContactInfo through upTo.
func (w *Wizard) guardLocked(upTo Step) error {
	for s := ContactInfo; s <= upTo; s++ {
		fields, ok := guardFields[s]
		if !ok {
			continue
		}
		if err := w.v.Partial(w.draft, fields...); err != nil {
			return err
		}
		if s == TimeSelect && !w.offeredLocked(*w.draft.Slot) {
			return errs.NewValidationError("timeSlot", "is not available on the selected date")
		}
	}
	return nil
}

func (w *Wizard) offeredLocked(slot model.AvailabilitySlot) bool {
	if w.slotsFor == "" || w.slotsFor != w.draft.Date {
		return false
	}
	for _, s := range w.slots {
		if s == slot {
			return true
		}
	}
	return false
}
