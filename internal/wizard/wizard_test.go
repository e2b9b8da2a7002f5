package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
)

type fakeBooker struct {
	mu        sync.Mutex
	avail     map[string][]model.AvailabilitySlot
	availErr  error
	createErr error
	block     chan struct{}
	entered   chan struct{}

	calls []model.CreateBookingInput
	fetch []string
}

var _ Booker = (*fakeBooker)(nil)

func (f *fakeBooker) Availability(_ context.Context, date string) ([]model.AvailabilitySlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetch = append(f.fetch, date)
	if f.availErr != nil {
		return nil, f.availErr
	}
	return f.avail[date], nil
}

func (f *fakeBooker) CreateBooking(_ context.Context, in model.CreateBookingInput) (model.Booking, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	block, entered, err := f.block, f.entered, f.createErr
	f.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return model.Booking{}, err
	}
	return model.Booking{ID: "b1", Name: in.Name, Date: in.Date, StartTime: in.StartTime, EndTime: in.EndTime, Status: model.BookingPending}, nil
}

var (
	nineAM  = model.AvailabilitySlot{StartTime: "09:00", EndTime: "09:30"}
	tenAM   = model.AvailabilitySlot{StartTime: "10:00", EndTime: "10:30"}
	clockAt = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
)

func newWizard(t *testing.T, f *fakeBooker) *Wizard {
	t.Helper()
	if f.avail == nil {
		f.avail = map[string][]model.AvailabilitySlot{
			"2024-06-10": {nineAM, tenAM},
			"2024-06-11": {tenAM},
		}
	}
	return New(f, WithClock(clockAt), WithLogger(zaptest.NewLogger(t)))
}

// toReview drives the wizard through the first four steps.
func toReview(t *testing.T, w *Wizard) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, w.SetContact("Jane Doe", "jane@x.com", ""))
	require.NoError(t, w.Next())
	require.NoError(t, w.SelectDate(ctx, "2024-06-10"))
	require.NoError(t, w.Next())
	require.NoError(t, w.SelectSlot(nineAM))
	require.NoError(t, w.Next())
	require.NoError(t, w.SetMessage(""))
	require.NoError(t, w.Next())
	require.Equal(t, Review, w.Step())
}

func TestWizard_JaneDoeScenario(t *testing.T) {
	t.Parallel()
	f := &fakeBooker{}
	w := newWizard(t, f)
	toReview(t, w)

	b, err := w.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, Done, w.Step())
	require.Equal(t, model.ID("b1"), b.ID)

	require.Len(t, f.calls, 1)
	in := f.calls[0]
	require.Equal(t, model.CreateBookingInput{
		Name: "Jane Doe", Email: "jane@x.com", Date: "2024-06-10", StartTime: "09:00", EndTime: "09:30",
	}, in)

	raw, err := json.Marshal(in)
	require.NoError(t, err)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	require.NotContains(t, wire, "message")
	require.NotContains(t, wire, "phone")

	got, ok := w.Booking()
	require.True(t, ok)
	require.Equal(t, b, got)
	require.Equal(t, Draft{}, w.Draft(), "draft is discarded after submit")
	require.False(t, w.CanAdvance())
}

func TestWizard_ContactGuard(t *testing.T) {
	t.Parallel()
	w := newWizard(t, &fakeBooker{})

	require.False(t, w.CanAdvance())
	var ve *errs.ValidationError
	require.ErrorAs(t, w.Next(), &ve)
	require.Contains(t, ve.Fields, "name")
	require.Contains(t, ve.Fields, "email")

	require.NoError(t, w.SetContact("  ", "jane@x.com", ""))
	require.ErrorIs(t, w.Next(), errs.ErrValidation, "whitespace name is empty")

	require.NoError(t, w.SetContact("Jane", "jane@x.com", "+1 555"))
	require.True(t, w.CanAdvance())
	require.NoError(t, w.Next())
	require.Equal(t, DateSelect, w.Step())
}

func TestWizard_DateGuardAndPastDates(t *testing.T) {
	t.Parallel()
	f := &fakeBooker{}
	w := newWizard(t, f)
	ctx := context.Background()
	require.NoError(t, w.SetContact("Jane", "jane@x.com", ""))
	require.NoError(t, w.Next())

	require.ErrorIs(t, w.Next(), errs.ErrValidation)
	require.ErrorIs(t, w.SelectDate(ctx, "06/10/2024"), errs.ErrValidation)
	require.ErrorIs(t, w.SelectDate(ctx, "2024-05-31"), errs.ErrValidation)
	require.Empty(t, f.fetch, "rejected dates never reach the network")

	require.NoError(t, w.SelectDate(ctx, "2024-06-01"), "today is bookable")
	require.Equal(t, []model.AvailabilitySlot{}, w.Slots(), "empty availability is a valid state")
	require.NoError(t, w.Next())
	require.Equal(t, TimeSelect, w.Step())
	require.False(t, w.CanAdvance(), "nothing to pick")
}

func TestWizard_NewDateClearsSlot(t *testing.T) {
	t.Parallel()
	w := newWizard(t, &fakeBooker{})
	ctx := context.Background()
	require.NoError(t, w.SetContact("Jane", "jane@x.com", ""))
	require.NoError(t, w.Next())
	require.NoError(t, w.SelectDate(ctx, "2024-06-10"))
	require.NoError(t, w.Next())
	require.NoError(t, w.SelectSlot(nineAM))
	require.True(t, w.CanAdvance())

	require.NoError(t, w.Back())
	require.NoError(t, w.SelectDate(ctx, "2024-06-11"))
	require.Nil(t, w.Draft().Slot)
	require.Equal(t, []model.AvailabilitySlot{tenAM}, w.Slots())

	require.NoError(t, w.Next())
	require.ErrorIs(t, w.SelectSlot(nineAM), errs.ErrValidation, "09:00 was offered for another date")
	require.ErrorIs(t, w.Next(), errs.ErrValidation)
	require.NoError(t, w.SelectSlot(tenAM))
	require.NoError(t, w.Next())
	require.Equal(t, Message, w.Step())
}

func TestWizard_AvailabilityFailure(t *testing.T) {
	t.Parallel()
	f := &fakeBooker{availErr: errs.ErrNetwork}
	w := newWizard(t, f)
	require.NoError(t, w.SetContact("Jane", "jane@x.com", ""))
	require.NoError(t, w.Next())

	require.ErrorIs(t, w.SelectDate(context.Background(), "2024-06-10"), errs.ErrNetwork)
	require.Equal(t, "2024-06-10", w.Draft().Date)
	require.Nil(t, w.Slots())
	require.NoError(t, w.Next())
	require.ErrorIs(t, w.SelectSlot(nineAM), errs.ErrValidation)
}

func TestWizard_SubmitFailureStaysOnReview(t *testing.T) {
	t.Parallel()
	boom := errors.New("api 500: internal error")
	f := &fakeBooker{createErr: boom}
	w := newWizard(t, f)
	toReview(t, w)

	_, err := w.Submit(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, Review, w.Step())
	require.ErrorIs(t, w.LastError(), boom)
	require.Equal(t, "Jane Doe", w.Draft().Name)
	require.Len(t, f.calls, 1, "no automatic retry")

	f.mu.Lock()
	f.createErr = nil
	f.mu.Unlock()
	_, err = w.Submit(context.Background())
	require.NoError(t, err)
	require.Nil(t, w.LastError())
	require.Len(t, f.calls, 2)
}

func TestWizard_SubmitWhileInFlight(t *testing.T) {
	t.Parallel()
	f := &fakeBooker{block: make(chan struct{}), entered: make(chan struct{})}
	w := newWizard(t, f)
	toReview(t, w)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background())
		done <- err
	}()
	<-f.entered

	require.True(t, w.Submitting())
	require.False(t, w.CanAdvance())
	_, err := w.Submit(context.Background())
	require.ErrorIs(t, err, errs.ErrBusy)
	require.ErrorIs(t, w.Back(), errs.ErrBusy)

	close(f.block)
	require.NoError(t, <-done)
	require.Len(t, f.calls, 1)
	require.Equal(t, Done, w.Step())
}

func TestWizard_DraftLockedDuringSubmit(t *testing.T) {
	t.Parallel()
	f := &fakeBooker{block: make(chan struct{}), entered: make(chan struct{})}
	w := newWizard(t, f)
	toReview(t, w)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(ctx)
		done <- err
	}()
	<-f.entered

	require.ErrorIs(t, w.SelectDate(ctx, "2024-06-11"), errs.ErrBusy)
	require.ErrorIs(t, w.SetContact("Other", "o@x.com", ""), errs.ErrBusy)
	require.ErrorIs(t, w.SelectSlot(tenAM), errs.ErrBusy)
	require.ErrorIs(t, w.SetMessage("hi"), errs.ErrBusy)

	close(f.block)
	require.NoError(t, <-done)
	require.Equal(t, Done, w.Step())
	_, err := w.Submit(ctx)
	require.ErrorIs(t, err, ErrFinished)
	require.Len(t, f.calls, 1)
	require.Equal(t, "2024-06-10", f.calls[0].Date)
	require.Equal(t, []string{"2024-06-10"}, f.fetch, "a rejected date never fetches")
}

func TestWizard_NavigationRules(t *testing.T) {
	t.Parallel()
	w := newWizard(t, &fakeBooker{})

	require.NoError(t, w.Back(), "back on the first step is a no-op")
	require.Equal(t, ContactInfo, w.Step())
	cur, total := w.Progress()
	require.Equal(t, 1, cur)
	require.Equal(t, 6, total)

	_, err := w.Submit(context.Background())
	require.ErrorIs(t, err, errs.ErrBadRequest)

	toReview(t, w)
	require.ErrorIs(t, w.Next(), errs.ErrBadRequest)
	cur, _ = w.Progress()
	require.Equal(t, 5, cur)

	_, err = w.Submit(context.Background())
	require.NoError(t, err)
	require.ErrorIs(t, w.Next(), ErrFinished)
	require.ErrorIs(t, w.Back(), ErrFinished)
	require.ErrorIs(t, w.SetContact("x", "y", ""), ErrFinished)

	w.Reset()
	require.Equal(t, ContactInfo, w.Step())
	require.Equal(t, Draft{}, w.Draft())
	_, ok := w.Booking()
	require.False(t, ok)
	require.Equal(t, "review", Review.String())
}

func TestWizard_CacheStaleStillCompletes(t *testing.T) {
	t.Parallel()
	f := &fakeBooker{createErr: errs.ErrCacheInvalidation}
	w := newWizard(t, f)
	toReview(t, w)

	_, err := w.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, Done, w.Step())
}
