package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/and161185/bookly/internal/errs"
	"github.com/and161185/bookly/internal/model"
	"github.com/and161185/bookly/internal/wizard"
)

func cmdAvailability(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("availability")
	date := fs.String("date", "", "YYYY-MM-DD")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *date == "" {
		return usageErr("availability: need -date")
	}
	slots, err := c.app.Calendar.Availability(ctx, *date)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Fprintf(c.stdout, "no free slots on %s\n", *date)
		return nil
	}
	for _, s := range slots {
		fmt.Fprintf(c.stdout, "%s-%s\n", s.StartTime, s.EndTime)
	}
	return nil
}

// cmdBook runs the booking wizard. With -date and -start it runs unattended,
// otherwise it asks for each step on stdin.
func cmdBook(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("book")
	name := fs.String("name", "", "your name")
	email := fs.String("email", "", "your email")
	phone := fs.String("phone", "", "phone (optional)")
	date := fs.String("date", "", "YYYY-MM-DD")
	start := fs.String("start", "", "HH:MM")
	end := fs.String("end", "", "HH:MM")
	msg := fs.String("message", "", "message (optional)")
	if err := parse(fs, args); err != nil {
		return err
	}
	w := c.app.NewWizard(wizard.WithClock(c.now))

	if *date == "" || *start == "" {
		return c.bookInteractive(ctx, w)
	}
	if err := w.SetContact(*name, *email, *phone); err != nil {
		return err
	}
	if err := w.Next(); err != nil {
		return err
	}
	if err := w.SelectDate(ctx, *date); err != nil {
		return err
	}
	if err := w.Next(); err != nil {
		return err
	}
	slot, ok := findSlot(w.Slots(), *start, *end)
	if !ok {
		return fmt.Errorf("%s %s is not available: %w", *date, *start, errs.ErrConflict)
	}
	if err := w.SelectSlot(slot); err != nil {
		return err
	}
	if err := w.Next(); err != nil {
		return err
	}
	if err := w.SetMessage(*msg); err != nil {
		return err
	}
	if err := w.Next(); err != nil {
		return err
	}
	b, err := w.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "booking %s requested for %s %s-%s (pending approval)\n", b.ID, b.Date, b.StartTime, b.EndTime)
	return nil
}

// findSlot matches by start time, and by end time too when given.
func findSlot(slots []model.AvailabilitySlot, start, end string) (model.AvailabilitySlot, bool) {
	for _, s := range slots {
		if s.StartTime == start && (end == "" || s.EndTime == end) {
			return s, true
		}
	}
	return model.AvailabilitySlot{}, false
}

const backHint = "b"

// bookInteractive walks the wizard one prompt per step. Validation errors re-ask the
// same step; "b" goes back.
func (c *cli) bookInteractive(ctx context.Context, w *wizard.Wizard) error {
	for {
		cur, total := w.Progress()
		step := w.Step()
		if step == wizard.Done {
			b, _ := w.Booking()
			fmt.Fprintf(c.stdout, "booking %s requested for %s %s-%s (pending approval)\n", b.ID, b.Date, b.StartTime, b.EndTime)
			return nil
		}
		fmt.Fprintf(c.stdout, "\n[%d/%d] %s\n", cur, total, step)

		err := c.bookStep(ctx, w, step)
		switch {
		case errors.Is(err, errBack):
			_ = w.Back()
		case errors.Is(err, errCancelled):
			fmt.Fprintln(c.stdout, "cancelled")
			return nil
		case errors.Is(err, errInputClosed):
			return err
		case err != nil:
			var ve *errs.ValidationError
			if errors.As(err, &ve) {
				printFields(c.stdout, ve.Fields)
				continue
			}
			if step == wizard.Review {
				// stay on review; the visitor may retry or go back
				fmt.Fprintf(c.stdout, "submit failed: %v\n", err)
				continue
			}
			return err
		}
	}
}

var (
	errBack      = errors.New("back")
	errCancelled = errors.New("cancelled")
)

func (c *cli) bookStep(ctx context.Context, w *wizard.Wizard, step wizard.Step) error {
	d := w.Draft()
	switch step {
	case wizard.ContactInfo:
		name, err := c.promptDefault("Name", d.Name)
		if err != nil {
			return err
		}
		email, err := c.promptDefault("Email", d.Email)
		if err != nil {
			return err
		}
		phone, err := c.promptDefault("Phone (optional)", d.Phone)
		if err != nil {
			return err
		}
		if err := w.SetContact(name, email, phone); err != nil {
			return err
		}
		return w.Next()

	case wizard.DateSelect:
		date, err := c.prompt("Date (YYYY-MM-DD, b=back): ")
		if err != nil {
			return err
		}
		if date == backHint {
			return errBack
		}
		if err := w.SelectDate(ctx, date); err != nil {
			return err
		}
		if len(w.Slots()) == 0 {
			fmt.Fprintf(c.stdout, "no free slots on %s, pick another date\n", date)
			return nil
		}
		return w.Next()

	case wizard.TimeSelect:
		slots := w.Slots()
		for i, s := range slots {
			fmt.Fprintf(c.stdout, "  %d) %s-%s\n", i+1, s.StartTime, s.EndTime)
		}
		in, err := c.prompt(fmt.Sprintf("Slot [1-%d] (b=back): ", len(slots)))
		if err != nil {
			return err
		}
		if in == backHint {
			return errBack
		}
		n, err := strconv.Atoi(in)
		if err != nil || n < 1 || n > len(slots) {
			return errs.NewValidationError("timeSlot", "pick one of the listed numbers")
		}
		if err := w.SelectSlot(slots[n-1]); err != nil {
			return err
		}
		return w.Next()

	case wizard.Message:
		msg, err := c.prompt("Message (optional, b=back): ")
		if err != nil {
			return err
		}
		if msg == backHint {
			return errBack
		}
		if err := w.SetMessage(msg); err != nil {
			return err
		}
		return w.Next()

	case wizard.Review:
		fmt.Fprintf(c.stdout, "  name:    %s\n  email:   %s\n", d.Name, d.Email)
		if d.Phone != "" {
			fmt.Fprintf(c.stdout, "  phone:   %s\n", d.Phone)
		}
		fmt.Fprintf(c.stdout, "  when:    %s %s-%s\n", d.Date, d.Slot.StartTime, d.Slot.EndTime)
		if d.Message != "" {
			fmt.Fprintf(c.stdout, "  message: %s\n", d.Message)
		}
		answer, err := c.prompt("Submit? [y/n/b]: ")
		if err != nil {
			return err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			_, err := w.Submit(ctx)
			return err
		case backHint:
			return errBack
		default:
			w.Reset()
			return errCancelled
		}
	}
	return nil
}

func (c *cli) promptDefault(label, def string) (string, error) {
	if def != "" {
		label = fmt.Sprintf("%s [%s]", label, def)
	}
	v, err := c.prompt(label + ": ")
	if err != nil || v != "" {
		return v, err
	}
	return def, nil
}

func (c *cli) printBookings(title string, bs []model.Booking) {
	if title != "" {
		fmt.Fprintf(c.stdout, "%s (%d)\n", title, len(bs))
	}
	if len(bs) == 0 {
		return
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	for _, b := range bs {
		fmt.Fprintf(tw, "  %s\t%s\t%s-%s\t%s\t%s\t%s\n", b.ID, b.Date, b.StartTime, b.EndTime, b.Name, b.Email, b.Status)
	}
	_ = tw.Flush()
}

func cmdBookings(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("bookings")
	status := fs.String("status", "", "pending|approved|rejected")
	past := fs.Bool("past", false, "include past approved bookings")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	bs, err := c.app.Calendar.Bookings(ctx, model.BookingStatus(*status))
	if err != nil {
		return err
	}
	if *asJSON {
		c.printJSON(bs)
		return nil
	}
	if *status != "" {
		c.printBookings("", bs)
		if len(bs) == 0 {
			fmt.Fprintf(c.stdout, "no %s bookings\n", *status)
		}
		return nil
	}
	g := model.GroupBookings(bs, c.now())
	c.printBookings("Pending", g.Pending)
	c.printBookings("Upcoming", g.Upcoming)
	if *past {
		c.printBookings("Past", g.Past)
	}
	return nil
}

func cmdApprove(ctx context.Context, c *cli, args []string) error {
	return resolveBooking(ctx, c, "approve", args)
}

func cmdReject(ctx context.Context, c *cli, args []string) error {
	return resolveBooking(ctx, c, "reject", args)
}

func resolveBooking(ctx context.Context, c *cli, action string, args []string) error {
	fs := c.newFlags(action)
	id := fs.String("id", "", "booking id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return usageErr("%s: need -id", action)
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	resolve := c.app.Calendar.Approve
	if action == "reject" {
		resolve = c.app.Calendar.Reject
	}
	b, err := resolve(ctx, model.ID(*id))
	if err != nil && b.ID == "" {
		return err
	}
	fmt.Fprintf(c.stdout, "booking %s %s\n", b.ID, b.Status)
	return err
}

func cmdSlots(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("slots")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	slots, err := c.app.Calendar.TimeSlots(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		c.printJSON(slots)
		return nil
	}
	if len(slots) == 0 {
		fmt.Fprintln(c.stdout, "no time slots")
		return nil
	}
	for _, day := range model.GroupSlotsByDate(slots) {
		fmt.Fprintln(c.stdout, day.Date)
		for _, s := range day.Slots {
			mark := ""
			if s.IsBooked {
				mark = "  [booked]"
			}
			fmt.Fprintf(c.stdout, "  %s-%s  id=%s%s\n", s.StartTime, s.EndTime, s.ID, mark)
		}
	}
	return nil
}

func cmdSlotAdd(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("slot-add")
	date := fs.String("date", "", "YYYY-MM-DD")
	start := fs.String("start", "", "HH:MM")
	end := fs.String("end", "", "HH:MM")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	s, err := c.app.Calendar.CreateTimeSlot(ctx, model.CreateTimeSlotInput{Date: *date, StartTime: *start, EndTime: *end})
	if err != nil && s.ID == "" {
		return err
	}
	fmt.Fprintf(c.stdout, "created slot %s on %s %s-%s\n", s.ID, s.Date, s.StartTime, s.EndTime)
	return err
}

var errSlotBooked = errors.New("slot is booked and cannot be deleted")

// cmdSlotRm refuses booked slots before asking the backend.
func cmdSlotRm(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("slot-rm")
	id := fs.String("id", "", "slot id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return usageErr("slot-rm: need -id")
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	slots, err := c.app.Calendar.TimeSlots(ctx)
	if err != nil {
		return err
	}
	for _, s := range slots {
		if s.ID == model.ID(*id) && !s.Deletable() {
			return fmt.Errorf("%w: %w", errs.ErrConflict, errSlotBooked)
		}
	}
	if err := c.app.Calendar.DeleteTimeSlot(ctx, model.ID(*id)); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "deleted slot %s\n", *id)
	return nil
}
