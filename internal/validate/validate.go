// Package validate runs struct-tag validation and translates failures into errs.ValidationError.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/and161185/bookly/internal/errs"
)

var hhmmRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validator wraps a configured go-playground validator.
type Validator struct {
	v *validator.Validate
}

// New returns a validator with the project's custom tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	// registration only fails for an empty tag or nil func
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmRe.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates s; failures come back as *errs.ValidationError keyed by JSON field name.
func (v *Validator) Struct(s any) error {
	return translate(v.v.Struct(s))
}

// Partial validates only the named Go fields of s.
func (v *Validator) Partial(s any, fields ...string) error {
	return translate(v.v.StructPartial(s, fields...))
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &errs.ValidationError{}
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

// TimeRange checks that end is strictly after start. Both must be HH:MM; zero-padded
// clock times order correctly as strings.
func TimeRange(start, end string) error {
	if !IsHHMM(start) || !IsHHMM(end) {
		return nil
	}
	if end <= start {
		return errs.NewValidationError("endTime", "must be after startTime")
	}
	return nil
}

// IsHHMM reports whether s is a zero-padded 24h clock time.
func IsHHMM(s string) bool { return hhmmRe.MatchString(s) }

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "hhmm":
		return "must be a time in HH:MM format"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	}
	return "failed on " + fe.Tag()
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}
