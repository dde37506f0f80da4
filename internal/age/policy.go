// Package age evaluates self-reported birth dates against the adult threshold.
package age

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DateLayout is the only accepted birth date format (DD-MM-YYYY).
	DateLayout = "02-01-2006"

	// AdultAge is the minimum age in years a member must have.
	AdultAge = 18

	// DefaultToleranceMonths lets members a couple of months short of AdultAge pass.
	DefaultToleranceMonths = 2
)

// ErrInvalidFormat indicates that a birth date is not a real DD-MM-YYYY calendar date.
var ErrInvalidFormat = errors.New("invalid date format, expected DD-MM-YYYY")

// Result holds the outcome of evaluating a birth date.
type Result struct {
	Birthday        time.Time
	Age             int
	AgeInMonths     int
	WithinTolerance bool
}

// Underage reports whether the member must be rejected.
// A member is rejected only when the day-granular age is below AdultAge
// and the month-granular age is outside the tolerance.
func (r Result) Underage() bool {
	return r.Age < AdultAge && !r.WithinTolerance
}

// ParseDate parses a birth date in strict DD-MM-YYYY form.
func ParseDate(text string) (time.Time, error) {
	if len(text) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFormat, text)
	}

	date, err := time.Parse(DateLayout, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	return date, nil
}

// FormatDate renders a date in the canonical DD-MM-YYYY form.
func FormatDate(date time.Time) string {
	return date.Format(DateLayout)
}

// ValidateDate checks the format of a birth date without evaluating it.
func ValidateDate(text string) error {
	_, err := ParseDate(text)
	return err
}

// Evaluate computes the age of a birth date relative to now.
func Evaluate(text string, now time.Time, toleranceMonths int) (Result, error) {
	birthday, err := ParseDate(text)
	if err != nil {
		return Result{}, err
	}

	years, months := Between(birthday, now)

	return Result{
		Birthday:        birthday,
		Age:             years,
		AgeInMonths:     months,
		WithinTolerance: months >= AdultAge*12-toleranceMonths,
	}, nil
}

// Between returns the whole years and whole months elapsed from birthday to now,
// using the calendar fields of both values.
func Between(birthday, now time.Time) (int, int) {
	by, bm, bd := birthday.Date()
	ny, nm, nd := now.Date()

	years := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		years--
	}

	months := (ny-by)*12 + int(nm) - int(bm)
	if nd < bd {
		months--
	}

	return years, months
}
