package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the single calendar-date representation used everywhere.
const DateLayout = "2006-01-02"

// Date is a calendar date rendered as YYYY-MM-DD. Lexical order equals
// chronological order.
type Date string

// NewDate truncates t to its calendar date.
func NewDate(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

// ParseDate validates s as YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", eris.Wrapf(err, "model: parse date %q", s)
	}
	return NewDate(t), nil
}

// Time returns the date at midnight UTC.
func (d Date) Time() (time.Time, error) {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "model: invalid date %q", string(d))
	}
	return t, nil
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return string(d) < string(other)
}

func (d Date) String() string {
	return string(d)
}
