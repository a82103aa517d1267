package models

import (
	"fmt"
	"time"
)

// Date is a calendar day in UTC, formatted YYYY-MM-DD. ISO formatting means
// lexical order equals chronological order, so Date works directly as a map
// key and in range comparisons.
type Date string

const dateLayout = "2006-01-02"

// ParseDate validates s as a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Date(s), nil
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	return Date(t.UTC().Format(dateLayout))
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	t, _ := time.Parse(dateLayout, string(d))
	return t
}

// AddDays returns the date n calendar days later (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool { return d < o }
func (d Date) After(o Date) bool  { return d > o }

func (d Date) String() string { return string(d) }

// DateRange enumerates every calendar day from start to end inclusive.
// Returns nil when start is after end.
func DateRange(start, end Date) []Date {
	if start > end {
		return nil
	}
	var out []Date
	for d := start; d <= end; d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}
