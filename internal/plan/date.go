package plan

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

const (
	DaysPerWeek         = 7
	WeeksPerMonthlyView = 4
)

// Date is a calendar date in ISO yyyy-MM-dd form. It is used as is for
// row keys, so two dates are the same day only if the strings match.
type Date string

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", NewValidationError("date", fmt.Sprintf("invalid date [%s], expected yyyy-MM-dd", s))
	}
	return DateOf(t), nil
}

// MustDate is meant for tests and constants.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func (d Date) String() string {
	return string(d)
}

func (d Date) Time() time.Time {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) Before(other Date) bool {
	return d < other
}

// DaysUntil returns the number of days from d to other (negative if other is earlier).
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// SnapToWeekday moves d forward to the next occurrence of wd, d itself included.
func SnapToWeekday(d Date, wd time.Weekday) Date {
	shift := (int(wd) - int(d.Weekday()) + DaysPerWeek) % DaysPerWeek
	return d.AddDays(shift)
}

// ParseWeekday accepts full and three letter english weekday names.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			return wd, nil
		}
	}
	return time.Monday, NewValidationError("weekday", fmt.Sprintf("unknown weekday [%s]", s))
}

// Range is a run of consecutive calendar days starting at Start.
type Range struct {
	Start Date `json:"start"`
	Days  int  `json:"days"`
}

func NewRange(start Date, days int) Range {
	return Range{Start: start, Days: days}
}

func (r Range) End() Date {
	if r.Days <= 0 {
		return r.Start
	}
	return r.Start.AddDays(r.Days - 1)
}

func (r Range) Contains(d Date) bool {
	return r.Days > 0 && !d.Before(r.Start) && !r.End().Before(d)
}

func (r Range) Dates() []Date {
	dates := make([]Date, 0, r.Days)
	for i := 0; i < r.Days; i++ {
		dates = append(dates, r.Start.AddDays(i))
	}
	return dates
}

// Weeks splits the range into consecutive 7 day sub ranges. A trailing
// partial week is kept as a shorter range.
func (r Range) Weeks() []Range {
	var weeks []Range
	for offset := 0; offset < r.Days; offset += DaysPerWeek {
		days := DaysPerWeek
		if r.Days-offset < days {
			days = r.Days - offset
		}
		weeks = append(weeks, Range{Start: r.Start.AddDays(offset), Days: days})
	}
	return weeks
}

// WeekOf returns the 1-based week number of d inside r, or 0 if d is outside r.
func (r Range) WeekOf(d Date) int {
	if !r.Contains(d) {
		return 0
	}
	return r.Start.DaysUntil(d)/DaysPerWeek + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start, r.End())
}

type ViewMode string

const (
	ViewWeekly  ViewMode = "weekly"
	ViewMonthly ViewMode = "monthly"
)

func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewWeekly, "":
		return ViewWeekly, nil
	case ViewMonthly:
		return ViewMonthly, nil
	default:
		return "", NewValidationError("view", fmt.Sprintf("unknown view mode [%s]", s))
	}
}

func (vm ViewMode) Days() int {
	if vm == ViewMonthly {
		return DaysPerWeek * WeeksPerMonthlyView
	}
	return DaysPerWeek
}

func (vm ViewMode) String() string {
	return string(vm)
}
