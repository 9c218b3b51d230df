package plan

import (
	"fmt"
	"reflect"
	"strings"
)

const RestDayFocus = "Rest Day"

// Day is one calendar day of a client plan.
type Day struct {
	Date      Date       `json:"date"`
	Focus     string     `json:"focus"`
	Exercises []Exercise `json:"exercises"`
}

// Details is the payload persisted in details_json.
type Details struct {
	Focus     string     `json:"focus"`
	Exercises []Exercise `json:"exercises"`
}

func RestDay(d Date) Day {
	return Day{
		Date:      d,
		Focus:     RestDayFocus,
		Exercises: []Exercise{},
	}
}

// RestDays builds placeholder days for every date of r.
func RestDays(r Range) []Day {
	days := make([]Day, 0, r.Days)
	for _, d := range r.Dates() {
		days = append(days, RestDay(d))
	}
	return days
}

func (d Day) IsRest() bool {
	return len(d.Exercises) == 0 && (d.Focus == "" || strings.EqualFold(d.Focus, RestDayFocus))
}

func (d Day) Details() Details {
	exercises := make([]Exercise, len(d.Exercises))
	copy(exercises, d.Exercises)
	focus := d.Focus
	if focus == "" && len(exercises) == 0 {
		focus = RestDayFocus
	}
	return Details{Focus: focus, Exercises: exercises}
}

func (d Day) Clone() Day {
	c := d
	c.Exercises = make([]Exercise, len(d.Exercises))
	copy(c.Exercises, d.Exercises)
	return c
}

// Summary is the short text shown in schedule lists.
func (d Day) Summary() string {
	if d.IsRest() {
		return RestDayFocus
	}
	focus := d.Focus
	if focus == "" {
		focus = "Workout"
	}
	if len(d.Exercises) == 1 {
		return fmt.Sprintf("%s: 1 exercise", focus)
	}
	return fmt.Sprintf("%s: %d exercises", focus, len(d.Exercises))
}

func (d Day) Validate() error {
	if _, err := ParseDate(string(d.Date)); err != nil {
		return err
	}
	for i, e := range d.Exercises {
		if err := e.Validate(); err != nil {
			return NewValidationError(fmt.Sprintf("%s exercise %d", d.Date, i+1), "exercise name empty")
		}
	}
	return nil
}

func CloneDays(days []Day) []Day {
	cloned := make([]Day, len(days))
	for i := range days {
		cloned[i] = days[i].Clone()
	}
	return cloned
}

// DetailsEqual compares two payloads, treating nil and empty exercise lists alike.
func DetailsEqual(a, b Details) bool {
	if a.Focus != b.Focus || len(a.Exercises) != len(b.Exercises) {
		return false
	}
	if len(a.Exercises) == 0 {
		return true
	}
	return reflect.DeepEqual(a.Exercises, b.Exercises)
}
