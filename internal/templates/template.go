// Package templates converts plan windows to and from the template JSON
// interchange format and stores templates in workout_plan_templates.
package templates

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/2beens/planbuilder/internal/plan"
)

const (
	Duration7Day  = "7day"
	Duration30Day = "30day"
)

var weekdayKeys = map[time.Weekday]string{
	time.Sunday:    "sun",
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
}

type DayTemplate struct {
	Focus     string          `json:"focus"`
	Exercises []plan.Exercise `json:"exercises"`
}

type WeekTemplate struct {
	WeekNumber    int                    `json:"week_number"`
	DaysByWeekday map[string]DayTemplate `json:"days_by_weekday"`
}

type Template struct {
	Tags          []string               `json:"tags"`
	Duration      string                 `json:"duration"`
	DaysByWeekday map[string]DayTemplate `json:"days_by_weekday,omitempty"`
	Weeks         []WeekTemplate         `json:"weeks,omitempty"`
}

func Parse(data []byte) (*Template, error) {
	tpl := &Template{}
	if err := json.Unmarshal(data, tpl); err != nil {
		return nil, plan.NewValidationError("template", fmt.Sprintf("invalid json: %s", err))
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (t *Template) Validate() error {
	if t.Duration != Duration7Day && t.Duration != Duration30Day {
		return plan.NewValidationError("duration", fmt.Sprintf("unknown duration [%s]", t.Duration))
	}
	if len(t.DaysByWeekday) == 0 && len(t.Weeks) == 0 {
		return plan.NewValidationError("template", "neither days_by_weekday nor weeks set")
	}
	if err := validateDays("days_by_weekday", t.DaysByWeekday); err != nil {
		return err
	}

	seen := make(map[int]bool, len(t.Weeks))
	for _, w := range t.Weeks {
		if w.WeekNumber < 1 || w.WeekNumber > plan.WeeksPerMonthlyView {
			return plan.NewValidationError("weeks", fmt.Sprintf("week_number %d out of range", w.WeekNumber))
		}
		if seen[w.WeekNumber] {
			return plan.NewValidationError("weeks", fmt.Sprintf("week_number %d repeated", w.WeekNumber))
		}
		seen[w.WeekNumber] = true
		if err := validateDays(fmt.Sprintf("weeks[%d]", w.WeekNumber), w.DaysByWeekday); err != nil {
			return err
		}
	}
	return nil
}

func validateDays(field string, days map[string]DayTemplate) error {
	for key, day := range days {
		if !validWeekdayKey(key) {
			return plan.NewValidationError(field, fmt.Sprintf("unknown weekday key [%s]", key))
		}
		for i, e := range day.Exercises {
			if err := e.Validate(); err != nil {
				return plan.NewValidationError(fmt.Sprintf("%s.%s", field, key), fmt.Sprintf("exercise %d has no name", i+1))
			}
		}
	}
	return nil
}

func validWeekdayKey(key string) bool {
	for _, k := range weekdayKeys {
		if k == key {
			return true
		}
	}
	return false
}

// FromDays exports a window. Seven days or fewer become a 7day template keyed
// by weekday; longer windows become a 30day template with one entry per week.
func FromDays(days []plan.Day, tags []string) (*Template, error) {
	if len(days) == 0 {
		return nil, plan.NewValidationError("days", "nothing to export")
	}

	days = plan.CloneDays(days)
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})

	if tags == nil {
		tags = []string{}
	}
	tpl := &Template{Tags: tags}

	if len(days) <= plan.DaysPerWeek {
		tpl.Duration = Duration7Day
		tpl.DaysByWeekday = byWeekday(days)
		return tpl, nil
	}

	tpl.Duration = Duration30Day
	start := days[0].Date
	weeks := make(map[int][]plan.Day)
	for _, day := range days {
		n := start.DaysUntil(day.Date)/plan.DaysPerWeek + 1
		if n > plan.WeeksPerMonthlyView {
			continue
		}
		weeks[n] = append(weeks[n], day)
	}
	for n := 1; n <= plan.WeeksPerMonthlyView; n++ {
		if len(weeks[n]) == 0 {
			continue
		}
		tpl.Weeks = append(tpl.Weeks, WeekTemplate{
			WeekNumber:    n,
			DaysByWeekday: byWeekday(weeks[n]),
		})
	}

	return tpl, nil
}

func byWeekday(days []plan.Day) map[string]DayTemplate {
	m := make(map[string]DayTemplate, len(days))
	for _, day := range days {
		details := day.Details()
		m[weekdayKeys[day.Date.Weekday()]] = DayTemplate{
			Focus:     details.Focus,
			Exercises: details.Exercises,
		}
	}
	return m
}

// ToDays lays the template over the window starting at start. Week entries
// apply to the matching week of the window, days_by_weekday to every other
// day. Days the template does not cover are rest days.
func ToDays(t *Template, start plan.Date, mode plan.ViewMode) []plan.Day {
	window := plan.NewRange(start, mode.Days())
	weeks := make(map[int]map[string]DayTemplate, len(t.Weeks))
	for _, w := range t.Weeks {
		weeks[w.WeekNumber] = w.DaysByWeekday
	}

	days := make([]plan.Day, 0, window.Days)
	for _, d := range window.Dates() {
		key := weekdayKeys[d.Weekday()]

		entry, ok := weeks[window.WeekOf(d)][key]
		if !ok {
			entry, ok = t.DaysByWeekday[key]
		}
		if !ok {
			days = append(days, plan.RestDay(d))
			continue
		}

		exercises := make([]plan.Exercise, len(entry.Exercises))
		copy(exercises, entry.Exercises)
		plan.SortExercises(exercises)
		focus := entry.Focus
		if focus == "" && len(exercises) == 0 {
			focus = plan.RestDayFocus
		}
		days = append(days, plan.Day{Date: d, Focus: focus, Exercises: exercises})
	}
	return days
}
