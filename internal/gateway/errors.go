package gateway

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/2beens/planbuilder/internal/plan"

	"go.uber.org/multierr"
)

var ErrNoDraftPlan = errors.New("no draft plan found")

// FetchError reports a failed read from the row store.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ItemError is the failure of a single row write.
type ItemError struct {
	Date plan.Date `json:"date"`
	Op   string    `json:"op"`
	Err  error     `json:"-"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Date, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// WriteError reports failed writes, one item per row. Writes that succeeded
// before or after a failed one are kept.
type WriteError struct {
	Op    string
	Items []ItemError
	errs  error
}

func (e *WriteError) add(date plan.Date, op string, err error) {
	item := ItemError{Date: date, Op: op, Err: err}
	e.Items = append(e.Items, item)
	e.errs = multierr.Append(e.errs, item)
}

func (e *WriteError) empty() bool {
	return len(e.Items) == 0
}

func (e *WriteError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, item.Error())
	}
	return fmt.Sprintf("%s: %d write(s) failed: %s", e.Op, len(e.Items), strings.Join(parts, "; "))
}

// Unwrap exposes every item error, so errors.Is matches any of them.
func (e *WriteError) Unwrap() []error {
	return multierr.Errors(e.errs)
}

// FailedDates returns the sorted, distinct dates of the failed items.
func (e *WriteError) FailedDates() []plan.Date {
	seen := make(map[plan.Date]bool, len(e.Items))
	dates := make([]plan.Date, 0, len(e.Items))
	for _, item := range e.Items {
		if !seen[item.Date] {
			seen[item.Date] = true
			dates = append(dates, item.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i] < dates[j]
	})
	return dates
}
