package approval

import (
	"github.com/2beens/planbuilder/internal/plan"
)

// DirtyDates is the view of unsaved dates the unified status needs.
type DirtyDates interface {
	Empty() bool
	AnyIn(r plan.Range) bool
}

type GlobalStatus struct {
	CanApprove        bool   `json:"can_approve"`
	Status            Status `json:"status"`
	HasUnsavedChanges bool   `json:"has_unsaved_changes"`
	Message           string `json:"message"`
}

type WeekStatus struct {
	WeekNumber int       `json:"week_number"`
	Status     Status    `json:"status"`
	StartDate  plan.Date `json:"start_date"`
	EndDate    plan.Date `json:"end_date"`
	CanApprove bool      `json:"can_approve"`
}

type Unified struct {
	Global GlobalStatus `json:"global"`
	Weeks  []WeekStatus `json:"weeks"`
}

// Unify combines a report with the unsaved dates of the session.
// isDraftPlan is set when the window content is backed by saved preview rows.
func Unify(report Report, dirty DirtyDates, isDraftPlan bool) Unified {
	hasUnsaved := !dirty.Empty()
	u := Unified{
		Global: GlobalStatus{
			Status:            report.Status,
			HasUnsavedChanges: hasUnsaved,
			CanApprove:        report.Status.Approvable() && isDraftPlan && !hasUnsaved,
		},
		Weeks: make([]WeekStatus, 0, len(report.Weeks)),
	}
	u.Global.Message = message(report.Status, hasUnsaved, isDraftPlan)

	for _, w := range report.Weeks {
		status := w.Status.Downgrade()
		u.Weeks = append(u.Weeks, WeekStatus{
			WeekNumber: w.WeekNumber,
			Status:     status,
			StartDate:  w.Range.Start,
			EndDate:    w.Range.End(),
			CanApprove: status == StatusDraft && !dirty.AnyIn(w.Range) && w.HasUnapproved,
		})
	}

	return u
}

// Week returns the status of week n (1 based), if the window has weeks.
func (u Unified) Week(n int) (WeekStatus, bool) {
	for _, w := range u.Weeks {
		if w.WeekNumber == n {
			return w, true
		}
	}
	return WeekStatus{}, false
}

func message(status Status, hasUnsaved, isDraftPlan bool) string {
	if hasUnsaved {
		return "You have unsaved changes. Save the plan before approving."
	}

	switch status {
	case StatusNoPlan:
		return "No plan saved for this period yet."
	case StatusDraft:
		if !isDraftPlan {
			return "Save the plan to create a draft."
		}
		return "Draft saved and ready for approval."
	case StatusPartial:
		return "Part of this period is approved. Approve the remaining draft days."
	case StatusApproved:
		return "Plan approved."
	case StatusPending:
		return "Checking approval status..."
	default:
		return ""
	}
}
