package planner

import (
	"errors"

	"github.com/2beens/planbuilder/internal/approval"
	"github.com/2beens/planbuilder/internal/plan"
)

var ErrStatusMismatch = errors.New("confirmed status contradicts local status")

func pendingReport(window plan.Range) approval.Report {
	return approval.Report{
		Range:  window,
		Status: approval.StatusPending,
	}
}

func cloneReport(r approval.Report) approval.Report {
	c := r
	if r.Weeks != nil {
		c.Weeks = make([]approval.WeekReport, len(r.Weeks))
		copy(c.Weeks, r.Weeks)
	}
	return c
}

// markApproved flips every week starting inside r to approved.
func markApproved(report *approval.Report, r plan.Range) {
	*report = cloneReport(*report)
	report.Degraded = false
	if len(report.Weeks) == 0 {
		if r.Contains(report.Range.Start) {
			report.Status = approval.StatusApproved
			report.HasUnapproved = false
		}
		return
	}

	for i := range report.Weeks {
		if r.Contains(report.Weeks[i].Range.Start) {
			report.Weeks[i].Status = approval.StatusApproved
			report.Weeks[i].HasUnapproved = false
		}
	}
	rollup(report)
}

// markDrafted flips every week holding a written date to draft, since a
// save revokes the approval of the weeks it writes to.
func markDrafted(report *approval.Report, written []plan.Date) {
	*report = cloneReport(*report)
	report.Degraded = false
	if len(report.Weeks) == 0 {
		for _, d := range written {
			if report.Range.Contains(d) {
				report.Status = approval.StatusDraft
				report.HasUnapproved = true
				break
			}
		}
		return
	}

	for i := range report.Weeks {
		for _, d := range written {
			if report.Weeks[i].Range.Contains(d) {
				report.Weeks[i].Status = approval.StatusDraft
				report.Weeks[i].HasUnapproved = true
				break
			}
		}
	}
	rollup(report)
}

// rollup derives the window status from its weeks.
func rollup(report *approval.Report) {
	var approved, empty, pending int
	report.HasUnapproved = false
	for _, w := range report.Weeks {
		switch w.Status {
		case approval.StatusApproved:
			approved++
		case approval.StatusNoPlan:
			empty++
		case approval.StatusPending:
			pending++
		case approval.StatusPartial:
			// counts as both approved and draft rows
			approved++
			report.HasUnapproved = true
		}
		if w.HasUnapproved {
			report.HasUnapproved = true
		}
	}

	switch {
	case pending > 0:
		report.Status = approval.StatusPending
	case approved == len(report.Weeks) && !report.HasUnapproved:
		report.Status = approval.StatusApproved
	case empty == len(report.Weeks):
		report.Status = approval.StatusNoPlan
	case approved > 0:
		report.Status = approval.StatusPartial
	default:
		report.Status = approval.StatusDraft
	}
}

// contradicts reports a confirmed status the optimistic update cannot
// explain: an approval that did not stick, or saved rows that are missing.
func contradicts(optimistic, confirmed approval.Status) bool {
	switch {
	case optimistic == confirmed:
		return false
	case optimistic == approval.StatusApproved:
		return true
	case confirmed == approval.StatusNoPlan:
		return optimistic != approval.StatusPending
	default:
		return false
	}
}
