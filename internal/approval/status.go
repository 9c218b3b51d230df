// Package approval derives the approval status of a plan window from its
// preview and schedule rows.
package approval

import (
	"github.com/2beens/planbuilder/internal/plan"
)

type Status string

const (
	StatusNoPlan   Status = "no_plan"
	StatusDraft    Status = "draft"
	StatusPartial  Status = "partial_approved"
	StatusApproved Status = "approved"
	// StatusPending is reported while the status could not be determined.
	StatusPending Status = "pending"
)

// ComputeStatus resolves the status of one range from its preview rows and
// the number of schedule rows in the same range.
func ComputeStatus(previews []plan.PreviewRow, canonicalCount int) Status {
	switch {
	case len(previews) == 0 && canonicalCount == 0:
		return StatusNoPlan
	case len(previews) == 0:
		// schedule rows without a preview: approved outside the preview flow
		return StatusApproved
	case canonicalCount == 0:
		return StatusDraft
	}

	approved := 0
	for _, p := range previews {
		if p.IsApproved {
			approved++
		}
	}

	switch approved {
	case len(previews):
		return StatusApproved
	case 0:
		return StatusDraft
	default:
		return StatusPartial
	}
}

// Downgrade maps partial_approved to draft. Only approved, draft and no_plan
// drive week level decisions.
func (s Status) Downgrade() Status {
	if s == StatusPartial {
		return StatusDraft
	}
	return s
}

func (s Status) Approvable() bool {
	return s == StatusDraft || s == StatusPartial
}

func hasUnapproved(previews []plan.PreviewRow) bool {
	for _, p := range previews {
		if !p.IsApproved {
			return true
		}
	}
	return false
}
