package approval

import (
	"testing"

	"github.com/2beens/planbuilder/internal/plan"

	"github.com/stretchr/testify/assert"
)

func previews(flags ...bool) []plan.PreviewRow {
	rows := make([]plan.PreviewRow, 0, len(flags))
	for i, approved := range flags {
		rows = append(rows, plan.PreviewRow{
			ForDate:    plan.MustDate("2024-06-03").AddDays(i),
			IsApproved: approved,
		})
	}
	return rows
}

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name      string
		previews  []plan.PreviewRow
		canonical int
		expected  Status
	}{
		{name: "nothing", expected: StatusNoPlan},
		{name: "only preview", previews: previews(false, false), expected: StatusDraft},
		{name: "only preview flagged", previews: previews(true, true), expected: StatusDraft},
		{name: "only canonical", canonical: 3, expected: StatusApproved},
		{name: "all approved", previews: previews(true, true, true), canonical: 3, expected: StatusApproved},
		{name: "some approved", previews: previews(true, false, true), canonical: 2, expected: StatusPartial},
		{name: "none approved", previews: previews(false, false), canonical: 2, expected: StatusDraft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ComputeStatus(tt.previews, tt.canonical))
		})
	}
}

func TestStatus_Downgrade(t *testing.T) {
	assert.Equal(t, StatusDraft, StatusPartial.Downgrade())
	assert.Equal(t, StatusApproved, StatusApproved.Downgrade())
	assert.Equal(t, StatusNoPlan, StatusNoPlan.Downgrade())
	assert.True(t, StatusPartial.Approvable())
	assert.True(t, StatusDraft.Approvable())
	assert.False(t, StatusApproved.Approvable())
	assert.False(t, StatusPending.Approvable())
}
