package fsm

import "context"

type ApproveOutcome int

const (
	// Approved: every row of the scope is approved.
	Approved ApproveOutcome = iota
	// ApprovedPartially: the scope is approved but other draft rows remain.
	ApprovedPartially
	// ApproveCancelled: approval needs a confirmation and nothing was written.
	ApproveCancelled
)

type RefreshOutcome int

const (
	RefreshApprovable RefreshOutcome = iota
	RefreshApproved
	RefreshBlocked
)

// RunSave brackets fn with SAVE_START and SAVE_SUCCESS or SAVE_FAILURE.
// Completion events rejected because of a newer event (DIRTY_CHANGES, RESET)
// are ignored; fn's error is still returned.
func (m *Machine) RunSave(ctx context.Context, fn func(ctx context.Context) error) error {
	if !m.Fire(EventSaveStart) {
		return rejected(EventSaveStart, m.State())
	}

	if err := fn(ctx); err != nil {
		m.Fail(EventSaveFailure, err)
		return err
	}

	m.Fire(EventSaveSuccess)
	return nil
}

func (m *Machine) RunApprove(ctx context.Context, fn func(ctx context.Context) (ApproveOutcome, error)) (ApproveOutcome, error) {
	if !m.Fire(EventApproveStart) {
		return ApproveCancelled, rejected(EventApproveStart, m.State())
	}

	outcome, err := fn(ctx)
	if err != nil {
		m.Fail(EventApproveFailure, err)
		return outcome, err
	}

	switch outcome {
	case Approved:
		m.Fire(EventApproveSuccess)
	case ApprovedPartially:
		m.Fire(EventApprovePartial)
	default:
		m.Fire(EventApproveCancelled)
	}
	return outcome, nil
}

// RunRefresh brackets a status check. REFRESH_START is only accepted in
// settled states, so a refresh never interrupts a save or an approval.
func (m *Machine) RunRefresh(ctx context.Context, fn func(ctx context.Context) (RefreshOutcome, error)) error {
	if !m.Fire(EventRefreshStart) {
		return rejected(EventRefreshStart, m.State())
	}

	outcome, err := fn(ctx)
	if err != nil {
		m.Fail(EventRefreshFailure, err)
		return err
	}

	switch outcome {
	case RefreshApproved:
		m.Fire(EventRefreshApproved)
	case RefreshBlocked:
		m.Fire(EventRefreshBlocked)
	default:
		m.Fire(EventRefreshApprovable)
	}
	return nil
}
