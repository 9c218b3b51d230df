package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStates = []State{
	StateDisabledSaveFirst,
	StateSaving,
	StateEnabledApprove,
	StateRefreshing,
	StateApproving,
	StateApproved,
	StateErrorStuck,
}

func machineIn(s State) *Machine {
	m := New()
	m.state = s
	return m
}

func TestMachine_TransitionTable(t *testing.T) {
	for event, tr := range transitions {
		for _, from := range allStates {
			m := machineIn(from)
			accepted := m.Fire(event)

			expected := tr.from == nil || contains(tr.from, from)
			assert.Equal(t, expected, accepted, "%s from %s", event, from)
			if accepted {
				assert.Equal(t, tr.to, m.State(), "%s from %s", event, from)
			} else {
				assert.Equal(t, from, m.State(), "rejected %s must not move %s", event, from)
			}
		}
	}
}

func TestMachine_SpecificTransitions(t *testing.T) {
	m := machineIn(StateErrorStuck)
	assert.False(t, m.Fire(EventDirtyChanges))
	assert.False(t, m.Fire(EventSaveStart))
	assert.Equal(t, StateErrorStuck, m.State())

	m = machineIn(StateSaving)
	assert.False(t, m.Fire(EventCleanChanges))
	assert.True(t, m.Fire(EventDirtyChanges))
	assert.Equal(t, StateDisabledSaveFirst, m.State())

	m = machineIn(StateRefreshing)
	assert.False(t, m.Fire(EventCleanChanges))
	assert.False(t, m.Fire(EventApproveStart))

	assert.False(t, New().Fire(Event("NOPE")))
}

func TestMachine_HappyPath(t *testing.T) {
	m := New()
	var seen []Event
	m.OnTransition(func(from, to State, event Event) {
		seen = append(seen, event)
	})

	assert.False(t, m.CanApprove())
	assert.True(t, m.CanSave())

	require.NoError(t, m.RunSave(context.Background(), func(ctx context.Context) error {
		assert.Equal(t, StateSaving, m.State())
		assert.True(t, m.Busy())
		return nil
	}))
	assert.Equal(t, StateEnabledApprove, m.State())

	require.NoError(t, m.RunRefresh(context.Background(), func(ctx context.Context) (RefreshOutcome, error) {
		return RefreshApprovable, nil
	}))
	assert.True(t, m.CanApprove())
	assert.Equal(t, "Approve", m.Label())

	outcome, err := m.RunApprove(context.Background(), func(ctx context.Context) (ApproveOutcome, error) {
		assert.Equal(t, StateApproving, m.State())
		return Approved, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Approved, outcome)
	assert.Equal(t, StateApproved, m.State())
	assert.Equal(t, "Approved", m.Label())

	assert.Equal(t, []Event{
		EventSaveStart, EventSaveSuccess,
		EventRefreshStart, EventRefreshApprovable,
		EventApproveStart, EventApproveSuccess,
	}, seen)
}

func TestMachine_ApprovePartialAndCancelled(t *testing.T) {
	m := machineIn(StateEnabledApprove)
	outcome, err := m.RunApprove(context.Background(), func(ctx context.Context) (ApproveOutcome, error) {
		return ApproveCancelled, nil
	})
	require.NoError(t, err)
	assert.Equal(t, ApproveCancelled, outcome)
	assert.Equal(t, StateEnabledApprove, m.State())

	_, err = m.RunApprove(context.Background(), func(ctx context.Context) (ApproveOutcome, error) {
		return ApprovedPartially, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateEnabledApprove, m.State())
}

func TestMachine_RejectedRunDoesNotCallFn(t *testing.T) {
	m := New()
	called := false
	_, err := m.RunApprove(context.Background(), func(ctx context.Context) (ApproveOutcome, error) {
		called = true
		return Approved, nil
	})
	require.ErrorIs(t, err, ErrTransitionRejected)
	assert.False(t, called)
	assert.Equal(t, StateDisabledSaveFirst, m.State())

	m = machineIn(StateSaving)
	err = m.RunRefresh(context.Background(), func(ctx context.Context) (RefreshOutcome, error) {
		called = true
		return RefreshApproved, nil
	})
	require.ErrorIs(t, err, ErrTransitionRejected)
	assert.False(t, called)
}

func TestMachine_FailureAndRecovery(t *testing.T) {
	m := New()
	failure := errors.New("write failed")

	err := m.RunSave(context.Background(), func(ctx context.Context) error {
		return failure
	})
	require.ErrorIs(t, err, failure)
	assert.True(t, m.Stuck())
	assert.False(t, m.CanSave())
	assert.Equal(t, "Retry", m.Label())
	assert.ErrorIs(t, m.LastError(), failure)
	assert.Equal(t, 0, m.RetryCount())

	require.True(t, m.Fire(EventRetry))
	assert.Equal(t, StateDisabledSaveFirst, m.State())
	assert.Equal(t, 1, m.RetryCount())

	// second failure in the same episode
	require.Error(t, m.RunSave(context.Background(), func(ctx context.Context) error {
		return failure
	}))
	require.True(t, m.Fire(EventRetry))
	assert.Equal(t, 2, m.RetryCount())

	require.NoError(t, m.RunSave(context.Background(), func(ctx context.Context) error {
		return nil
	}))
	assert.Equal(t, 0, m.RetryCount())
	assert.NoError(t, m.LastError())
}

func TestMachine_EditDuringSave(t *testing.T) {
	m := New()
	err := m.RunSave(context.Background(), func(ctx context.Context) error {
		// the user edits while the save is in flight
		assert.True(t, m.Fire(EventDirtyChanges))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateDisabledSaveFirst, m.State(), "late SAVE_SUCCESS must not hide new edits")
}

func TestMachine_ResetFromAnyState(t *testing.T) {
	for _, s := range allStates {
		m := machineIn(s)
		require.True(t, m.Fire(EventReset))
		assert.Equal(t, StateDisabledSaveFirst, m.State())
	}
}

func TestMachine_RefreshFailure(t *testing.T) {
	m := machineIn(StateApproved)
	failure := errors.New("status contradicted")
	err := m.RunRefresh(context.Background(), func(ctx context.Context) (RefreshOutcome, error) {
		return RefreshApproved, failure
	})
	require.ErrorIs(t, err, failure)
	assert.True(t, m.Stuck())

	m = machineIn(StateEnabledApprove)
	require.NoError(t, m.RunRefresh(context.Background(), func(ctx context.Context) (RefreshOutcome, error) {
		return RefreshBlocked, nil
	}))
	assert.Equal(t, StateDisabledSaveFirst, m.State())
}

func TestLabel(t *testing.T) {
	for _, s := range allStates {
		assert.NotEmpty(t, Label(s), s)
	}
	assert.Empty(t, Label(State("unknown")))
}
