package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/planbuilder/internal/approval"
	"github.com/2beens/planbuilder/internal/breaker"
	"github.com/2beens/planbuilder/internal/dedup"
	"github.com/2beens/planbuilder/internal/dirty"
	"github.com/2beens/planbuilder/internal/fsm"
	"github.com/2beens/planbuilder/internal/gateway"
	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/telemetry/tracing"
	"github.com/2beens/planbuilder/internal/templates"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Session is the editing state of one client's plan window. Its fields are
// guarded by mutex; store calls are made without holding it.
type Session struct {
	m            *Manager
	clientID     string
	startWeekday time.Weekday
	machine      *fsm.Machine
	dirty        *dirty.Tracker

	mutex     sync.Mutex
	window    plan.Range
	mode      plan.ViewMode
	days      []plan.Day
	source    gateway.Source
	template  *plan.PreviewRow
	generated bool

	report   approval.Report
	reportAt time.Time
	// version is bumped by every local change; a status check started
	// before the bump is stale and dropped.
	version uint64
	// epoch is bumped every time a window is installed. Saves and approvals
	// finishing in a later epoch leave the session alone.
	epoch  uint64
	usedAt time.Time
}

func (s *Session) ClientID() string {
	return s.clientID
}

func (s *Session) touch(at time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if at.After(s.usedAt) {
		s.usedAt = at
	}
}

func (s *Session) lastUsed() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.usedAt
}

func (s *Session) Machine() *fsm.Machine {
	return s.machine
}

func (s *Session) Dirty() *dirty.Tracker {
	return s.dirty
}

// Navigate moves the session to the window starting at start, snapped
// forward to the client's plan start weekday. Unsaved edits are only
// dropped when discard is set.
func (s *Session) Navigate(ctx context.Context, start plan.Date, mode plan.ViewMode, discard bool) (_ View, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "planner.navigate")
	span.SetAttributes(attribute.String("client_id", s.clientID), attribute.String("start", start.String()))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if !discard && !s.dirty.Empty() {
		return View{}, ErrUnsavedChanges
	}
	if _, err := plan.ParseDate(string(start)); err != nil {
		return View{}, err
	}
	if mode != plan.ViewWeekly && mode != plan.ViewMonthly {
		return View{}, plan.NewValidationError("view", fmt.Sprintf("unknown view mode [%s]", mode))
	}

	start = plan.SnapToWeekday(start, s.startWeekday)
	window := plan.NewRange(start, mode.Days())

	key := dedup.Key("fetchPlanRange", map[string]any{
		"client": s.clientID,
		"start":  window.Start,
		"days":   window.Days,
	})
	res, err := guarded(ctx, s.m, key, s.m.config.FetchTimeout, func(ctx context.Context) (*gateway.FetchResult, error) {
		return s.m.gateway.FetchPlanRange(ctx, s.clientID, window.Start, window.Days)
	})
	if err != nil {
		return View{}, err
	}

	s.mutex.Lock()
	s.window = window
	s.mode = mode
	s.days = plan.CloneDays(res.Days)
	s.source = res.Source
	s.template = res.Template
	s.generated = false
	s.report = pendingReport(window)
	s.reportAt = time.Time{}
	s.version++
	s.epoch++
	s.dirty.Clear()
	s.mutex.Unlock()

	s.machine.Fire(fsm.EventReset)
	s.RefreshStatus(ctx, true)

	return s.View(), nil
}

// UpdateDay replaces the content of one day of the window.
func (s *Session) UpdateDay(date plan.Date, day plan.Day) (View, error) {
	day.Date = date
	if err := day.Validate(); err != nil {
		return View{}, err
	}

	s.mutex.Lock()
	idx := s.dayIndex(date)
	if idx < 0 {
		s.mutex.Unlock()
		return View{}, plan.NewValidationError("date", fmt.Sprintf("%s is outside %s", date, s.window))
	}
	s.days[idx] = day.Clone()
	s.version++
	s.mutex.Unlock()

	s.markDirty(date)
	return s.View(), nil
}

// ApplyDays replaces every given day of the window at once, as an import or
// a generator does. generated marks the window content as machine made.
func (s *Session) ApplyDays(days []plan.Day, generated bool) (View, error) {
	for _, day := range days {
		if err := day.Validate(); err != nil {
			return View{}, err
		}
	}

	s.mutex.Lock()
	indexes := make([]int, len(days))
	for i, day := range days {
		indexes[i] = s.dayIndex(day.Date)
		if indexes[i] < 0 {
			s.mutex.Unlock()
			return View{}, plan.NewValidationError("date", fmt.Sprintf("%s is outside %s", day.Date, s.window))
		}
	}
	dates := make([]plan.Date, 0, len(days))
	for i, day := range days {
		s.days[indexes[i]] = day.Clone()
		dates = append(dates, day.Date)
	}
	s.generated = generated
	s.version++
	s.mutex.Unlock()

	if len(dates) > 0 {
		// bulk writers land in the parent set at once, not one date at a time
		s.dirty.Merge(dates...)
		s.machine.Fire(fsm.EventDirtyChanges)
	}
	return s.View(), nil
}

// ImportTemplate lays tpl over the current window.
func (s *Session) ImportTemplate(tpl *templates.Template) (View, error) {
	if err := tpl.Validate(); err != nil {
		return View{}, err
	}
	s.mutex.Lock()
	start, mode := s.window.Start, s.mode
	s.mutex.Unlock()

	return s.ApplyDays(templates.ToDays(tpl, start, mode), false)
}

func (s *Session) ExportTemplate(tags []string) (*templates.Template, error) {
	s.mutex.Lock()
	days := plan.CloneDays(s.days)
	s.mutex.Unlock()

	return templates.FromDays(days, tags)
}

// Save writes the window as preview rows. Dates confirmed by the store are
// cleared from the dirty set unless edited again meanwhile; the status is
// updated optimistically and confirmed in the background.
func (s *Session) Save(ctx context.Context) (_ *gateway.SaveResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "planner.save")
	span.SetAttributes(attribute.String("client_id", s.clientID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.Lock()
	snapshot := s.dirty.Snapshot()
	window, epoch := s.window, s.epoch
	days := plan.CloneDays(s.days)
	s.mutex.Unlock()

	var result *gateway.SaveResult
	var token uint64
	var current bool
	err = s.machine.RunSave(ctx, func(ctx context.Context) error {
		key := dedup.Key("savePlanRange", map[string]any{
			"client": s.clientID,
			"start":  window.Start,
			"days":   window.Days,
		})
		res, err := guarded(ctx, s.m, key, s.m.config.SaveTimeout, func(ctx context.Context) (*gateway.SaveResult, error) {
			return s.m.gateway.SavePlanRange(ctx, s.clientID, days)
		})
		if res != nil {
			result = res
			token, current = s.applySaved(snapshot, res, epoch)
		}
		return err
	})

	s.m.metrics.CounterPlanSaves.WithLabelValues(outcomeLabel(result != nil, err)).Inc()
	if current {
		s.reconcile(window, token)
	}
	if err != nil {
		return result, err
	}

	s.settle()
	return result, nil
}

// Approve approves the whole window. Without force, existing schedule rows
// make it return a result asking for confirmation and nothing is written.
func (s *Session) Approve(ctx context.Context, force bool) (_ *gateway.ApprovalResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "planner.approve")
	span.SetAttributes(attribute.String("client_id", s.clientID), attribute.Bool("force", force))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if !s.Status().Global.CanApprove || !s.machine.CanApprove() {
		return nil, ErrCannotApprove
	}

	s.mutex.Lock()
	window, epoch := s.window, s.epoch
	s.mutex.Unlock()

	result, token, current, err := s.runApprove(ctx, window, epoch, force, func() fsm.ApproveOutcome {
		markApproved(&s.report, window)
		return fsm.Approved
	})
	s.m.metrics.CounterApprovals.WithLabelValues("range", approvalLabel(result, err)).Inc()
	if err != nil {
		return nil, err
	}
	if current {
		s.reconcile(window, token)
		s.settle()
	}
	return result, nil
}

// ApproveWeek approves week n (1 based) of a monthly window. A week can be
// approved while other weeks of the window have unsaved edits.
func (s *Session) ApproveWeek(ctx context.Context, n int, force bool) (_ *gateway.ApprovalResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "planner.approveWeek")
	span.SetAttributes(attribute.String("client_id", s.clientID), attribute.Int("week", n), attribute.Bool("force", force))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.Lock()
	window, epoch := s.window, s.epoch
	s.mutex.Unlock()

	week, ok := s.Status().Week(n)
	if !ok || !week.CanApprove {
		return nil, ErrCannotApprove
	}
	if s.machine.Busy() || s.machine.Stuck() {
		return nil, ErrCannotApprove
	}
	weekRange := plan.NewRange(week.StartDate, plan.DaysPerWeek)

	result, token, current, err := s.runApprove(ctx, weekRange, epoch, force, func() fsm.ApproveOutcome {
		markApproved(&s.report, weekRange)
		if s.report.Status == approval.StatusApproved {
			return fsm.Approved
		}
		return fsm.ApprovedPartially
	})
	s.m.metrics.CounterApprovals.WithLabelValues("week", approvalLabel(result, err)).Inc()
	if err != nil {
		return nil, err
	}
	if current {
		s.reconcile(window, token)
		s.settle()
	}
	return result, nil
}

// runApprove approves r and applies the optimistic update, called with mutex
// held. The update is skipped when the session moved to another window since
// epoch; current reports whether it was applied. The button machine is only
// driven when it offers approval; a single clean week can be approved while
// the machine waits for other weeks to be saved.
func (s *Session) runApprove(
	ctx context.Context,
	r plan.Range,
	epoch uint64,
	force bool,
	optimistic func() fsm.ApproveOutcome,
) (*gateway.ApprovalResult, uint64, bool, error) {
	var result *gateway.ApprovalResult
	var token uint64
	var current bool
	approve := func(ctx context.Context) (fsm.ApproveOutcome, error) {
		key := dedup.Key("approveRange", map[string]any{
			"client": s.clientID,
			"start":  r.Start,
			"days":   r.Days,
			"force":  force,
		})
		res, err := guarded(ctx, s.m, key, s.m.config.ApproveTimeout, func(ctx context.Context) (*gateway.ApprovalResult, error) {
			if force {
				return s.m.gateway.ForceApproveRange(ctx, s.clientID, r.Start, r.Days)
			}
			return s.m.gateway.ApproveRange(ctx, s.clientID, r.Start, r.Days)
		})
		if err != nil {
			return fsm.ApproveCancelled, err
		}
		result = res
		if res.RequiresConfirmation {
			log.Infof("planner: approval of %s %s needs confirmation, %d dates already scheduled",
				s.clientID, r, len(res.ConflictDates))
			return fsm.ApproveCancelled, nil
		}

		s.mutex.Lock()
		defer s.mutex.Unlock()
		if s.epoch != epoch {
			log.Debugf("planner: approval of %s %s finished after navigation", s.clientID, r)
			return fsm.ApproveCancelled, nil
		}
		outcome := optimistic()
		s.version++
		token = s.version
		current = true
		return outcome, nil
	}

	var err error
	if s.machine.CanApprove() {
		_, err = s.machine.RunApprove(ctx, approve)
	} else {
		_, err = approve(ctx)
	}
	return result, token, current, err
}

// RefreshStatus re-resolves the approval status of the window. Unless force
// is set, a status younger than the view mode's cooldown is returned as is.
// Status checks never fail; unreadable rows yield a pending status.
func (s *Session) RefreshStatus(ctx context.Context, force bool) approval.Unified {
	s.mutex.Lock()
	cooldown := s.m.refreshCooldown(s.mode)
	fresh := !force && !s.reportAt.IsZero() && s.m.now().Sub(s.reportAt) < cooldown
	s.mutex.Unlock()
	if fresh {
		return s.Status()
	}

	check := func(ctx context.Context) (fsm.RefreshOutcome, error) {
		s.mutex.Lock()
		window, token := s.window, s.version
		s.mutex.Unlock()

		report, err := s.resolve(ctx, window, token)
		if err != nil {
			log.Warnf("planner: refresh status of %s %s: %s", s.clientID, window, err)
			return s.outcome(), nil
		}

		s.mutex.Lock()
		if s.version == token {
			s.report = report
			s.reportAt = s.m.now()
		} else {
			log.Debugf("planner: dropping stale status of %s %s", s.clientID, window)
		}
		s.mutex.Unlock()
		return s.outcome(), nil
	}

	if err := s.machine.RunRefresh(ctx, check); errors.Is(err, fsm.ErrTransitionRejected) {
		// busy or stuck: update the status without touching the buttons
		_, _ = check(ctx)
	}
	return s.Status()
}

// Retry leaves error_stuck and re-checks the status. It returns the
// suggested wait before the next attempt of the failed operation.
func (s *Session) Retry(ctx context.Context) (View, time.Duration, error) {
	if !s.machine.Fire(fsm.EventRetry) {
		return View{}, 0, ErrNotStuck
	}
	wait := s.m.config.RetryBackoff(s.machine.RetryCount())

	s.RefreshStatus(ctx, true)
	return s.View(), wait, nil
}

// Reset recovers from any state: pending dedup entries are dropped, the
// machine starts over and the status is re-checked. Unsaved edits are kept.
func (s *Session) Reset(ctx context.Context) View {
	s.m.group.ClearAll()
	s.machine.Fire(fsm.EventReset)
	log.Infof("planner: session of %s reset", s.clientID)

	s.RefreshStatus(ctx, true)
	return s.View()
}

// Status is the unified status of the window, combining the last resolved
// report with the unsaved dates.
func (s *Session) Status() approval.Unified {
	s.mutex.Lock()
	report := cloneReport(s.report)
	isDraftPlan := s.source == gateway.SourceStored
	s.mutex.Unlock()

	return approval.Unify(report, s.dirty, isDraftPlan)
}

func (s *Session) markDirty(dates ...plan.Date) {
	s.dirty.MarkDirty(dates...)
	s.machine.Fire(fsm.EventDirtyChanges)
}

// applySaved clears the confirmed dates and flips the status of the written
// weeks to draft. It returns the version token of the optimistic state, or
// false when the session moved to another window since epoch.
func (s *Session) applySaved(snapshot dirty.Snapshot, res *gateway.SaveResult, epoch uint64) (uint64, bool) {
	confirmed := make([]plan.Date, 0, len(res.Written)+len(res.Unchanged))
	confirmed = append(confirmed, res.Written...)
	confirmed = append(confirmed, res.Unchanged...)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.epoch != epoch {
		log.Debugf("planner: save of %s finished after navigation, %d dates confirmed", s.clientID, len(confirmed))
		return 0, false
	}
	cleared := s.dirty.ClearConfirmed(snapshot, confirmed)
	log.Debugf("planner: save of %s confirmed %d dates, cleared %d", s.clientID, len(confirmed), len(cleared))
	if len(confirmed) > 0 {
		s.source = gateway.SourceStored
	}
	if len(res.Written) > 0 {
		markDrafted(&s.report, res.Written)
	}
	s.version++
	return s.version, true
}

// reconcile confirms the optimistic status in the background. Results
// superseded by a newer local change are dropped, and unreadable rows only
// get logged. A confirmed status contradicting the optimistic one sends
// the machine to error_stuck.
func (s *Session) reconcile(window plan.Range, token uint64) {
	s.mutex.Lock()
	optimistic := s.report.Status
	s.mutex.Unlock()

	s.m.bgWG.Add(1)
	go func() {
		defer s.m.bgWG.Done()

		ctx, cancel := context.WithTimeout(s.m.bgCtx, s.m.config.ResolveTimeout)
		defer cancel()

		report, err := s.resolve(ctx, window, token)
		if err != nil {
			log.Warnf("planner: reconcile %s %s: %s", s.clientID, window, err)
			return
		}
		if report.Degraded {
			log.Warnf("planner: reconcile %s %s: status unavailable, keeping %s", s.clientID, window, optimistic)
			return
		}

		s.mutex.Lock()
		if s.version != token {
			s.mutex.Unlock()
			log.Debugf("planner: reconcile %s %s: superseded", s.clientID, window)
			return
		}
		s.report = report
		s.reportAt = s.m.now()
		s.mutex.Unlock()

		if contradicts(optimistic, report.Status) {
			err := fmt.Errorf("%w: expected %s, store has %s", ErrStatusMismatch, optimistic, report.Status)
			log.Errorf("planner: reconcile %s %s: %s", s.clientID, window, err)
			s.machine.Fail(fsm.EventRefreshFailure, err)
			return
		}
		s.settle()
	}()
}

// resolve reads the status of window. Only reads started at the same
// session version share a result, so a read begun before a local change is
// never handed to a check started after it.
func (s *Session) resolve(ctx context.Context, window plan.Range, version uint64) (approval.Report, error) {
	key := dedup.Key("resolveStatus", map[string]any{
		"client":  s.clientID,
		"start":   window.Start,
		"days":    window.Days,
		"version": version,
	})
	return dedup.Execute(ctx, s.m.group, key, func(ctx context.Context) (approval.Report, error) {
		return s.m.resolver.Resolve(ctx, s.clientID, window), nil
	}, dedup.WithTimeout(s.m.config.ResolveTimeout))
}

// settle moves a settled machine to the state the current status implies.
func (s *Session) settle() {
	switch s.outcome() {
	case fsm.RefreshApproved:
		s.machine.Fire(fsm.EventRefreshApproved)
	case fsm.RefreshApprovable:
		s.machine.Fire(fsm.EventRefreshApprovable)
	default:
		s.machine.Fire(fsm.EventRefreshBlocked)
	}
}

func (s *Session) outcome() fsm.RefreshOutcome {
	u := s.Status()
	switch {
	case u.Global.HasUnsavedChanges:
		return fsm.RefreshBlocked
	case u.Global.Status == approval.StatusApproved:
		return fsm.RefreshApproved
	case u.Global.CanApprove:
		return fsm.RefreshApprovable
	default:
		return fsm.RefreshBlocked
	}
}

// dayIndex must be called with mutex held.
func (s *Session) dayIndex(d plan.Date) int {
	for i := range s.days {
		if s.days[i].Date == d {
			return i
		}
	}
	return -1
}

func outcomeLabel(hasResult bool, err error) string {
	var timeoutErr *breaker.TimeoutError
	var writeErr *gateway.WriteError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &timeoutErr):
		return "timeout"
	case hasResult && errors.As(err, &writeErr):
		return "partial"
	default:
		return "error"
	}
}

func approvalLabel(result *gateway.ApprovalResult, err error) string {
	var timeoutErr *breaker.TimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		return "timeout"
	case err != nil:
		return "error"
	case result.RequiresConfirmation:
		return "conflict"
	default:
		return "approved"
	}
}
