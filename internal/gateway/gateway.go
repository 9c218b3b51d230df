// Package gateway reads and writes client plans: staged preview rows in
// schedule_preview and the approved, live rows in schedule.
package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/rowstore"
	"github.com/2beens/planbuilder/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type Source string

const (
	// SourceStored means the window has at least one preview row.
	SourceStored Source = "stored"
	// SourceTemplate means the window is empty, but an older plan exists
	// that can seed a new one. Days are still rest day placeholders.
	SourceTemplate Source = "template"
	SourceEmpty    Source = "empty"
)

type FetchResult struct {
	Range    plan.Range       `json:"range"`
	Days     []plan.Day       `json:"days"`
	Source   Source           `json:"source"`
	Template *plan.PreviewRow `json:"template,omitempty"`
}

type SaveResult struct {
	Written   []plan.Date `json:"written"`
	Unchanged []plan.Date `json:"unchanged"`
	Failed    []plan.Date `json:"failed"`
	// ResetWeeks are the start dates of the weeks whose approval was revoked.
	ResetWeeks []plan.Date `json:"reset_weeks"`
}

type ApprovalResult struct {
	Approved             []plan.Date `json:"approved"`
	RequiresConfirmation bool        `json:"requires_confirmation"`
	ConflictDates        []plan.Date `json:"conflict_dates,omitempty"`
}

type Gateway struct {
	store rowstore.Store
	newID func() string
}

func New(store rowstore.Store) *Gateway {
	return &Gateway{
		store: store,
		newID: func() string {
			return uuid.New().String()
		},
	}
}

// PreviewRows lists the preview rows of a client within r, by date.
func (g *Gateway) PreviewRows(ctx context.Context, clientID string, r plan.Range) (_ []plan.PreviewRow, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "gateway.previewRows")
	span.SetAttributes(attribute.String("client_id", clientID), attribute.String("range", r.String()))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := g.store.Select(ctx, rowstore.TablePreview, rangeQuery(clientID, r).Order("for_date", false))
	if err != nil {
		return nil, &FetchError{Op: "preview rows", Err: err}
	}

	previews := make([]plan.PreviewRow, 0, len(rows))
	for _, row := range rows {
		p, err := row2Preview(row)
		if err != nil {
			return nil, &FetchError{Op: "preview rows", Err: err}
		}
		previews = append(previews, p)
	}

	return previews, nil
}

// CanonicalRows lists the approved schedule rows of a client within r, by date.
func (g *Gateway) CanonicalRows(ctx context.Context, clientID string, r plan.Range) (_ []plan.CanonicalRow, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "gateway.canonicalRows")
	span.SetAttributes(attribute.String("client_id", clientID), attribute.String("range", r.String()))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := g.store.Select(ctx, rowstore.TableSchedule, rangeQuery(clientID, r).Order("for_date", false))
	if err != nil {
		return nil, &FetchError{Op: "schedule rows", Err: err}
	}

	canonical := make([]plan.CanonicalRow, 0, len(rows))
	for _, row := range rows {
		c, err := row2Canonical(row)
		if err != nil {
			return nil, &FetchError{Op: "schedule rows", Err: err}
		}
		canonical = append(canonical, c)
	}

	return canonical, nil
}

// FetchPlanRange builds one day per date of the window. Dates without a
// preview row become rest day placeholders.
func (g *Gateway) FetchPlanRange(ctx context.Context, clientID string, start plan.Date, days int) (_ *FetchResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "gateway.fetchPlanRange")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := validateClientID(clientID); err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, plan.NewValidationError("days", "must be positive")
	}

	r := plan.NewRange(start, days)
	previews, err := g.PreviewRows(ctx, clientID, r)
	if err != nil {
		return nil, err
	}

	result := &FetchResult{
		Range:  r,
		Days:   plan.RestDays(r),
		Source: SourceEmpty,
	}

	if len(previews) > 0 {
		byDate := make(map[plan.Date]plan.PreviewRow, len(previews))
		for _, p := range previews {
			byDate[p.ForDate] = p
		}
		for i, day := range result.Days {
			if p, ok := byDate[day.Date]; ok {
				result.Days[i] = p.Day()
			}
		}
		result.Source = SourceStored
		return result, nil
	}

	historical, err := g.store.Select(ctx, rowstore.TablePreview,
		rowstore.Where().
			Eq("client_id", clientID).
			Eq("type", plan.RowTypeWorkout).
			Lte("for_date", start.AddDays(-1)).
			Order("for_date", true).
			Limit(1),
	)
	if err != nil {
		return nil, &FetchError{Op: "historical preview", Err: err}
	}
	if len(historical) > 0 {
		tpl, err := row2Preview(historical[0])
		if err != nil {
			return nil, &FetchError{Op: "historical preview", Err: err}
		}
		result.Source = SourceTemplate
		result.Template = &tpl
	}

	return result, nil
}

// SavePlanRange writes the given days as preview rows. Days equal to their
// stored row are skipped, changed days are updated and new days inserted.
// Every 7 day week, counted from the first day, that got a write loses its
// approval. Failed writes are itemized in a *WriteError, and successful
// writes are kept.
func (g *Gateway) SavePlanRange(ctx context.Context, clientID string, days []plan.Day) (_ *SaveResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "gateway.savePlanRange")
	span.SetAttributes(attribute.String("client_id", clientID), attribute.Int("days", len(days)))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := validateClientID(clientID); err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, plan.NewValidationError("days", "nothing to save")
	}

	days = plan.CloneDays(days)
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
	for i, day := range days {
		if err := day.Validate(); err != nil {
			return nil, err
		}
		if i > 0 && days[i-1].Date == day.Date {
			return nil, plan.NewValidationError("days", fmt.Sprintf("duplicate date %s", day.Date))
		}
	}

	anchor := days[0].Date
	saveRange := plan.NewRange(anchor, anchor.DaysUntil(days[len(days)-1].Date)+1)
	span.SetAttributes(attribute.String("range", saveRange.String()))
	existing, err := g.PreviewRows(ctx, clientID, saveRange)
	if err != nil {
		return nil, err
	}
	byDate := make(map[plan.Date]plan.PreviewRow, len(existing))
	for _, p := range existing {
		byDate[p.ForDate] = p
	}

	result := &SaveResult{}
	writeErr := &WriteError{Op: "save plan"}
	touchedWeeks := make(map[int]bool)

	for _, day := range days {
		details := day.Details()
		summary := day.Summary()

		if stored, ok := byDate[day.Date]; ok {
			if plan.DetailsEqual(stored.Details, details) && stored.Summary == summary {
				result.Unchanged = append(result.Unchanged, day.Date)
				continue
			}

			_, err := g.store.Update(ctx, rowstore.TablePreview,
				rowstore.Where().
					Eq("client_id", clientID).
					Eq("for_date", day.Date).
					Eq("type", plan.RowTypeWorkout),
				rowstore.Row{
					"summary":      summary,
					"details_json": details,
					"is_approved":  false,
				},
			)
			if err != nil {
				log.Errorf("save plan %s: update %s: %s", clientID, day.Date, err)
				writeErr.add(day.Date, "update", err)
				result.Failed = append(result.Failed, day.Date)
				continue
			}
		} else {
			_, err := g.store.Insert(ctx, rowstore.TablePreview, rowstore.Row{
				"client_id":    clientID,
				"type":         plan.RowTypeWorkout,
				"task":         plan.TaskWorkout,
				"icon":         plan.DefaultIcon,
				"summary":      summary,
				"for_date":     day.Date,
				"for_time":     plan.DefaultForTime,
				"workout_id":   g.newID(),
				"details_json": details,
				"is_approved":  false,
			})
			if err != nil {
				log.Errorf("save plan %s: insert %s: %s", clientID, day.Date, err)
				writeErr.add(day.Date, "insert", err)
				result.Failed = append(result.Failed, day.Date)
				continue
			}
		}

		result.Written = append(result.Written, day.Date)
		touchedWeeks[anchor.DaysUntil(day.Date)/plan.DaysPerWeek] = true
	}

	weeks := make([]int, 0, len(touchedWeeks))
	for w := range touchedWeeks {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)

	for _, w := range weeks {
		week := plan.NewRange(anchor.AddDays(w*plan.DaysPerWeek), plan.DaysPerWeek)
		_, err := g.store.Update(ctx, rowstore.TablePreview,
			rangeQuery(clientID, week).Eq("is_approved", true),
			rowstore.Row{"is_approved": false},
		)
		if err != nil {
			log.Errorf("save plan %s: reset approval of week %s: %s", clientID, week, err)
			writeErr.add(week.Start, "reset approval", err)
			continue
		}
		result.ResetWeeks = append(result.ResetWeeks, week.Start)
	}

	log.Debugf("save plan %s: %d written, %d unchanged, %d failed",
		clientID, len(result.Written), len(result.Unchanged), len(result.Failed))

	if !writeErr.empty() {
		return result, writeErr
	}
	return result, nil
}

// ApproveRange copies the preview rows of the window into schedule and then
// flags them approved. If schedule already holds rows in the window nothing
// is written and the result asks for confirmation.
func (g *Gateway) ApproveRange(ctx context.Context, clientID string, start plan.Date, days int) (*ApprovalResult, error) {
	return g.approve(ctx, clientID, plan.NewRange(start, days), false)
}

// ForceApproveRange approves the window, overwriting existing schedule rows.
func (g *Gateway) ForceApproveRange(ctx context.Context, clientID string, start plan.Date, days int) (*ApprovalResult, error) {
	return g.approve(ctx, clientID, plan.NewRange(start, days), true)
}

func (g *Gateway) ApproveWeek(ctx context.Context, clientID string, weekStart plan.Date, force bool) (*ApprovalResult, error) {
	return g.approve(ctx, clientID, plan.NewRange(weekStart, plan.DaysPerWeek), force)
}

func (g *Gateway) approve(ctx context.Context, clientID string, r plan.Range, force bool) (_ *ApprovalResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "gateway.approve")
	span.SetAttributes(
		attribute.String("client_id", clientID),
		attribute.String("range", r.String()),
		attribute.Bool("force", force),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := validateClientID(clientID); err != nil {
		return nil, err
	}
	if r.Days <= 0 {
		return nil, plan.NewValidationError("days", "must be positive")
	}

	previews, err := g.PreviewRows(ctx, clientID, r)
	if err != nil {
		return nil, err
	}
	if len(previews) == 0 {
		return nil, fmt.Errorf("approve %s %s: %w", clientID, r, ErrNoDraftPlan)
	}

	if !force {
		canonical, err := g.CanonicalRows(ctx, clientID, r)
		if err != nil {
			return nil, err
		}
		if len(canonical) > 0 {
			conflicts := make([]plan.Date, 0, len(canonical))
			for _, c := range canonical {
				conflicts = append(conflicts, c.ForDate)
			}
			log.Debugf("approve %s %s: %d schedule rows exist, confirmation required", clientID, r, len(conflicts))
			return &ApprovalResult{
				RequiresConfirmation: true,
				ConflictDates:        conflicts,
			}, nil
		}
	}

	// copy first, flag after: a preview row must never be flagged approved
	// without its schedule copy
	copies := make([]rowstore.Row, 0, len(previews))
	for _, p := range previews {
		copies = append(copies, canonical2Row(p.Canonical()))
	}
	if err := g.store.Upsert(ctx, rowstore.TableSchedule, canonicalConflictKey, copies...); err != nil {
		writeErr := &WriteError{Op: "approve plan"}
		for _, p := range previews {
			writeErr.add(p.ForDate, "copy", err)
		}
		return nil, writeErr
	}

	result := &ApprovalResult{}
	writeErr := &WriteError{Op: "approve plan"}
	for _, p := range previews {
		if p.IsApproved {
			result.Approved = append(result.Approved, p.ForDate)
			continue
		}
		_, err := g.store.Update(ctx, rowstore.TablePreview,
			rowstore.Where().Eq("id", p.ID),
			rowstore.Row{"is_approved": true},
		)
		if err != nil {
			log.Errorf("approve %s: flag %s: %s", clientID, p.ForDate, err)
			writeErr.add(p.ForDate, "flag", err)
			continue
		}
		result.Approved = append(result.Approved, p.ForDate)
	}

	if !writeErr.empty() {
		return result, writeErr
	}

	log.Debugf("approve %s %s: %d rows approved", clientID, r, len(result.Approved))
	return result, nil
}

func rangeQuery(clientID string, r plan.Range) rowstore.Query {
	return rowstore.Where().
		Eq("client_id", clientID).
		Eq("type", plan.RowTypeWorkout).
		Gte("for_date", r.Start).
		Lte("for_date", r.End())
}

func validateClientID(clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return plan.NewValidationError("client_id", "empty")
	}
	return nil
}
