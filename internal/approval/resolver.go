package approval

import (
	"context"

	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/telemetry/metrics"
	"github.com/2beens/planbuilder/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// RowSource lists the rows the resolver works on.
type RowSource interface {
	PreviewRows(ctx context.Context, clientID string, r plan.Range) ([]plan.PreviewRow, error)
	CanonicalRows(ctx context.Context, clientID string, r plan.Range) ([]plan.CanonicalRow, error)
}

type WeekReport struct {
	WeekNumber    int        `json:"week_number"`
	Range         plan.Range `json:"range"`
	Status        Status     `json:"status"`
	HasUnapproved bool       `json:"has_unapproved"`
}

type Report struct {
	Range         plan.Range   `json:"range"`
	Status        Status       `json:"status"`
	HasUnapproved bool         `json:"has_unapproved"`
	Weeks         []WeekReport `json:"weeks,omitempty"`
	// Degraded is set when the rows could not be read; Status is then pending.
	Degraded bool `json:"degraded"`
}

type Resolver struct {
	source  RowSource
	metrics *metrics.Manager
}

func NewResolver(source RowSource, metricsManager *metrics.Manager) *Resolver {
	return &Resolver{
		source:  source,
		metrics: metricsManager,
	}
}

// Resolve computes the status of window. Windows longer than a week also get
// a per week breakdown. Read failures are logged and reported as a degraded,
// pending report; Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, clientID string, window plan.Range) Report {
	ctx, span := tracing.GlobalTracer.Start(ctx, "approval.resolve")
	span.SetAttributes(attribute.String("client_id", clientID), attribute.String("range", window.String()))
	defer span.End()

	report := r.resolve(ctx, clientID, window)
	span.SetAttributes(attribute.String("status", string(report.Status)))
	r.metrics.CounterStatusResolved.WithLabelValues(string(report.Status)).Inc()
	return report
}

func (r *Resolver) resolve(ctx context.Context, clientID string, window plan.Range) Report {
	previews, err := r.source.PreviewRows(ctx, clientID, window)
	if err != nil {
		log.Warnf("resolve approval status %s %s: %s", clientID, window, err)
		return degraded(window)
	}
	canonical, err := r.source.CanonicalRows(ctx, clientID, window)
	if err != nil {
		log.Warnf("resolve approval status %s %s: %s", clientID, window, err)
		return degraded(window)
	}

	report := Report{
		Range:         window,
		Status:        ComputeStatus(previews, len(canonical)),
		HasUnapproved: hasUnapproved(previews),
	}
	if window.Days <= plan.DaysPerWeek {
		return report
	}

	for i, week := range window.Weeks() {
		var weekPreviews []plan.PreviewRow
		for _, p := range previews {
			if week.Contains(p.ForDate) {
				weekPreviews = append(weekPreviews, p)
			}
		}
		weekCanonical := 0
		for _, c := range canonical {
			if week.Contains(c.ForDate) {
				weekCanonical++
			}
		}
		report.Weeks = append(report.Weeks, WeekReport{
			WeekNumber:    i + 1,
			Range:         week,
			Status:        ComputeStatus(weekPreviews, weekCanonical),
			HasUnapproved: hasUnapproved(weekPreviews),
		})
	}

	return report
}

func degraded(window plan.Range) Report {
	return Report{
		Range:    window,
		Status:   StatusPending,
		Degraded: true,
	}
}
