package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/rowstore"
)

var canonicalConflictKey = []string{"client_id", "for_date", "type", "task"}

func row2Preview(row rowstore.Row) (plan.PreviewRow, error) {
	forDate, err := plan.ParseDate(row.String("for_date"))
	if err != nil {
		return plan.PreviewRow{}, fmt.Errorf("preview row %d: %w", row.Int64("id"), err)
	}

	details, err := decodeDetails(row["details_json"])
	if err != nil {
		return plan.PreviewRow{}, fmt.Errorf("preview row %s: %w", forDate, err)
	}

	r := plan.PreviewRow{
		ID:         row.Int64("id"),
		ClientID:   row.String("client_id"),
		Type:       row.String("type"),
		Task:       row.String("task"),
		Icon:       row.String("icon"),
		Summary:    row.String("summary"),
		ForDate:    forDate,
		ForTime:    row.String("for_time"),
		WorkoutID:  row.String("workout_id"),
		Details:    details,
		IsApproved: row.Bool("is_approved"),
	}
	if createdAt := row.String("created_at"); createdAt != "" {
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			r.CreatedAt = t
		}
	}

	return r, nil
}

func row2Canonical(row rowstore.Row) (plan.CanonicalRow, error) {
	forDate, err := plan.ParseDate(row.String("for_date"))
	if err != nil {
		return plan.CanonicalRow{}, fmt.Errorf("schedule row: %w", err)
	}

	details, err := decodeDetails(row["details_json"])
	if err != nil {
		return plan.CanonicalRow{}, fmt.Errorf("schedule row %s: %w", forDate, err)
	}

	return plan.CanonicalRow{
		ClientID:  row.String("client_id"),
		Type:      row.String("type"),
		Task:      row.String("task"),
		Icon:      row.String("icon"),
		Summary:   row.String("summary"),
		ForDate:   forDate,
		ForTime:   row.String("for_time"),
		WorkoutID: row.String("workout_id"),
		Details:   details,
	}, nil
}

func canonical2Row(r plan.CanonicalRow) rowstore.Row {
	return rowstore.Row{
		"client_id":    r.ClientID,
		"type":         r.Type,
		"task":         r.Task,
		"icon":         r.Icon,
		"summary":      r.Summary,
		"for_date":     r.ForDate.String(),
		"for_time":     r.ForTime,
		"workout_id":   r.WorkoutID,
		"details_json": r.Details,
	}
}

// decodeDetails accepts details_json as stored text or as an already decoded
// JSON value, depending on the store.
func decodeDetails(v any) (plan.Details, error) {
	var raw []byte
	switch val := v.(type) {
	case nil:
		return plan.Details{Focus: plan.RestDayFocus, Exercises: []plan.Exercise{}}, nil
	case []byte:
		raw = val
	case json.RawMessage:
		raw = val
	case string:
		raw = []byte(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return plan.Details{}, fmt.Errorf("marshal details_json: %w", err)
		}
		raw = b
	}

	details := plan.Details{}
	if err := json.Unmarshal(raw, &details); err != nil {
		return plan.Details{}, fmt.Errorf("unmarshal details_json: %w", err)
	}
	if details.Exercises == nil {
		details.Exercises = []plan.Exercise{}
	}
	return details, nil
}
