package plan

import "time"

const (
	RowTypeWorkout = "workout"
	TaskWorkout    = "workout"
	DefaultForTime = "08:00:00"
	DefaultIcon    = "dumbbell"
)

// PreviewRow is a staged, editable plan day (table schedule_preview).
type PreviewRow struct {
	ID         int64     `json:"id"`
	ClientID   string    `json:"client_id"`
	Type       string    `json:"type"`
	Task       string    `json:"task"`
	Icon       string    `json:"icon"`
	Summary    string    `json:"summary"`
	ForDate    Date      `json:"for_date"`
	ForTime    string    `json:"for_time"`
	WorkoutID  string    `json:"workout_id"`
	Details    Details   `json:"details_json"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
}

// CanonicalRow is the approved, live schedule record (table schedule).
type CanonicalRow struct {
	ClientID  string  `json:"client_id"`
	Type      string  `json:"type"`
	Task      string  `json:"task"`
	Icon      string  `json:"icon"`
	Summary   string  `json:"summary"`
	ForDate   Date    `json:"for_date"`
	ForTime   string  `json:"for_time"`
	WorkoutID string  `json:"workout_id"`
	Details   Details `json:"details_json"`
}

// Canonical drops the approval bookkeeping fields.
func (r PreviewRow) Canonical() CanonicalRow {
	return CanonicalRow{
		ClientID:  r.ClientID,
		Type:      r.Type,
		Task:      r.Task,
		Icon:      r.Icon,
		Summary:   r.Summary,
		ForDate:   r.ForDate,
		ForTime:   r.ForTime,
		WorkoutID: r.WorkoutID,
		Details:   r.Details,
	}
}

func (r PreviewRow) Day() Day {
	details := r.Details
	exercises := make([]Exercise, len(details.Exercises))
	copy(exercises, details.Exercises)
	SortExercises(exercises)
	focus := details.Focus
	if focus == "" && len(exercises) == 0 {
		focus = RestDayFocus
	}
	return Day{
		Date:      r.ForDate,
		Focus:     focus,
		Exercises: exercises,
	}
}
