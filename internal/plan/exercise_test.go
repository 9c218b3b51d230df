package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExercise_UnmarshalHeterogeneousNames(t *testing.T) {
	testCases := []struct {
		name string
		json string
	}{
		{name: "exercise", json: `{"exercise": "Squat"}`},
		{name: "exercise_name", json: `{"exercise_name": "Squat"}`},
		{name: "name", json: `{"name": "Squat"}`},
		{name: "workout", json: `{"workout": "Squat"}`},
		{name: "empty first alias", json: `{"exercise": "", "name": "Squat"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var e Exercise
			require.NoError(t, json.Unmarshal([]byte(tc.json), &e))
			assert.Equal(t, "Squat", e.Name)
		})
	}
}

func TestExercise_UnmarshalNumericFields(t *testing.T) {
	var e Exercise
	require.NoError(t, json.Unmarshal([]byte(`{
		"exercise_name": "Bench Press",
		"sets": 4,
		"reps": "8-10",
		"rest": 90,
		"weight": 62.5,
		"bodyPart": "chest",
		"order": "2"
	}`), &e))

	assert.Equal(t, Exercise{
		Name:     "Bench Press",
		BodyPart: "chest",
		Sets:     "4",
		Reps:     "8-10",
		Rest:     "90",
		Weight:   "62.5",
		Order:    2,
	}, e)

	// marshals back to the canonical field names
	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"exercise":"Bench Press"`)
	assert.Contains(t, string(out), `"body_part":"chest"`)
}

func TestSortExercises(t *testing.T) {
	exercises := []Exercise{
		{Name: "c", Order: 3},
		{Name: "a", Order: 1},
		{Name: "b", Order: 1},
	}
	SortExercises(exercises)
	assert.Equal(t, "a", exercises[0].Name)
	assert.Equal(t, "b", exercises[1].Name)
	assert.Equal(t, "c", exercises[2].Name)
}

func TestDay(t *testing.T) {
	rest := RestDay(MustDate("2024-06-04"))
	assert.True(t, rest.IsRest())
	assert.Equal(t, RestDayFocus, rest.Summary())

	day := Day{
		Date:  MustDate("2024-06-04"),
		Focus: "Legs",
		Exercises: []Exercise{
			{Name: "Squat", Sets: "3"},
			{Name: "Lunge", Sets: "3"},
		},
	}
	assert.False(t, day.IsRest())
	assert.Equal(t, "Legs: 2 exercises", day.Summary())
	require.NoError(t, day.Validate())

	clone := day.Clone()
	clone.Exercises[0].Sets = "5"
	assert.Equal(t, "3", day.Exercises[0].Sets)

	assert.True(t, DetailsEqual(day.Details(), day.Details()))
	assert.False(t, DetailsEqual(day.Details(), clone.Details()))
	assert.True(t, DetailsEqual(Details{Focus: "x"}, Details{Focus: "x", Exercises: []Exercise{}}))

	day.Exercises = append(day.Exercises, Exercise{})
	assert.Error(t, day.Validate())
}
