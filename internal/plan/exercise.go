package plan

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Exercise is the canonical shape of one exercise inside a plan day.
type Exercise struct {
	Name      string `json:"exercise"`
	Category  string `json:"category,omitempty"`
	BodyPart  string `json:"body_part,omitempty"`
	Sets      string `json:"sets,omitempty"`
	Reps      string `json:"reps,omitempty"`
	Rest      string `json:"rest,omitempty"`
	Weight    string `json:"weight,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Equipment string `json:"equipment,omitempty"`
	CoachTip  string `json:"coach_tip,omitempty"`
	VideoLink string `json:"video_link,omitempty"`
	Tempo     string `json:"tempo,omitempty"`
	Order     int    `json:"order"`
}

// field aliases seen in stored rows, imports and templates; first non-empty wins
var (
	nameKeys      = []string{"exercise", "exercise_name", "name", "workout"}
	categoryKeys  = []string{"category", "type"}
	bodyPartKeys  = []string{"body_part", "bodyPart", "muscle_group"}
	setsKeys      = []string{"sets"}
	repsKeys      = []string{"reps", "repetitions"}
	restKeys      = []string{"rest", "rest_time"}
	weightKeys    = []string{"weight", "load"}
	durationKeys  = []string{"duration", "time"}
	equipmentKeys = []string{"equipment"}
	coachTipKeys  = []string{"coach_tip", "coachTip", "tips", "notes"}
	videoLinkKeys = []string{"video_link", "videoLink", "video"}
	tempoKeys     = []string{"tempo"}
	orderKeys     = []string{"order", "display_order"}
)

// NormalizeExercise builds the canonical exercise from a loosely shaped record.
func NormalizeExercise(raw map[string]any) Exercise {
	e := Exercise{
		Name:      firstString(raw, nameKeys),
		Category:  firstString(raw, categoryKeys),
		BodyPart:  firstString(raw, bodyPartKeys),
		Sets:      firstString(raw, setsKeys),
		Reps:      firstString(raw, repsKeys),
		Rest:      firstString(raw, restKeys),
		Weight:    firstString(raw, weightKeys),
		Duration:  firstString(raw, durationKeys),
		Equipment: firstString(raw, equipmentKeys),
		CoachTip:  firstString(raw, coachTipKeys),
		VideoLink: firstString(raw, videoLinkKeys),
		Tempo:     firstString(raw, tempoKeys),
	}
	if order := firstString(raw, orderKeys); order != "" {
		if n, err := strconv.ParseFloat(order, 64); err == nil {
			e.Order = int(n)
		}
	}
	return e
}

func (e *Exercise) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal exercise: %w", err)
	}
	*e = NormalizeExercise(raw)
	return nil
}

func (e Exercise) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return NewValidationError("exercise", "exercise name empty")
	}
	return nil
}

// SortExercises orders exercises by their display order, keeping the
// relative position of exercises sharing the same order.
func SortExercises(exercises []Exercise) {
	sort.SliceStable(exercises, func(i, j int) bool {
		return exercises[i].Order < exercises[j].Order
	})
}

func firstString(raw map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}
