package planner

import (
	"github.com/2beens/planbuilder/internal/approval"
	"github.com/2beens/planbuilder/internal/fsm"
	"github.com/2beens/planbuilder/internal/gateway"
	"github.com/2beens/planbuilder/internal/plan"
)

// Button is the projection of the machine the UI renders.
type Button struct {
	State      fsm.State `json:"state"`
	Label      string    `json:"label"`
	CanSave    bool      `json:"can_save"`
	CanApprove bool      `json:"can_approve"`
	Busy       bool      `json:"busy"`
	Stuck      bool      `json:"stuck"`
	RetryCount int       `json:"retry_count"`
	LastError  string    `json:"last_error,omitempty"`
}

type View struct {
	ClientID string         `json:"client_id"`
	Range    plan.Range     `json:"range"`
	ViewMode plan.ViewMode  `json:"view_mode"`
	Days     []plan.Day     `json:"days"`
	Source   gateway.Source `json:"source"`
	// TemplateFrom is the date of the latest older plan day, offered as a
	// starting point when the window is empty.
	TemplateFrom *plan.Date       `json:"template_from,omitempty"`
	Generated    bool             `json:"generated"`
	DirtyDates   []plan.Date      `json:"dirty_dates"`
	Status       approval.Unified `json:"status"`
	Button       Button           `json:"button"`
}

func (s *Session) View() View {
	s.mutex.Lock()
	v := View{
		ClientID:  s.clientID,
		Range:     s.window,
		ViewMode:  s.mode,
		Days:      plan.CloneDays(s.days),
		Source:    s.source,
		Generated: s.generated,
	}
	if s.template != nil {
		from := s.template.ForDate
		v.TemplateFrom = &from
	}
	s.mutex.Unlock()

	v.DirtyDates = s.dirty.Dates()
	if v.DirtyDates == nil {
		v.DirtyDates = []plan.Date{}
	}
	v.Status = s.Status()

	state := s.machine.State()
	v.Button = Button{
		State:      state,
		Label:      fsm.Label(state),
		CanSave:    s.machine.CanSave(),
		CanApprove: state == fsm.StateEnabledApprove && v.Status.Global.CanApprove,
		Busy:       s.machine.Busy(),
		Stuck:      s.machine.Stuck(),
		RetryCount: s.machine.RetryCount(),
	}
	if err := s.machine.LastError(); err != nil && v.Button.Stuck {
		v.Button.LastError = err.Error()
	}
	return v
}
