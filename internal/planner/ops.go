package planner

import (
	"context"
	"time"

	"github.com/2beens/planbuilder/internal/approval"
	"github.com/2beens/planbuilder/internal/gateway"
	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/templates"
)

// The operations below address a session by client id, opening it on first
// use.

func (m *Manager) View(ctx context.Context, clientID string) (View, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// Navigate moves the client's session. An empty start or mode keeps the
// current one.
func (m *Manager) Navigate(ctx context.Context, clientID string, start plan.Date, mode plan.ViewMode, discard bool) (View, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return View{}, err
	}

	s.mutex.Lock()
	if start == "" {
		start = s.window.Start
	}
	if mode == "" {
		mode = s.mode
	}
	s.mutex.Unlock()

	return s.Navigate(ctx, start, mode, discard)
}

func (m *Manager) UpdateDay(ctx context.Context, clientID string, date plan.Date, day plan.Day) (View, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return View{}, err
	}
	return s.UpdateDay(date, day)
}

func (m *Manager) Save(ctx context.Context, clientID string) (*gateway.SaveResult, View, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return nil, View{}, err
	}
	result, err := s.Save(ctx)
	return result, s.View(), err
}

func (m *Manager) Approve(ctx context.Context, clientID string, force bool) (*gateway.ApprovalResult, View, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return nil, View{}, err
	}
	result, err := s.Approve(ctx, force)
	return result, s.View(), err
}

func (m *Manager) ApproveWeek(ctx context.Context, clientID string, week int, force bool) (*gateway.ApprovalResult, View, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return nil, View{}, err
	}
	result, err := s.ApproveWeek(ctx, week, force)
	return result, s.View(), err
}

func (m *Manager) Status(ctx context.Context, clientID string, refresh bool) (approval.Unified, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return approval.Unified{}, err
	}
	if refresh {
		return s.RefreshStatus(ctx, false), nil
	}
	return s.Status(), nil
}

func (m *Manager) Retry(ctx context.Context, clientID string) (View, time.Duration, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return View{}, 0, err
	}
	return s.Retry(ctx)
}

func (m *Manager) Reset(ctx context.Context, clientID string) (View, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return View{}, err
	}
	return s.Reset(ctx), nil
}

func (m *Manager) ExportTemplate(ctx context.Context, clientID string, tags []string) (*templates.Template, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.ExportTemplate(tags)
}

func (m *Manager) ImportTemplate(ctx context.Context, clientID string, tpl *templates.Template) (View, error) {
	s, err := m.Session(ctx, clientID)
	if err != nil {
		return View{}, err
	}
	return s.ImportTemplate(tpl)
}
