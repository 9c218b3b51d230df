// Package planner hosts the plan editing sessions of the trainer UI. A
// session ties the persistence gateway, the approval resolver, the dirty date
// tracker and the approve button machine together for one client.
package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/2beens/planbuilder/internal/approval"
	"github.com/2beens/planbuilder/internal/breaker"
	"github.com/2beens/planbuilder/internal/clients"
	"github.com/2beens/planbuilder/internal/dedup"
	"github.com/2beens/planbuilder/internal/dirty"
	"github.com/2beens/planbuilder/internal/fsm"
	"github.com/2beens/planbuilder/internal/gateway"
	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/retry"
	"github.com/2beens/planbuilder/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

var (
	ErrUnsavedChanges = errors.New("unsaved changes")
	ErrCannotApprove  = errors.New("plan cannot be approved")
	ErrNotStuck       = errors.New("session is not stuck")
)

type Config struct {
	FetchTimeout   time.Duration
	SaveTimeout    time.Duration
	ApproveTimeout time.Duration
	// ResolveTimeout bounds background status checks.
	ResolveTimeout time.Duration
	// BreakerDelay is added to dedup timeouts so a breaker cooldown delay
	// does not eat into the operation's own time budget.
	BreakerDelay           time.Duration
	WeeklyRefreshCooldown  time.Duration
	MonthlyRefreshCooldown time.Duration
	// RetryBackoff suggests how long the UI waits before the nth retry.
	RetryBackoff func(attempt int) time.Duration
	// SessionIdleTTL closes sessions left unused that long. Zero keeps
	// sessions open until Close.
	SessionIdleTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		FetchTimeout:           12 * time.Second,
		SaveTimeout:            20 * time.Second,
		ApproveTimeout:         45 * time.Second,
		ResolveTimeout:         12 * time.Second,
		BreakerDelay:           breaker.DefaultDelay,
		WeeklyRefreshCooldown:  500 * time.Millisecond,
		MonthlyRefreshCooldown: 1500 * time.Millisecond,
		RetryBackoff:           retry.Exponential(time.Second, 30*time.Second),
		SessionIdleTTL:         30 * time.Minute,
	}
}

type NewManagerParams struct {
	Gateway  *gateway.Gateway
	Resolver *approval.Resolver
	Clients  *clients.Repo
	Group    *dedup.Group
	Breaker  *breaker.Breaker
	Metrics  *metrics.Manager
	Config   Config
	// Now defaults to time.Now.
	Now func() time.Time
}

// Manager owns one editing session per client.
type Manager struct {
	gateway  *gateway.Gateway
	resolver *approval.Resolver
	clients  *clients.Repo
	group    *dedup.Group
	breaker  *breaker.Breaker
	metrics  *metrics.Manager
	config   Config
	now      func() time.Time

	// background reconciles run on bgCtx and are tracked by bgWG
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
	// idle session eviction runs on bgCtx too, outside bgWG
	janitorWG sync.WaitGroup

	mutex    sync.Mutex
	sessions map[string]*Session
}

func NewManager(params NewManagerParams) *Manager {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	bgCtx, bgCancel := context.WithCancel(context.Background())
	m := &Manager{
		gateway:  params.Gateway,
		resolver: params.Resolver,
		clients:  params.Clients,
		group:    params.Group,
		breaker:  params.Breaker,
		metrics:  params.Metrics,
		config:   params.Config,
		now:      now,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
		sessions: make(map[string]*Session),
	}

	if m.config.SessionIdleTTL > 0 {
		m.janitorWG.Add(1)
		go m.evictIdleLoop(m.config.SessionIdleTTL)
	}
	return m
}

// Session returns the open session of the client, opening a weekly session
// on the current plan week if there is none.
func (m *Manager) Session(ctx context.Context, clientID string) (*Session, error) {
	m.mutex.Lock()
	s, ok := m.sessions[clientID]
	m.mutex.Unlock()
	if ok {
		s.touch(m.now())
		return s, nil
	}

	client, err := m.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	s = newSession(m, client.ID, client.StartWeekday())
	start := plan.SnapToWeekday(plan.DateOf(m.now()), s.startWeekday)
	if _, err := s.Navigate(ctx, start, plan.ViewWeekly, true); err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	// a concurrent open won the race
	if existing, ok := m.sessions[clientID]; ok {
		existing.touch(m.now())
		return existing, nil
	}
	s.touch(m.now())
	m.sessions[clientID] = s
	m.metrics.GaugeActiveSessions.Inc()
	log.Debugf("planner: opened session for client %s at %s", clientID, start)
	return s, nil
}

// Lookup returns the open session of the client without opening one.
func (m *Manager) Lookup(clientID string) (*Session, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s, ok := m.sessions[clientID]
	return s, ok
}

func (m *Manager) Close(clientID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closeLocked(clientID)
}

// EvictIdle closes the sessions unused for at least maxIdle and returns how
// many were closed. Sessions with unsaved edits or a running save or
// approval are kept.
func (m *Manager) EvictIdle(maxIdle time.Duration) int {
	now := m.now()
	m.mutex.Lock()
	defer m.mutex.Unlock()

	evicted := 0
	for clientID, s := range m.sessions {
		if now.Sub(s.lastUsed()) < maxIdle || !s.dirty.Empty() || s.machine.Busy() {
			continue
		}
		m.closeLocked(clientID)
		evicted++
	}
	if evicted > 0 {
		log.Debugf("planner: evicted %d idle sessions, %d open", evicted, len(m.sessions))
	}
	return evicted
}

func (m *Manager) evictIdleLoop(ttl time.Duration) {
	defer m.janitorWG.Done()
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-m.bgCtx.Done():
			return
		case <-ticker.C:
			m.EvictIdle(ttl)
		}
	}
}

// closeLocked must be called with mutex held.
func (m *Manager) closeLocked(clientID string) {
	if _, ok := m.sessions[clientID]; !ok {
		return
	}
	delete(m.sessions, clientID)
	m.metrics.GaugeActiveSessions.Dec()
}

// Wait blocks until all background status checks have finished.
func (m *Manager) Wait() {
	m.bgWG.Wait()
}

// Shutdown cancels background status checks and the idle session eviction
// and waits for them.
func (m *Manager) Shutdown() {
	m.bgCancel()
	m.bgWG.Wait()
	m.janitorWG.Wait()
}

// guarded runs fn under the dedup key, raced against timeout by the breaker.
func guarded[T any](
	ctx context.Context,
	m *Manager,
	key string,
	timeout time.Duration,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	op := dedup.OpOf(key)
	return dedup.Execute(ctx, m.group, key, func(ctx context.Context) (T, error) {
		return breaker.Run(ctx, m.breaker, op, timeout, fn)
	}, dedup.WithTimeout(timeout+m.config.BreakerDelay))
}

func (m *Manager) refreshCooldown(mode plan.ViewMode) time.Duration {
	if mode == plan.ViewMonthly {
		return m.config.MonthlyRefreshCooldown
	}
	return m.config.WeeklyRefreshCooldown
}

func newSession(m *Manager, clientID string, startWeekday time.Weekday) *Session {
	return &Session{
		m:            m,
		clientID:     clientID,
		startWeekday: startWeekday,
		machine:      fsm.New(),
		dirty:        dirty.NewTracker(),
	}
}
