package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/planbuilder/internal/cache"
	"github.com/2beens/planbuilder/internal/dedup"
	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/retry"
	"github.com/2beens/planbuilder/internal/rowstore"
	"github.com/2beens/planbuilder/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultStartWeekday = "monday"

var ErrClientNotFound = errors.New("client not found")

type Client struct {
	ID               string `json:"client_id"`
	Name             string `json:"name"`
	PlanStartWeekday string `json:"plan_start_weekday"`
}

// StartWeekday is the weekday every plan window of the client starts on.
func (c Client) StartWeekday() time.Weekday {
	wd, err := plan.ParseWeekday(c.PlanStartWeekday)
	if err != nil {
		return time.Monday
	}
	return wd
}

// Repo reads client settings through a TTL cache. Concurrent misses for the
// same client share one retried store lookup.
type Repo struct {
	store       rowstore.Store
	cache       *cache.TTLCache
	group       *dedup.Group
	retryPolicy retry.Policy
}

func NewRepo(store rowstore.Store, clientCache *cache.TTLCache, group *dedup.Group, retryPolicy retry.Policy) *Repo {
	return &Repo{
		store:       store,
		cache:       clientCache,
		group:       group,
		retryPolicy: retryPolicy,
	}
}

func (r *Repo) Get(ctx context.Context, clientID string) (_ *Client, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "clientsRepo.get")
	span.SetAttributes(attribute.String("client_id", clientID))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if strings.TrimSpace(clientID) == "" {
		return nil, plan.NewValidationError("client_id", "empty")
	}

	var cached Client
	if r.cache.Get(clientID, &cached) {
		return &cached, nil
	}

	key := dedup.Key("getClient", map[string]any{"client": clientID})
	c, err := dedup.Execute(ctx, r.group, key, func(ctx context.Context) (Client, error) {
		return retry.Do(ctx, r.retryPolicy, func(ctx context.Context) (Client, error) {
			return r.load(ctx, clientID)
		}, func(err error, wait time.Duration) {
			log.Warnf("get client %s: %s, retrying in %s", clientID, err, wait)
		})
	})
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(clientID, c); err != nil {
		log.Errorf("cache client %s: %s", clientID, err)
	}

	return &c, nil
}

func (r *Repo) load(ctx context.Context, clientID string) (Client, error) {
	rows, err := r.store.Select(ctx, rowstore.TableClient, rowstore.Where().Eq("client_id", clientID).Limit(1))
	if err != nil {
		return Client{}, fmt.Errorf("select client: %w", err)
	}
	if len(rows) == 0 {
		return Client{}, retry.Permanent(ErrClientNotFound)
	}
	return row2Client(rows[0]), nil
}

// StartWeekday returns the configured plan start weekday of the client.
func (r *Repo) StartWeekday(ctx context.Context, clientID string) (time.Weekday, error) {
	c, err := r.Get(ctx, clientID)
	if err != nil {
		return time.Monday, err
	}
	return c.StartWeekday(), nil
}

func (r *Repo) Add(ctx context.Context, c Client) (_ *Client, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "clientsRepo.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if strings.TrimSpace(c.ID) == "" {
		return nil, plan.NewValidationError("client_id", "empty")
	}
	if c.PlanStartWeekday == "" {
		c.PlanStartWeekday = DefaultStartWeekday
	}
	if _, err := plan.ParseWeekday(c.PlanStartWeekday); err != nil {
		return nil, err
	}

	rows, err := r.store.Insert(ctx, rowstore.TableClient, rowstore.Row{
		"client_id":          c.ID,
		"name":               c.Name,
		"plan_start_weekday": strings.ToLower(c.PlanStartWeekday),
	})
	if err != nil {
		return nil, fmt.Errorf("insert client: %w", err)
	}

	r.cache.Invalidate(c.ID)
	added := row2Client(rows[0])
	return &added, nil
}

func (r *Repo) Invalidate(clientID string) {
	r.cache.Invalidate(clientID)
}

func row2Client(row rowstore.Row) Client {
	c := Client{
		ID:               row.String("client_id"),
		Name:             row.String("name"),
		PlanStartWeekday: strings.ToLower(row.String("plan_start_weekday")),
	}
	if c.PlanStartWeekday == "" {
		c.PlanStartWeekday = DefaultStartWeekday
	}
	return c
}
