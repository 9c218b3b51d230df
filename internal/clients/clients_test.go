package clients

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/2beens/planbuilder/internal/cache"
	"github.com/2beens/planbuilder/internal/dedup"
	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/retry"
	"github.com/2beens/planbuilder/internal/rowstore"
	"github.com/2beens/planbuilder/internal/telemetry/metrics"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRetryPolicy = retry.Policy{
	MaxAttempts: 3,
	Backoff: func(int) time.Duration {
		return time.Millisecond
	},
}

func newTestRepo(store rowstore.Store) *Repo {
	return NewRepo(
		store,
		cache.NewTTLCache("clients", 1, time.Minute, metrics.NewTestManager()),
		dedup.New(),
		testRetryPolicy,
	)
}

func TestRepo_AddAndGet(t *testing.T) {
	ctx := context.Background()
	store := rowstore.NewMemStore()
	repo := newTestRepo(store)

	name := gofakeit.Name()
	added, err := repo.Add(ctx, Client{ID: "c1", Name: name, PlanStartWeekday: "Wednesday"})
	require.NoError(t, err)
	assert.Equal(t, "wednesday", added.PlanStartWeekday)

	c, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, name, c.Name)
	assert.Equal(t, time.Wednesday, c.StartWeekday())

	wd, err := repo.StartWeekday(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, time.Wednesday, wd)
}

func TestRepo_DefaultWeekday(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(rowstore.NewMemStore())

	_, err := repo.Add(ctx, Client{ID: "c2", Name: gofakeit.Name()})
	require.NoError(t, err)

	wd, err := repo.StartWeekday(ctx, "c2")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, wd)
}

func TestRepo_InvalidInput(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(rowstore.NewMemStore())

	_, err := repo.Add(ctx, Client{ID: "c3", PlanStartWeekday: "someday"})
	var validationErr *plan.ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = repo.Get(ctx, " ")
	require.ErrorAs(t, err, &validationErr)
}

func TestRepo_NotFoundIsNotRetried(t *testing.T) {
	ctx := context.Background()
	store := rowstore.NewMemStore()
	var selects atomic.Int32
	store.BeforeSelect = func(ctx context.Context, table string, q rowstore.Query) error {
		selects.Add(1)
		return nil
	}
	repo := newTestRepo(store)

	_, err := repo.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrClientNotFound)
	assert.Equal(t, int32(1), selects.Load())
}

func TestRepo_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	store := rowstore.NewMemStore()
	repo := newTestRepo(store)
	_, err := repo.Add(ctx, Client{ID: "c4", PlanStartWeekday: "friday"})
	require.NoError(t, err)
	repo.Invalidate("c4")

	var selects atomic.Int32
	store.BeforeSelect = func(ctx context.Context, table string, q rowstore.Query) error {
		if selects.Add(1) < 3 {
			return errors.New("connection reset")
		}
		return nil
	}

	wd, err := repo.StartWeekday(ctx, "c4")
	require.NoError(t, err)
	assert.Equal(t, time.Friday, wd)
	assert.Equal(t, int32(3), selects.Load())
}

func TestRepo_CachesAndCollapsesLookups(t *testing.T) {
	ctx := context.Background()
	store := rowstore.NewMemStore()
	repo := newTestRepo(store)
	_, err := repo.Add(ctx, Client{ID: "c5", PlanStartWeekday: "sunday"})
	require.NoError(t, err)

	var selects atomic.Int32
	release := make(chan struct{})
	store.BeforeSelect = func(ctx context.Context, table string, q rowstore.Query) error {
		selects.Add(1)
		<-release
		return nil
	}

	wg := sync.WaitGroup{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := repo.Get(ctx, "c5")
			assert.NoError(t, err)
			assert.Equal(t, time.Sunday, c.StartWeekday())
		}()
	}

	require.Eventually(t, func() bool {
		return selects.Load() == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	_, err = repo.Get(ctx, "c5")
	require.NoError(t, err)
	assert.LessOrEqual(t, selects.Load(), int32(2))
}
