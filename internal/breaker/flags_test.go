package breaker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisFlagStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisFlagStore(db, DefaultCooldown)
	ctx := context.Background()

	mock.ExpectGet(flagKeyPrefix + "save").SetErr(redis.Nil)
	_, ok, err := store.LastTimeout(ctx, "save")
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.UnixMilli(time.Now().UnixMilli())
	mock.ExpectSet(flagKeyPrefix+"save", at.UnixMilli(), DefaultCooldown).SetVal("OK")
	require.NoError(t, store.RecordTimeout(ctx, "save", at))

	mock.ExpectGet(flagKeyPrefix + "save").SetVal(fmt.Sprintf("%d", at.UnixMilli()))
	got, ok, err := store.LastTimeout(ctx, "save")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, at.Equal(got))

	mock.ExpectGet(flagKeyPrefix + "save").SetVal("not a number")
	_, _, err = store.LastTimeout(ctx, "save")
	require.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
