package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func previewRow(clientID, date string, approved bool) Row {
	return Row{
		"client_id":    clientID,
		"type":         "workout",
		"task":         "workout",
		"summary":      "Legs",
		"for_date":     date,
		"for_time":     "08:00:00",
		"workout_id":   "6f1d8a2e-52a5-4c1e-9f0a-2c6d7c1e0b11",
		"details_json": `{"focus":"Legs","exercises":[]}`,
		"is_approved":  approved,
	}
}

func TestMemStore_InsertSelect(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	inserted, err := store.Insert(ctx, TablePreview,
		previewRow("c1", "2025-01-07", false),
		previewRow("c1", "2025-01-06", true),
		previewRow("c2", "2025-01-06", false),
	)
	require.NoError(t, err)
	require.Len(t, inserted, 3)
	assert.Equal(t, int64(1), inserted[0].Int64("id"))
	assert.Equal(t, int64(3), inserted[2].Int64("id"))
	assert.NotEmpty(t, inserted[0].String("created_at"))

	details, ok := inserted[0]["details_json"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Legs", details["focus"])

	rows, err := store.Select(ctx, TablePreview,
		Where().Eq("client_id", "c1").Gte("for_date", "2025-01-01").Lte("for_date", "2025-01-31").Order("for_date", false),
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-01-06", rows[0].String("for_date"))
	assert.True(t, rows[0].Bool("is_approved"))
	assert.Equal(t, "2025-01-07", rows[1].String("for_date"))

	rows, err = store.Select(ctx, TablePreview, Where().Order("id", true).Limit(1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, json.Number("3"), rows[0]["id"])
	assert.Equal(t, 3, store.Writes(WriteInsert))
}

func TestMemStore_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	_, err := store.Insert(ctx, TablePreview, previewRow("c1", "2025-01-06", false))
	require.NoError(t, err)

	_, err = store.Insert(ctx, TablePreview, previewRow("c1", "2025-01-06", true))
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Len(t, store.Rows(TablePreview), 1)
}

func TestMemStore_UnknownTableAndColumn(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	_, err := store.Select(ctx, "nope", Where())
	require.ErrorIs(t, err, ErrUnknownTable)

	_, err = store.Select(ctx, TablePreview, Where().Eq("nope", 1))
	require.ErrorIs(t, err, ErrUnknownColumn)

	_, err = store.Insert(ctx, TableClient, Row{"client_id": "c1", "age": 3})
	require.ErrorIs(t, err, ErrUnknownColumn)
}

func TestMemStore_Update(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	_, err := store.Insert(ctx, TablePreview,
		previewRow("c1", "2025-01-06", false),
		previewRow("c1", "2025-01-07", false),
		previewRow("c1", "2025-01-20", false),
	)
	require.NoError(t, err)

	affected, err := store.Update(ctx, TablePreview,
		Where().Eq("client_id", "c1").Gte("for_date", "2025-01-06").Lte("for_date", "2025-01-12"),
		Row{"is_approved": true},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	rows, err := store.Select(ctx, TablePreview, Where().Eq("is_approved", true))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMemStore_Upsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	conflict := []string{"client_id", "for_date", "type", "task"}

	row := previewRow("c1", "2025-01-06", false)
	delete(row, "is_approved")
	require.NoError(t, store.Upsert(ctx, TableSchedule, conflict, row))

	row["summary"] = "Push"
	require.NoError(t, store.Upsert(ctx, TableSchedule, conflict, row))

	rows := store.Rows(TableSchedule)
	require.Len(t, rows, 1)
	assert.Equal(t, "Push", rows[0].String("summary"))
	assert.Equal(t, int64(1), rows[0].Int64("id"))
	assert.Equal(t, 2, store.Writes(WriteUpsert))
}

func TestMemStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	_, err := store.Insert(ctx, TablePreview,
		previewRow("c1", "2025-01-06", false),
		previewRow("c2", "2025-01-06", false),
	)
	require.NoError(t, err)

	deleted, err := store.Delete(ctx, TablePreview, Where().Eq("client_id", "c1"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	rows := store.Rows(TablePreview)
	require.Len(t, rows, 1)
	assert.Equal(t, "c2", rows[0].String("client_id"))
}

func TestMemStore_Hooks(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	failure := errors.New("write refused")

	store.BeforeWrite = func(op WriteOp, table string, row Row) error {
		if row.String("for_date") == "2025-01-07" {
			return failure
		}
		return nil
	}

	_, err := store.Insert(ctx, TablePreview, previewRow("c1", "2025-01-06", false))
	require.NoError(t, err)
	_, err = store.Insert(ctx, TablePreview, previewRow("c1", "2025-01-07", false))
	require.ErrorIs(t, err, failure)
	assert.Len(t, store.Rows(TablePreview), 1)

	store.BeforeSelect = func(ctx context.Context, table string, q Query) error {
		return failure
	}
	_, err = store.Select(ctx, TablePreview, Where())
	require.ErrorIs(t, err, failure)
}

func TestMemStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemStore()
	_, err := store.Select(ctx, TablePreview, Where())
	require.ErrorIs(t, err, context.Canceled)
	_, err = store.Insert(ctx, TablePreview, previewRow("c1", "2025-01-06", false))
	require.ErrorIs(t, err, context.Canceled)
}

func TestQuery_Immutable(t *testing.T) {
	base := Where().Eq("client_id", "c1")
	a := base.Eq("for_date", "2025-01-06")
	b := base.Eq("for_date", "2025-01-07")

	assert.Len(t, base.Filters, 1)
	assert.Equal(t, "2025-01-06", a.Filters[1].Value)
	assert.Equal(t, "2025-01-07", b.Filters[1].Value)
	assert.Equal(t, "client_id = c1 AND for_date = 2025-01-06", a.String())
}
