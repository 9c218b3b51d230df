package rowstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

const (
	TablePreview   = "schedule_preview"
	TableSchedule  = "schedule"
	TableClient    = "client"
	TableExercises = "exercises_raw"
	TableTemplates = "workout_plan_templates"
)

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrDuplicateKey  = errors.New("duplicate key")
)

// Row is a single record keyed by column name.
type Row map[string]any

// Store is the generic request/response row store the plan core talks to.
// Every call is atomic per row only; there are no multi row transactions.
type Store interface {
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, rows ...Row) ([]Row, error)
	Update(ctx context.Context, table string, q Query, values Row) (int64, error)
	Upsert(ctx context.Context, table string, conflict []string, rows ...Row) error
	Delete(ctx context.Context, table string, q Query) (int64, error)
}

type FilterOp string

const (
	OpEq  FilterOp = "="
	OpGte FilterOp = ">="
	OpLte FilterOp = "<="
)

type Filter struct {
	Column string
	Op     FilterOp
	Value  any
}

type Order struct {
	Column string
	Desc   bool
}

// Query composes filters, ordering and limit. The zero value matches every row.
type Query struct {
	Filters []Filter
	OrderBy []Order
	Max     int
}

func Where() Query {
	return Query{}
}

func (q Query) Eq(column string, value any) Query {
	return q.with(Filter{Column: column, Op: OpEq, Value: value})
}

func (q Query) Gte(column string, value any) Query {
	return q.with(Filter{Column: column, Op: OpGte, Value: value})
}

func (q Query) Lte(column string, value any) Query {
	return q.with(Filter{Column: column, Op: OpLte, Value: value})
}

func (q Query) Order(column string, desc bool) Query {
	orderBy := make([]Order, len(q.OrderBy), len(q.OrderBy)+1)
	copy(orderBy, q.OrderBy)
	q.OrderBy = append(orderBy, Order{Column: column, Desc: desc})
	return q
}

func (q Query) Limit(n int) Query {
	q.Max = n
	return q
}

func (q Query) with(f Filter) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, f)
	return q
}

func (q Query) String() string {
	s := ""
	for i, f := range q.Filters {
		if i > 0 {
			s += " AND "
		}
		s += fmt.Sprintf("%s %s %v", f.Column, f.Op, f.Value)
	}
	return s
}

// String returns the column value as a string, or "" when missing.
func (r Row) String(column string) string {
	switch v := r[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func (r Row) Bool(column string) bool {
	switch v := r[column].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "t"
	default:
		return false
	}
}

func (r Row) Clone() Row {
	c := make(Row, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}

// Int64 returns the column value as an integer, or 0 when missing.
func (r Row) Int64(column string) int64 {
	switch v := r[column].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
