package rowstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type WriteOp string

const (
	WriteInsert WriteOp = "insert"
	WriteUpdate WriteOp = "update"
	WriteUpsert WriteOp = "upsert"
	WriteDelete WriteOp = "delete"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-process Store with the same value shapes as
// PostgresStore: integers come back as json.Number, dates and times as
// strings, jsonb columns as decoded JSON values.
type MemStore struct {
	mutex   sync.Mutex
	schemas map[string]TableSchema
	tables  map[string][]Row
	nextID  map[string]int64
	writes  map[WriteOp]int
	now     func() time.Time

	// BeforeSelect runs before every select, outside the store lock.
	BeforeSelect func(ctx context.Context, table string, q Query) error
	// BeforeWrite runs for every affected row; a non nil error fails that row.
	// For updates and deletes it receives the stored row prior to the change.
	BeforeWrite func(op WriteOp, table string, row Row) error
}

func NewMemStore() *MemStore {
	return &MemStore{
		schemas: Schemas,
		tables:  make(map[string][]Row),
		nextID:  make(map[string]int64),
		writes:  make(map[WriteOp]int),
		now:     time.Now,
	}
}

// Writes returns how many rows were written with the given op.
func (s *MemStore) Writes(op WriteOp) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.writes[op]
}

func (s *MemStore) ResetWrites() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.writes = make(map[WriteOp]int)
}

// Rows returns a copy of every row currently stored in table.
func (s *MemStore) Rows(table string) []Row {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	rows := make([]Row, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		rows = append(rows, r.Clone())
	}
	return rows
}

func (s *MemStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if s.BeforeSelect != nil {
		if err := s.BeforeSelect(ctx, table, q); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	schema, err := schemaFor(s.schemas, table)
	if err != nil {
		return nil, err
	}

	matched, err := s.match(schema, table, q.Filters)
	if err != nil {
		return nil, err
	}

	result := make([]Row, 0, len(matched))
	for _, i := range matched {
		result = append(result, s.tables[table][i].Clone())
	}

	if len(q.OrderBy) > 0 {
		for _, o := range q.OrderBy {
			if _, err := schema.columnType(o.Column); err != nil {
				return nil, err
			}
		}
		sort.SliceStable(result, func(i, j int) bool {
			for _, o := range q.OrderBy {
				ct := schema.Columns[o.Column]
				c := compareValues(result[i][o.Column], result[j][o.Column], ct)
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Max > 0 && len(result) > q.Max {
		result = result[:q.Max]
	}

	return result, nil
}

func (s *MemStore) Insert(ctx context.Context, table string, rows ...Row) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	schema, err := schemaFor(s.schemas, table)
	if err != nil {
		return nil, err
	}

	inserted := make([]Row, 0, len(rows))
	for _, row := range rows {
		normalized, err := s.prepare(schema, row)
		if err != nil {
			return inserted, err
		}
		if s.BeforeWrite != nil {
			if err := s.BeforeWrite(WriteInsert, table, normalized.Clone()); err != nil {
				return inserted, err
			}
		}
		if conflict := s.conflicting(schema, table, normalized, -1); conflict >= 0 {
			return inserted, fmt.Errorf("%w: %s", ErrDuplicateKey, table)
		}
		s.assignDefaults(schema, table, normalized)
		s.tables[table] = append(s.tables[table], normalized)
		s.writes[WriteInsert]++
		inserted = append(inserted, normalized.Clone())
	}

	return inserted, nil
}

func (s *MemStore) Update(ctx context.Context, table string, q Query, values Row) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	schema, err := schemaFor(s.schemas, table)
	if err != nil {
		return 0, err
	}
	normalized, err := s.prepare(schema, values)
	if err != nil {
		return 0, err
	}

	matched, err := s.match(schema, table, q.Filters)
	if err != nil {
		return 0, err
	}

	var affected int64
	for _, i := range matched {
		existing := s.tables[table][i]
		if s.BeforeWrite != nil {
			if err := s.BeforeWrite(WriteUpdate, table, existing.Clone()); err != nil {
				return affected, err
			}
		}
		updated := existing.Clone()
		for column, value := range normalized {
			updated[column] = value
		}
		if conflict := s.conflicting(schema, table, updated, i); conflict >= 0 {
			return affected, fmt.Errorf("%w: %s", ErrDuplicateKey, table)
		}
		s.tables[table][i] = updated
		s.writes[WriteUpdate]++
		affected++
	}

	return affected, nil
}

func (s *MemStore) Upsert(ctx context.Context, table string, conflict []string, rows ...Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	schema, err := schemaFor(s.schemas, table)
	if err != nil {
		return err
	}
	for _, column := range conflict {
		if _, err := schema.columnType(column); err != nil {
			return err
		}
	}

	for _, row := range rows {
		normalized, err := s.prepare(schema, row)
		if err != nil {
			return err
		}
		if s.BeforeWrite != nil {
			if err := s.BeforeWrite(WriteUpsert, table, normalized.Clone()); err != nil {
				return err
			}
		}

		existing := s.findByColumns(table, conflict, normalized)
		if existing < 0 {
			s.assignDefaults(schema, table, normalized)
			s.tables[table] = append(s.tables[table], normalized)
		} else {
			updated := s.tables[table][existing].Clone()
			for column, value := range normalized {
				if column == schema.Serial {
					continue
				}
				updated[column] = value
			}
			s.tables[table][existing] = updated
		}
		s.writes[WriteUpsert]++
	}

	return nil
}

func (s *MemStore) Delete(ctx context.Context, table string, q Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	schema, err := schemaFor(s.schemas, table)
	if err != nil {
		return 0, err
	}

	matched, err := s.match(schema, table, q.Filters)
	if err != nil {
		return 0, err
	}

	remove := make(map[int]bool, len(matched))
	for _, i := range matched {
		if s.BeforeWrite != nil {
			if err := s.BeforeWrite(WriteDelete, table, s.tables[table][i].Clone()); err != nil {
				return 0, err
			}
		}
		remove[i] = true
	}

	kept := s.tables[table][:0:0]
	for i, r := range s.tables[table] {
		if !remove[i] {
			kept = append(kept, r)
		}
	}
	s.tables[table] = kept
	s.writes[WriteDelete] += len(remove)

	return int64(len(remove)), nil
}

func (s *MemStore) prepare(schema TableSchema, row Row) (Row, error) {
	normalized := make(Row, len(row))
	for column, value := range row {
		ct, err := schema.columnType(column)
		if err != nil {
			return nil, err
		}
		v, err := normalizeValue(value, ct)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", column, err)
		}
		normalized[column] = v
	}
	return normalized, nil
}

func (s *MemStore) assignDefaults(schema TableSchema, table string, row Row) {
	if schema.Serial != "" {
		s.nextID[table]++
		row[schema.Serial] = json.Number(strconv.FormatInt(s.nextID[table], 10))
	}
	if _, ok := schema.Columns["created_at"]; ok && row["created_at"] == nil {
		row["created_at"] = s.now().UTC().Format(time.RFC3339Nano)
	}
}

func (s *MemStore) match(schema TableSchema, table string, filters []Filter) ([]int, error) {
	normalized := make([]Filter, 0, len(filters))
	for _, f := range filters {
		ct, err := schema.columnType(f.Column)
		if err != nil {
			return nil, err
		}
		v, err := normalizeValue(f.Value, ct)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, Filter{Column: f.Column, Op: f.Op, Value: v})
	}

	var matched []int
rows:
	for i, r := range s.tables[table] {
		for _, f := range normalized {
			c := compareValues(r[f.Column], f.Value, schema.Columns[f.Column])
			switch f.Op {
			case OpEq:
				if c != 0 {
					continue rows
				}
			case OpGte:
				if c < 0 {
					continue rows
				}
			case OpLte:
				if c > 0 {
					continue rows
				}
			default:
				return nil, fmt.Errorf("unsupported filter op [%s]", f.Op)
			}
		}
		matched = append(matched, i)
	}
	return matched, nil
}

// conflicting returns the index of a row other than skip that shares a
// unique key with row, or -1.
func (s *MemStore) conflicting(schema TableSchema, table string, row Row, skip int) int {
	for _, key := range schema.Unique {
		if i := s.findByColumns(table, key, row); i >= 0 && i != skip {
			return i
		}
	}
	return -1
}

func (s *MemStore) findByColumns(table string, columns []string, row Row) int {
	if len(columns) == 0 {
		return -1
	}
	for i, existing := range s.tables[table] {
		same := true
		for _, column := range columns {
			if fmt.Sprint(existing[column]) != fmt.Sprint(row[column]) {
				same = false
				break
			}
		}
		if same {
			return i
		}
	}
	return -1
}

func normalizeValue(value any, ct ColumnType) (any, error) {
	if value == nil {
		return nil, nil
	}

	encoded, err := encodeValue(value, ct)
	if err != nil {
		return nil, err
	}

	switch ct {
	case TypeBool:
		return encoded, nil
	case TypeInt:
		return json.Number(strconv.FormatInt(encoded.(int64), 10)), nil
	case TypeJSONB:
		decoder := json.NewDecoder(bytes.NewReader([]byte(encoded.(string))))
		decoder.UseNumber()
		var v any
		if err := decoder.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode jsonb value: %w", err)
		}
		return v, nil
	default:
		return encoded, nil
	}
}

func compareValues(a, b any, ct ColumnType) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	switch ct {
	case TypeInt:
		x, _ := strconv.ParseInt(fmt.Sprint(a), 10, 64)
		y, _ := strconv.ParseInt(fmt.Sprint(b), 10, 64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case TypeBool:
		x, y := fmt.Sprint(a) == "true", fmt.Sprint(b) == "true"
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}
