package rowstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/2beens/planbuilder/internal/telemetry/tracing"
	"github.com/2beens/planbuilder/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on top of a pgx pool. Rows are read back
// as JSON objects (to_jsonb) so every table maps onto Row the same way.
type PostgresStore struct {
	db      *pgxpool.Pool
	schemas map[string]TableSchema
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db:      db,
		schemas: Schemas,
	}
}

func (s *PostgresStore) Select(ctx context.Context, table string, q Query) (_ []Row, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "rowstore.pg.select")
	span.SetAttributes(attribute.String("table", table))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	schema, err := schemaFor(s.schemas, table)
	if err != nil {
		return nil, err
	}

	args := &sqlArgs{}
	where, err := whereClause(schema, q.Filters, args)
	if err != nil {
		return nil, err
	}
	orderBy, err := orderClause(schema, q.OrderBy)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT to_jsonb(t) FROM %s AS t%s%s", ident(table), where, orderBy)
	if q.Max > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.Max)
	}

	rows, err := s.db.Query(ctx, sql, args.values...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	return scanJSONRows(rows)
}

func (s *PostgresStore) Insert(ctx context.Context, table string, rows ...Row) (_ []Row, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "rowstore.pg.insert")
	span.SetAttributes(attribute.String("table", table), attribute.Int("rows", len(rows)))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	schema, err := schemaFor(s.schemas, table)
	if err != nil {
		return nil, err
	}

	inserted := make([]Row, 0, len(rows))
	for _, row := range rows {
		columns, placeholders, args, err := insertParts(schema, row)
		if err != nil {
			return inserted, err
		}

		sql := fmt.Sprintf(
			"INSERT INTO %s AS t (%s) VALUES (%s) RETURNING to_jsonb(t)",
			ident(table), strings.Join(columns, ", "), strings.Join(placeholders, ", "),
		)

		var raw []byte
		if err := s.db.QueryRow(ctx, sql, args.values...).Scan(&raw); err != nil {
			return inserted, fmt.Errorf("insert %s: %w", table, mapPgError(err))
		}

		r, err := decodeRow(raw)
		if err != nil {
			return inserted, err
		}
		inserted = append(inserted, r)
	}

	return inserted, nil
}

func (s *PostgresStore) Update(ctx context.Context, table string, q Query, values Row) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "rowstore.pg.update")
	span.SetAttributes(attribute.String("table", table))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	schema, err := schemaFor(s.schemas, table)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, errors.New("update without values")
	}

	args := &sqlArgs{}
	var sets []string
	for _, column := range sortedColumns(values) {
		ct, err := schema.columnType(column)
		if err != nil {
			return 0, err
		}
		placeholder, err := args.add(values[column], ct)
		if err != nil {
			return 0, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", ident(column), placeholder))
	}

	where, err := whereClause(schema, q.Filters, args)
	if err != nil {
		return 0, err
	}

	sql := fmt.Sprintf("UPDATE %s AS t SET %s%s", ident(table), strings.Join(sets, ", "), where)
	tag, err := s.db.Exec(ctx, sql, args.values...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, mapPgError(err))
	}

	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Upsert(ctx context.Context, table string, conflict []string, rows ...Row) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "rowstore.pg.upsert")
	span.SetAttributes(attribute.String("table", table), attribute.Int("rows", len(rows)))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	schema, err := schemaFor(s.schemas, table)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	conflictIdents := make([]string, 0, len(conflict))
	isConflictColumn := make(map[string]bool, len(conflict))
	for _, column := range conflict {
		if _, err := schema.columnType(column); err != nil {
			return err
		}
		conflictIdents = append(conflictIdents, ident(column))
		isConflictColumn[column] = true
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		columns, placeholders, args, err := insertParts(schema, row)
		if err != nil {
			return err
		}

		var updates []string
		for _, column := range sortedColumns(row) {
			if isConflictColumn[column] {
				continue
			}
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", ident(column), ident(column)))
		}

		onConflict := "DO NOTHING"
		if len(updates) > 0 {
			onConflict = "DO UPDATE SET " + strings.Join(updates, ", ")
		}

		batch.Queue(fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
			ident(table),
			strings.Join(columns, ", "),
			strings.Join(placeholders, ", "),
			strings.Join(conflictIdents, ", "),
			onConflict,
		), args.values...)
	}

	results := s.db.SendBatch(ctx, batch)
	defer func() {
		if closeErr := results.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close upsert batch: %w", closeErr)
		}
	}()

	for i := range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert %s row %d: %w", table, i, mapPgError(err))
		}
	}

	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, table string, q Query) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "rowstore.pg.delete")
	span.SetAttributes(attribute.String("table", table))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	schema, err := schemaFor(s.schemas, table)
	if err != nil {
		return 0, err
	}

	args := &sqlArgs{}
	where, err := whereClause(schema, q.Filters, args)
	if err != nil {
		return 0, err
	}

	tag, err := s.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s AS t%s", ident(table), where), args.values...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}

	return tag.RowsAffected(), nil
}

// sqlArgs collects positional arguments. Every value is bound as text (or
// boolean / bigint) and cast in SQL, so Go strings work for date, time and
// uuid columns alike.
type sqlArgs struct {
	values []any
}

func (a *sqlArgs) add(value any, ct ColumnType) (string, error) {
	encoded, err := encodeValue(value, ct)
	if err != nil {
		return "", err
	}
	a.values = append(a.values, encoded)
	n := len(a.values)

	switch ct {
	case TypeBool:
		return fmt.Sprintf("$%d::boolean", n), nil
	case TypeInt:
		return fmt.Sprintf("$%d::bigint", n), nil
	case TypeText:
		return fmt.Sprintf("$%d::text", n), nil
	default:
		return fmt.Sprintf("$%d::text::%s", n, ct), nil
	}
}

func encodeValue(value any, ct ColumnType) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch ct {
	case TypeBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			return v == "true" || v == "t", nil
		}
		return nil, fmt.Errorf("value %v is not a boolean", value)
	case TypeInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case float64:
			return int64(v), nil
		case json.Number:
			return v.Int64()
		}
		return nil, fmt.Errorf("value %v is not an integer", value)
	case TypeJSONB:
		switch v := value.(type) {
		case json.RawMessage:
			return string(v), nil
		case []byte:
			return string(v), nil
		case string:
			return v, nil
		}
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal jsonb value: %w", err)
		}
		return string(b), nil
	case TypeTimestamp:
		if t, ok := value.(time.Time); ok {
			return t.UTC().Format(time.RFC3339Nano), nil
		}
		return fmt.Sprint(value), nil
	default:
		if s, ok := value.(fmt.Stringer); ok {
			return s.String(), nil
		}
		return fmt.Sprint(value), nil
	}
}

func whereClause(schema TableSchema, filters []Filter, args *sqlArgs) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}

	conditions := make([]string, 0, len(filters))
	for _, f := range filters {
		ct, err := schema.columnType(f.Column)
		if err != nil {
			return "", err
		}
		switch f.Op {
		case OpEq, OpGte, OpLte:
		default:
			return "", fmt.Errorf("unsupported filter op [%s]", f.Op)
		}
		placeholder, err := args.add(f.Value, ct)
		if err != nil {
			return "", err
		}
		conditions = append(conditions, fmt.Sprintf("t.%s %s %s", ident(f.Column), f.Op, placeholder))
	}

	return " WHERE " + strings.Join(conditions, " AND "), nil
}

func orderClause(schema TableSchema, orderBy []Order) (string, error) {
	if len(orderBy) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(orderBy))
	for _, o := range orderBy {
		if _, err := schema.columnType(o.Column); err != nil {
			return "", err
		}
		direction := "ASC"
		if o.Desc {
			direction = "DESC"
		}
		parts = append(parts, fmt.Sprintf("t.%s %s", ident(o.Column), direction))
	}

	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func insertParts(schema TableSchema, row Row) (columns, placeholders []string, args *sqlArgs, err error) {
	args = &sqlArgs{}
	for _, column := range sortedColumns(row) {
		if column == schema.Serial {
			continue
		}
		ct, err := schema.columnType(column)
		if err != nil {
			return nil, nil, nil, err
		}
		placeholder, err := args.add(row[column], ct)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("column %s: %w", column, err)
		}
		columns = append(columns, ident(column))
		placeholders = append(placeholders, placeholder)
	}
	if len(columns) == 0 {
		return nil, nil, nil, errors.New("insert without columns")
	}
	return columns, placeholders, args, nil
}

func scanJSONRows(rows pgx.Rows) ([]Row, error) {
	result := make([]Row, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("rows scan: %w", err)
		}
		r, err := decodeRow(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func decodeRow(raw []byte) (Row, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	r := Row{}
	if err := decoder.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return r, nil
}

func mapPgError(err error) error {
	if pkg.IsUniqueViolationError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pkg.ConstraintName(err))
	}
	return err
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func sortedColumns(row Row) []string {
	columns := make([]string, 0, len(row))
	for column := range row {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}
