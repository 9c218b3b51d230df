package rowstore

import "fmt"

type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInt       ColumnType = "bigint"
	TypeBool      ColumnType = "boolean"
	TypeDate      ColumnType = "date"
	TypeTime      ColumnType = "time"
	TypeTimestamp ColumnType = "timestamptz"
	TypeUUID      ColumnType = "uuid"
	TypeJSONB     ColumnType = "jsonb"
)

// TableSchema lists the columns a store accepts for a table. Column names
// are only ever taken from here when building SQL.
type TableSchema struct {
	Name    string
	Columns map[string]ColumnType
	// Serial is the auto generated id column, if any.
	Serial string
	// Unique holds the unique keys enforced by the table.
	Unique [][]string
}

var previewColumns = map[string]ColumnType{
	"id":           TypeInt,
	"client_id":    TypeText,
	"type":         TypeText,
	"task":         TypeText,
	"icon":         TypeText,
	"summary":      TypeText,
	"for_date":     TypeDate,
	"for_time":     TypeTime,
	"workout_id":   TypeUUID,
	"details_json": TypeJSONB,
	"is_approved":  TypeBool,
	"created_at":   TypeTimestamp,
}

var scheduleColumns = map[string]ColumnType{
	"id":           TypeInt,
	"client_id":    TypeText,
	"type":         TypeText,
	"task":         TypeText,
	"icon":         TypeText,
	"summary":      TypeText,
	"for_date":     TypeDate,
	"for_time":     TypeTime,
	"workout_id":   TypeUUID,
	"details_json": TypeJSONB,
	"created_at":   TypeTimestamp,
}

var Schemas = map[string]TableSchema{
	TablePreview: {
		Name:    TablePreview,
		Columns: previewColumns,
		Serial:  "id",
		Unique:  [][]string{{"client_id", "for_date", "type"}},
	},
	TableSchedule: {
		Name:    TableSchedule,
		Columns: scheduleColumns,
		Serial:  "id",
		Unique:  [][]string{{"client_id", "for_date", "type", "task"}},
	},
	TableClient: {
		Name: TableClient,
		Columns: map[string]ColumnType{
			"client_id":          TypeText,
			"name":               TypeText,
			"plan_start_weekday": TypeText,
			"created_at":         TypeTimestamp,
		},
		Unique: [][]string{{"client_id"}},
	},
	TableExercises: {
		Name: TableExercises,
		Columns: map[string]ColumnType{
			"id":         TypeInt,
			"exercise":   TypeText,
			"category":   TypeText,
			"body_part":  TypeText,
			"equipment":  TypeText,
			"video_link": TypeText,
		},
		Serial: "id",
	},
	TableTemplates: {
		Name: TableTemplates,
		Columns: map[string]ColumnType{
			"id":            TypeUUID,
			"name":          TypeText,
			"tags":          TypeJSONB,
			"duration":      TypeText,
			"template_json": TypeJSONB,
			"created_at":    TypeTimestamp,
		},
		Unique: [][]string{{"id"}},
	},
}

func schemaFor(schemas map[string]TableSchema, table string) (TableSchema, error) {
	s, ok := schemas[table]
	if !ok {
		return TableSchema{}, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return s, nil
}

func (s TableSchema) columnType(column string) (ColumnType, error) {
	ct, ok := s.Columns[column]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownColumn, s.Name, column)
	}
	return ct, nil
}
