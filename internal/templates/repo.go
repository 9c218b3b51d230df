package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/planbuilder/internal/plan"
	"github.com/2beens/planbuilder/internal/rowstore"
	"github.com/2beens/planbuilder/internal/telemetry/tracing"

	"github.com/google/uuid"
)

var ErrTemplateNotFound = errors.New("template not found")

type Stored struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Template  *Template `json:"template"`
}

type Repo struct {
	store rowstore.Store
}

func NewRepo(store rowstore.Store) *Repo {
	return &Repo{
		store: store,
	}
}

func (r *Repo) Save(ctx context.Context, name string, tpl *Template) (_ *Stored, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "templatesRepo.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if strings.TrimSpace(name) == "" {
		return nil, plan.NewValidationError("name", "empty")
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	rows, err := r.store.Insert(ctx, rowstore.TableTemplates, rowstore.Row{
		"id":            uuid.New().String(),
		"name":          name,
		"tags":          tpl.Tags,
		"duration":      tpl.Duration,
		"template_json": tpl,
	})
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}

	return row2Stored(rows[0])
}

func (r *Repo) Get(ctx context.Context, id string) (_ *Stored, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "templatesRepo.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTemplateNotFound
	}

	rows, err := r.store.Select(ctx, rowstore.TableTemplates, rowstore.Where().Eq("id", id).Limit(1))
	if err != nil {
		return nil, fmt.Errorf("select template: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrTemplateNotFound
	}

	return row2Stored(rows[0])
}

func (r *Repo) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "templatesRepo.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := uuid.Parse(id); err != nil {
		return ErrTemplateNotFound
	}

	deleted, err := r.store.Delete(ctx, rowstore.TableTemplates, rowstore.Where().Eq("id", id))
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if deleted == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func row2Stored(row rowstore.Row) (*Stored, error) {
	raw, err := json.Marshal(row["template_json"])
	if err != nil {
		return nil, fmt.Errorf("marshal template_json: %w", err)
	}
	if s, ok := row["template_json"].(string); ok {
		raw = []byte(s)
	}

	tpl := &Template{}
	if err := json.Unmarshal(raw, tpl); err != nil {
		return nil, fmt.Errorf("unmarshal template_json: %w", err)
	}

	stored := &Stored{
		ID:       row.String("id"),
		Name:     row.String("name"),
		Template: tpl,
	}
	if createdAt, err := time.Parse(time.RFC3339Nano, row.String("created_at")); err == nil {
		stored.CreatedAt = createdAt
	}
	return stored, nil
}
