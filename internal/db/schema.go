package db

import (
	"context"
	"fmt"

	"github.com/2beens/planbuilder/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Schema creates the plan tables. Statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS client
(
    client_id          VARCHAR PRIMARY KEY,
    name               VARCHAR     NOT NULL DEFAULT '',
    plan_start_weekday VARCHAR     NOT NULL DEFAULT 'monday',
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS schedule_preview
(
    id           BIGSERIAL PRIMARY KEY,
    client_id    VARCHAR     NOT NULL,
    type         VARCHAR     NOT NULL,
    task         VARCHAR     NOT NULL,
    icon         VARCHAR     NOT NULL DEFAULT '',
    summary      VARCHAR     NOT NULL DEFAULT '',
    for_date     DATE        NOT NULL,
    for_time     TIME        NOT NULL DEFAULT '08:00:00',
    workout_id   UUID        NOT NULL,
    details_json JSONB       NOT NULL DEFAULT '{}',
    is_approved  BOOLEAN     NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT ux_schedule_preview_client_date_type UNIQUE (client_id, for_date, type)
);

CREATE INDEX IF NOT EXISTS ix_schedule_preview_client_date ON schedule_preview (client_id, for_date);

CREATE TABLE IF NOT EXISTS schedule
(
    id           BIGSERIAL PRIMARY KEY,
    client_id    VARCHAR     NOT NULL,
    type         VARCHAR     NOT NULL,
    task         VARCHAR     NOT NULL,
    icon         VARCHAR     NOT NULL DEFAULT '',
    summary      VARCHAR     NOT NULL DEFAULT '',
    for_date     DATE        NOT NULL,
    for_time     TIME        NOT NULL DEFAULT '08:00:00',
    workout_id   UUID        NOT NULL,
    details_json JSONB       NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT ux_schedule_client_date_type_task UNIQUE (client_id, for_date, type, task)
);

CREATE INDEX IF NOT EXISTS ix_schedule_client_date ON schedule (client_id, for_date);

CREATE TABLE IF NOT EXISTS exercises_raw
(
    id         BIGSERIAL PRIMARY KEY,
    exercise   VARCHAR NOT NULL,
    category   VARCHAR NOT NULL DEFAULT '',
    body_part  VARCHAR NOT NULL DEFAULT '',
    equipment  VARCHAR NOT NULL DEFAULT '',
    video_link VARCHAR NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS workout_plan_templates
(
    id            UUID PRIMARY KEY,
    name          VARCHAR     NOT NULL,
    tags          JSONB       NOT NULL DEFAULT '[]',
    duration      VARCHAR     NOT NULL,
    template_json JSONB       NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "db.ensureSchema")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	log.Debugln("db schema in place")
	return nil
}
