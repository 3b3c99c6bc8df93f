// Package remote is the Postgres mirror of every user's activities and time
// entries. Rows are written with id-keyed upserts; the last writer wins.
package remote

import (
	"context"
	"fmt"
	"slices"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"workingonit/backend/internal/model"
)

const (
	activitiesTable  = "activity_labels"
	timeEntriesTable = "time_entries"

	// upsertBatchRows caps the rows per INSERT so a statement stays far below
	// the 65535 bind parameters the extended protocol allows.
	upsertBatchRows = 1000
)

var (
	activityColumns = []string{"id", "user_id", "name", "color", "sphere", "created_at", "project_id"}
	entryColumns    = []string{
		"id", "user_id", "activity_id", "start_time", "end_time",
		"duration_minutes", "duration_ms", "paused_ms", "feeling_rating", "note", "created_at",
	}
)

// Querier is satisfied by *pgxpool.Pool and by pgxmock pools.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Postgres struct {
	q       Querier
	builder sq.StatementBuilderType
}

func NewPostgres(q Querier) *Postgres {
	return &Postgres{
		q:       q,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (p *Postgres) UpsertActivities(ctx context.Context, userID string, items []model.Activity) error {
	if len(items) == 0 {
		return nil
	}

	for batch := range slices.Chunk(items, upsertBatchRows) {
		insert := p.builder.Insert(activitiesTable).Columns(activityColumns...)
		for _, a := range batch {
			insert = insert.Values(a.ID, userID, a.Name, a.Color, string(a.Sphere), a.CreatedAt.UTC(), a.ProjectID)
		}
		insert = insert.Suffix(upsertSuffix(activityColumns))

		if err := p.exec(ctx, insert, "upsert activities"); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) UpsertTimeEntries(ctx context.Context, userID string, items []model.TimeEntry) error {
	if len(items) == 0 {
		return nil
	}

	for batch := range slices.Chunk(items, upsertBatchRows) {
		insert := p.builder.Insert(timeEntriesTable).Columns(entryColumns...)
		for _, e := range batch {
			insert = insert.Values(
				e.ID,
				userID,
				e.ActivityID,
				e.StartTime.UTC(),
				e.EndTime.UTC(),
				e.DurationMinutes,
				e.DurationMs,
				e.PausedMs,
				e.FeelingRating,
				e.Note,
				e.CreatedAt.UTC(),
			)
		}
		insert = insert.Suffix(upsertSuffix(entryColumns))

		if err := p.exec(ctx, insert, "upsert time entries"); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) ListActivities(ctx context.Context, userID string) ([]model.Activity, error) {
	query := p.builder.
		Select(activityColumns...).
		From(activitiesTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list activities: %w", err)
	}

	rows, err := p.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	items := make([]model.Activity, 0)
	for rows.Next() {
		var a model.Activity
		var sphere string
		var createdAt time.Time
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Color, &sphere, &createdAt, &a.ProjectID); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		parsed, ok := model.ParseSphere(sphere)
		if !ok {
			parsed = model.DefaultSphere
		}
		a.Sphere = parsed
		a.CreatedAt = createdAt.UTC()
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}
	return items, nil
}

func (p *Postgres) ListTimeEntries(ctx context.Context, userID string) ([]model.TimeEntry, error) {
	query := p.builder.
		Select(entryColumns...).
		From(timeEntriesTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list time entries: %w", err)
	}

	rows, err := p.q.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list time entries: %w", err)
	}
	defer rows.Close()

	items := make([]model.TimeEntry, 0)
	for rows.Next() {
		var e model.TimeEntry
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.ActivityID,
			&e.StartTime,
			&e.EndTime,
			&e.DurationMinutes,
			&e.DurationMs,
			&e.PausedMs,
			&e.FeelingRating,
			&e.Note,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan time entry: %w", err)
		}
		// Rows written by older clients carry minutes only.
		if e.DurationMs == 0 && e.DurationMinutes > 0 {
			e.DurationMs = int64(e.DurationMinutes) * 60000
		}
		e.StartTime = e.StartTime.UTC()
		e.EndTime = e.EndTime.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time entries: %w", err)
	}
	return items, nil
}

func (p *Postgres) exec(ctx context.Context, insert sq.InsertBuilder, op string) error {
	sqlStr, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	if _, err := p.q.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// upsertSuffix overwrites every non-key column on id conflict.
func upsertSuffix(columns []string) string {
	suffix := "ON CONFLICT (id) DO UPDATE SET "
	first := true
	for _, col := range columns {
		if col == "id" {
			continue
		}
		if !first {
			suffix += ", "
		}
		suffix += col + " = EXCLUDED." + col
		first = false
	}
	return suffix
}
