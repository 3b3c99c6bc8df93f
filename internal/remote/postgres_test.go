package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workingonit/backend/internal/model"
)

func newMock(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgres(mock), mock
}

var created = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func TestUpsertActivities(t *testing.T) {
	tests := []struct {
		name    string
		items   []model.Activity
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr bool
	}{
		{
			name:  "empty is a no-op",
			items: nil,
			setup: func(mock pgxmock.PgxPoolIface) {},
		},
		{
			name: "multi-row upsert",
			items: []model.Activity{
				{ID: "a1", Name: "Yoga", Color: "#FF6B6B", Sphere: model.SpherePhysical, CreatedAt: created},
				{ID: "a2", ProjectID: "p1", Name: "Paint", Color: "#A29BFE", Sphere: model.SphereCreative, CreatedAt: created},
			},
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO activity_labels \(id,user_id,name,color,sphere,created_at,project_id\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6,\$7\),\(\$8,\$9,\$10,\$11,\$12,\$13,\$14\) ON CONFLICT \(id\) DO UPDATE SET user_id = EXCLUDED.user_id`).
					WithArgs(
						"a1", "u1", "Yoga", "#FF6B6B", "physical", created, "",
						"a2", "u1", "Paint", "#A29BFE", "creative", created, "p1",
					).
					WillReturnResult(pgxmock.NewResult("INSERT", 2))
			},
		},
		{
			name:  "database error",
			items: []model.Activity{{ID: "a1", Sphere: model.SpherePhysical, CreatedAt: created}},
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO activity_labels`).
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMock(t)
			tt.setup(mock)

			err := repo.UpsertActivities(context.Background(), "u1", tt.items)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpsertTimeEntries(t *testing.T) {
	repo, mock := newMock(t)
	entry := model.TimeEntry{
		ID: "e1", ActivityID: "a1",
		StartTime: created, EndTime: created.Add(90 * time.Second),
		DurationMs: 90000, DurationMinutes: 1, PausedMs: 0,
		FeelingRating: 4, Note: "ok", CreatedAt: created,
	}

	mock.ExpectExec(`INSERT INTO time_entries .* ON CONFLICT \(id\) DO UPDATE SET .*feeling_rating = EXCLUDED.feeling_rating`).
		WithArgs("e1", "u1", "a1", created, created.Add(90*time.Second), 1, int64(90000), int64(0), 4, "ok", created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.UpsertTimeEntries(context.Background(), "u1", []model.TimeEntry{entry}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertTimeEntriesSplitsLargePayloads(t *testing.T) {
	repo, mock := newMock(t)

	entries := make([]model.TimeEntry, 2*upsertBatchRows+500)
	for i := range entries {
		entries[i] = model.TimeEntry{
			ID: fmt.Sprintf("e%d", i), ActivityID: "a1",
			StartTime: created, EndTime: created, FeelingRating: 3, CreatedAt: created,
		}
	}

	// Each statement numbers its placeholders from $1, 11 per row.
	full := `INSERT INTO time_entries .*\$11000\) ON CONFLICT \(id\)`
	mock.ExpectExec(full).WillReturnResult(pgxmock.NewResult("INSERT", upsertBatchRows))
	mock.ExpectExec(full).WillReturnResult(pgxmock.NewResult("INSERT", upsertBatchRows))
	mock.ExpectExec(`INSERT INTO time_entries .*\$5500\) ON CONFLICT \(id\)`).
		WillReturnResult(pgxmock.NewResult("INSERT", 500))

	require.NoError(t, repo.UpsertTimeEntries(context.Background(), "u1", entries))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertActivitiesStopsAtFailedBatch(t *testing.T) {
	repo, mock := newMock(t)

	activities := make([]model.Activity, upsertBatchRows+1)
	for i := range activities {
		activities[i] = model.Activity{ID: fmt.Sprintf("a%d", i), Sphere: model.SphereSocial, CreatedAt: created}
	}

	mock.ExpectExec(`INSERT INTO activity_labels`).WillReturnError(errors.New("connection reset"))

	require.Error(t, repo.UpsertActivities(context.Background(), "u1", activities))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActivities(t *testing.T) {
	repo, mock := newMock(t)

	rows := pgxmock.NewRows(activityColumns).
		AddRow("a2", "u1", "Paint", "#A29BFE", "creative", created.Add(time.Hour), "p1").
		AddRow("a1", "u1", "Mystery", "#000000", "unknown", created, "")
	mock.ExpectQuery(`SELECT id, user_id, name, color, sphere, created_at, project_id FROM activity_labels WHERE user_id = \$1 ORDER BY created_at DESC`).
		WithArgs("u1").
		WillReturnRows(rows)

	items, err := repo.ListActivities(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a2", items[0].ID)
	assert.Equal(t, model.SphereCreative, items[0].Sphere)
	assert.Equal(t, "p1", items[0].ProjectID)
	assert.Equal(t, model.DefaultSphere, items[1].Sphere)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTimeEntries(t *testing.T) {
	repo, mock := newMock(t)

	rows := pgxmock.NewRows(entryColumns).
		AddRow("e1", "u1", "a1", created, created.Add(30*time.Minute), 30, int64(0), int64(0), 5, "", created)
	mock.ExpectQuery(`SELECT .* FROM time_entries WHERE user_id = \$1 ORDER BY created_at DESC`).
		WithArgs("u1").
		WillReturnRows(rows)

	items, err := repo.ListTimeEntries(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(30*60000), items[0].DurationMs, "minutes-only rows are widened")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListTimeEntriesQueryError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(`SELECT`).WithArgs("u1").WillReturnError(errors.New("timeout"))

	_, err := repo.ListTimeEntries(context.Background(), "u1")
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSuffix(t *testing.T) {
	assert.Equal(t,
		"ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, note = EXCLUDED.note",
		upsertSuffix([]string{"id", "name", "note"}),
	)
}
