// File: internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// flexibleSQLMatcher builds a whitespace-insensitive regex so SQL
// formatting changes do not break expectations.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockedStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return s, mockPool
}

func TestNewStorePingFailure(t *testing.T) {
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = New(context.Background(), mockPool, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveSessionPersistsRowAndStats(t *testing.T) {
	s, mockPool := newMockedStore(t)
	ctx := context.Background()

	rec := SessionRecord{
		ID:         uuid.NewString(),
		Scenario:   "taming-monitor",
		State:      "completed",
		StartedAt:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Tasks: []TaskRecord{
			{Name: "feed-food", Interval: 300 * time.Second, Fired: 12},
			{Name: "feed-narcotic", Interval: 600 * time.Second, Fired: 6},
		},
	}

	mockPool.ExpectBegin()
	mockPool.ExpectExec(flexibleSQLMatcher(`INSERT INTO sessions`)).
		WithArgs(rec.ID, rec.Scenario, rec.State, rec.Error, rec.StartedAt, rec.FinishedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCopyFrom(pgx.Identifier{"session_tasks"},
		[]string{"session_id", "name", "interval_ms", "fired"}).
		WillReturnResult(2)
	mockPool.ExpectCommit()
	mockPool.ExpectRollback() // deferred rollback after commit is a no-op

	require.NoError(t, s.SaveSession(ctx, rec))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveSessionCopyCountMismatch(t *testing.T) {
	s, mockPool := newMockedStore(t)

	rec := SessionRecord{
		ID:         uuid.NewString(),
		Scenario:   "inventory",
		State:      "failed",
		Error:      "element not found",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Tasks:      []TaskRecord{{Name: "tick", Interval: time.Second, Fired: 3}},
	}

	mockPool.ExpectBegin()
	mockPool.ExpectExec(flexibleSQLMatcher(`INSERT INTO sessions`)).
		WithArgs(rec.ID, rec.Scenario, rec.State, rec.Error, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCopyFrom(pgx.Identifier{"session_tasks"},
		[]string{"session_id", "name", "interval_ms", "fired"}).
		WillReturnResult(0)
	mockPool.ExpectRollback()

	err := s.SaveSession(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveSessionWithoutTasksSkipsCopy(t *testing.T) {
	s, mockPool := newMockedStore(t)

	rec := SessionRecord{
		ID:         uuid.NewString(),
		Scenario:   "status-check",
		State:      "cancelled",
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}

	mockPool.ExpectBegin()
	mockPool.ExpectExec(flexibleSQLMatcher(`INSERT INTO sessions`)).
		WithArgs(rec.ID, rec.Scenario, rec.State, rec.Error, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	require.NoError(t, s.SaveSession(context.Background(), rec))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMigrateAppliesSchema(t *testing.T) {
	s, mockPool := newMockedStore(t)

	mockPool.ExpectExec(flexibleSQLMatcher(`CREATE TABLE IF NOT EXISTS sessions`)).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestRecentSessionsScansRows(t *testing.T) {
	s, mockPool := newMockedStore(t)

	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	finished := started.Add(time.Hour)
	id := uuid.NewString()

	rows := pgxmock.NewRows([]string{"id", "scenario", "state", "error", "started_at", "finished_at"}).
		AddRow(id, "taming-monitor", "completed", "", started, finished)

	mockPool.ExpectQuery(flexibleSQLMatcher(`SELECT id, scenario, state, error, started_at, finished_at`)).
		WithArgs(5).
		WillReturnRows(rows)

	got, err := s.RecentSessions(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, "taming-monitor", got[0].Scenario)
	assert.Equal(t, finished, got[0].FinishedAt)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
