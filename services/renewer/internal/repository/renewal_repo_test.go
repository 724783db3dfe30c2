package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMock(t *testing.T) pgxmock.PgxConnIface {
	t.Helper()
	mock, err := pgxmock.NewConn(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	return mock
}

func expectMigrations(mock pgxmock.PgxConnIface) {
	for _, m := range migrations {
		mock.ExpectExec(regexp.QuoteMeta(m.query)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
}

func newRepo(t *testing.T, mock pgxmock.PgxConnIface) *RenewalRepository {
	t.Helper()
	mock.ExpectPing()
	expectMigrations(mock)
	repo, err := New(context.Background(), mock, zaptest.NewLogger(t))
	require.NoError(t, err)
	return repo
}

func TestNewPropagatesPingError(t *testing.T) {
	mock := newMock(t)
	pingErr := errors.New("database unavailable")
	mock.ExpectPing().WillReturnError(pingErr)

	_, err := New(context.Background(), mock, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewStopsAtFailingMigration(t *testing.T) {
	mock := newMock(t)
	mock.ExpectPing()
	mock.ExpectExec(regexp.QuoteMeta(migrations[0].query)).WillReturnError(errors.New("permission denied"))

	_, err := New(context.Background(), mock, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), migrations[0].name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUpsertsByJobID(t *testing.T) {
	mock := newMock(t)
	repo := newRepo(t, mock)

	rn := Renewal{
		JobID:      "job-1",
		Site:       "hidencloud",
		Success:    false,
		Error:      "renovação recusada",
		Challenged: true,
		StartedAt:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Duration:   42 * time.Second,
	}
	mock.ExpectQuery("INSERT INTO renewals").
		WithArgs("job-1", "hidencloud", false, "renovação recusada", true, rn.StartedAt, int64(42000)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("8d0c6f1e-0000-4000-8000-000000000001"))

	id, err := repo.Save(context.Background(), rn)
	require.NoError(t, err)
	assert.Equal(t, "8d0c6f1e-0000-4000-8000-000000000001", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentScansRows(t *testing.T) {
	mock := newMock(t)
	repo := newRepo(t, mock)

	started := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"job_id", "site", "success", "error", "challenged", "started_at", "duration_ms"}).
		AddRow("job-2", "zampto", true, "", false, started, int64(1500)).
		AddRow("job-1", "zampto", false, "timeout", true, started.Add(-time.Hour), int64(60000))
	mock.ExpectQuery("FROM renewals").WithArgs("zampto", 2).WillReturnRows(rows)

	got, err := repo.Recent(context.Background(), "zampto", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "job-2", got[0].JobID)
	assert.Equal(t, 1500*time.Millisecond, got[0].Duration)
	assert.True(t, got[1].Challenged)
	assert.Equal(t, "timeout", got[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentWrapsQueryError(t *testing.T) {
	mock := newMock(t)
	repo := newRepo(t, mock)
	mock.ExpectQuery("FROM renewals").WillReturnError(errors.New("conn closed"))

	_, err := repo.Recent(context.Background(), "zampto", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "histórico")
}
