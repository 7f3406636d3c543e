package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []string
	rec := NewRecorder(
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	conn := rec.Wrap(db)
	ctx := context.Background()

	mock.ExpectQuery("select name from users").WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectExec("delete from users").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("drop table users").WillReturnError(errors.New("no such table"))

	rows, err := conn.QueryContext(ctx, "select name from users")
	require.NoError(t, err)
	require.NoError(t, rows.Close())
	_, err = conn.ExecContext(ctx, "delete from users")
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "drop table users")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	s := rec.QueryStats().Stats()
	assert.EqualValues(t, 1, s.TotalQueries)
	assert.EqualValues(t, 2, s.TotalExecs)
	assert.EqualValues(t, 1, s.Errors)
	assert.EqualValues(t, 3, s.SlowQueries)
	assert.Len(t, slow, 3)
	assert.Contains(t, s.String(), "queries=1 execs=2")

	rec.QueryStats().Reset()
	assert.Zero(t, rec.QueryStats().Stats().TotalExecs)
	assert.Zero(t, StatsSnapshot{}.AvgQueryDuration())
}

func TestRecorderLogging(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rec := NewRecorder(WithStatsLogger(logger), WithSlowThreshold(time.Hour), WithSlowQueryLog())
	assert.Equal(t, time.Hour, rec.SlowThreshold())

	mock.ExpectExec("delete from users").WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = rec.Wrap(db).ExecContext(context.Background(), "delete from users")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "statement executed")
	assert.NotContains(t, buf.String(), "slow query detected")

	rec.SetSlowThreshold(0)
	mock.ExpectExec("delete from users").WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = rec.Wrap(db).ExecContext(context.Background(), "delete from users")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "slow query detected")
}
