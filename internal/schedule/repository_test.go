package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExceptionForClosedDayWithNullWindow(t *testing.T) {
	// A closed-day row stores NULL open/close minutes. The query must
	// coalesce them so the scan never fails on the NULL window.
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	bizID := uuid.New()
	date := time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT business_id, date, closed, COALESCE\(open_minute, 0\), COALESCE\(close_minute, 0\)`).
		WithArgs(bizID, date).
		WillReturnRows(pgxmock.NewRows([]string{"business_id", "date", "closed", "coalesce", "coalesce"}).
			AddRow(bizID, date, true, 0, 0))

	exc, err := NewRepository(mock).ExceptionFor(context.Background(), bizID, date)
	require.NoError(t, err)
	require.NotNil(t, exc)
	assert.True(t, exc.Closed)
	assert.Equal(t, 0, exc.OpenMinute)
	assert.Equal(t, 0, exc.CloseMinute)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExceptionForNoOverride(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	bizID := uuid.New()
	date := time.Date(2026, time.March, 16, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT business_id, date, closed`).
		WithArgs(bizID, date).
		WillReturnError(pgx.ErrNoRows)

	exc, err := NewRepository(mock).ExceptionFor(context.Background(), bizID, date)
	require.NoError(t, err)
	assert.Nil(t, exc)
}

func TestWeeklyHours(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	bizID := uuid.New()
	mock.ExpectQuery(`SELECT business_id, weekday, open_minute, close_minute`).
		WithArgs(bizID, int(time.Tuesday)).
		WillReturnRows(pgxmock.NewRows([]string{"business_id", "weekday", "open_minute", "close_minute"}).
			AddRow(bizID, int(time.Tuesday), 9*60, 15*60))

	h, err := NewRepository(mock).WeeklyHours(context.Background(), bizID, time.Tuesday)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, time.Tuesday, h.Weekday)
	assert.Equal(t, 9*60, h.OpenMinute)
	assert.Equal(t, 15*60, h.CloseMinute)
}
