package dispatch

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	convID := uuid.New()
	mock.ExpectExec("INSERT INTO function_executions").
		WithArgs(sqlmock.AnyArg(), convID, "agendar_cita", sqlmock.AnyArg(), "COMPLETED", sqlmock.AnyArg(), int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewExecutionStore(db)
	err = store.Record(context.Background(), ExecutionRecord{
		ConversationID: convID,
		FunctionName:   "agendar_cita",
		Args:           map[string]any{"hour": 17.0},
		Status:         ExecutionCompleted,
		DurationMS:     12,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	convID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "function_name", "status", "error", "duration_ms", "created_at"}).
		AddRow(uuid.New().String(), "reagendar_cita", "FAILED", "timeout", int64(800), time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC))

	mock.ExpectQuery("SELECT id, function_name, status").
		WithArgs(convID, 5).
		WillReturnRows(rows)

	store := NewExecutionStore(db)
	got, err := store.RecentFailures(context.Background(), convID, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "reagendar_cita", got[0].FunctionName)
	assert.Equal(t, ExecutionFailed, got[0].Status)
	assert.Equal(t, "timeout", got[0].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}
