package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citaflow/citaflow/internal/dispatch"
)

type stubFailureReader struct {
	records   []dispatch.ExecutionRecord
	lastLimit int
}

func (s *stubFailureReader) RecentFailures(_ context.Context, _ uuid.UUID, limit int) ([]dispatch.ExecutionRecord, error) {
	s.lastLimit = limit
	return s.records, nil
}

func opsRouter(h *OpsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/ops/conversations/{conversationID}/function-failures", h.HandleFunctionFailures)
	return r
}

func TestOpsFunctionFailures(t *testing.T) {
	reader := &stubFailureReader{records: []dispatch.ExecutionRecord{{
		ID:           uuid.New(),
		FunctionName: "cancelar_cita",
		Status:       dispatch.ExecutionRejected,
		Error:        "missing required field appointment_id",
		DurationMS:   12,
		CreatedAt:    time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}}}
	h := NewOpsHandler(reader, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/ops/conversations/"+uuid.NewString()+"/function-failures?limit=5", nil)
	rec := httptest.NewRecorder()
	opsRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, reader.lastLimit)

	var out []functionFailure
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "cancelar_cita", out[0].FunctionName)
	assert.Equal(t, string(dispatch.ExecutionRejected), out[0].Status)
	assert.Contains(t, out[0].Error, "appointment_id")
}

func TestOpsFunctionFailuresInvalidID(t *testing.T) {
	h := NewOpsHandler(&stubFailureReader{}, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/ops/conversations/not-a-uuid/function-failures", nil)
	rec := httptest.NewRecorder()
	opsRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOpsFunctionFailuresTokenRequired(t *testing.T) {
	h := NewOpsHandler(&stubFailureReader{}, nil, "secret")

	req := httptest.NewRequest(http.MethodGet, "/ops/conversations/"+uuid.NewString()+"/function-failures", nil)
	rec := httptest.NewRecorder()
	opsRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
