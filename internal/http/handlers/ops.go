package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/citaflow/citaflow/internal/dispatch"
	"github.com/citaflow/citaflow/pkg/logging"
)

type failureReader interface {
	RecentFailures(ctx context.Context, conversationID uuid.UUID, limit int) ([]dispatch.ExecutionRecord, error)
}

// OpsHandler exposes operator-facing read endpoints. Same token guard as
// the webhooks; these are not end-user surfaces.
type OpsHandler struct {
	failures failureReader
	logger   *logging.Logger
	token    string
}

func NewOpsHandler(failures failureReader, logger *logging.Logger, token string) *OpsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &OpsHandler{failures: failures, logger: logger, token: token}
}

type functionFailure struct {
	ID           uuid.UUID `json:"id"`
	FunctionName string    `json:"function_name"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// HandleFunctionFailures lists a conversation's recent failed or rejected
// function executions, newest first, for support triage.
func (h *OpsHandler) HandleFunctionFailures(w http.ResponseWriter, r *http.Request) {
	if h.token != "" {
		got := r.Header.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	convID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	records, err := h.failures.RecentFailures(r.Context(), convID, limit)
	if err != nil {
		h.logger.Error("querying function failures", "error", err, "conversation_id", convID)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	out := make([]functionFailure, len(records))
	for i, rec := range records {
		out[i] = functionFailure{
			ID:           rec.ID,
			FunctionName: rec.FunctionName,
			Status:       string(rec.Status),
			Error:        rec.Error,
			DurationMS:   rec.DurationMS,
			CreatedAt:    rec.CreatedAt,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.logger.Error("writing function failures response", "error", err)
	}
}
