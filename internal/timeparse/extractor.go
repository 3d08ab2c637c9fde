package timeparse

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/citaflow/citaflow/internal/ai"
	"github.com/citaflow/citaflow/pkg/logging"
)

// Extraction holds the coarse keyword slots the AI pulls out of free text.
// Any subset may be present.
type Extraction struct {
	Weekday     string `json:"dia_semana"`
	RelativeDay string `json:"dia_relativo"`
	DayOfMonth  int    `json:"dia_mes"`
	TimePhrase  string `json:"hora_texto"`
	SameTime    bool   `json:"misma_hora"`
}

// Empty reports whether nothing was extracted.
func (e Extraction) Empty() bool {
	return e.Weekday == "" && e.RelativeDay == "" && e.DayOfMonth == 0 &&
		e.TimePhrase == "" && !e.SameTime
}

const extractionPrompt = `Extrae palabras clave de fecha y hora del mensaje del usuario.
Responde ÚNICAMENTE con JSON válido, sin explicación:
{"dia_semana":"<lunes..domingo o vacío>","dia_relativo":"<hoy|mañana o vacío>","dia_mes":<número 1-31 o 0>,"hora_texto":"<frase de hora tal cual o vacío>","misma_hora":<true si pide la misma hora de siempre/original>}`

// Extractor runs the AI phase of date/time resolution.
type Extractor struct {
	client ai.Client
	model  string
	logger *logging.Logger
}

// NewExtractor builds an extractor over the given completion client.
func NewExtractor(client ai.Client, model string, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{client: client, model: model, logger: logger}
}

// Extract asks the AI for keyword slots. Failures and unparsable output
// yield an empty Extraction, never an error: the caller simply learned
// nothing this turn.
func (e *Extractor) Extract(ctx context.Context, text string) Extraction {
	if e.client == nil || strings.TrimSpace(text) == "" {
		return Extraction{}
	}

	resp, err := e.client.Complete(ctx, ai.CompletionRequest{
		Model:       e.model,
		System:      []string{extractionPrompt},
		Messages:    []ai.ChatMessage{{Role: ai.ChatRoleUser, Content: text}},
		MaxTokens:   256,
		Temperature: 0,
	})
	if err != nil {
		e.logger.Warn("date keyword extraction failed", "error", err)
		return Extraction{}
	}

	var ext Extraction
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Text)), &ext); err != nil {
		e.logger.Debug("unparsable extraction output", "output", resp.Text)
		return Extraction{}
	}
	return ext
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
