package timeparse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/citaflow/citaflow/internal/ai"
)

type stubCompletion struct {
	text string
	err  error
}

func (s *stubCompletion) Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error) {
	return ai.CompletionResponse{Text: s.text}, s.err
}

func TestExtractParsesSlots(t *testing.T) {
	client := &stubCompletion{text: `{"dia_semana":"jueves","hora_texto":"5pm","dia_mes":0}`}
	ext := NewExtractor(client, "model-x", nil).Extract(context.Background(), "muévela para el jueves a las 5pm")

	assert.Equal(t, "jueves", ext.Weekday)
	assert.Equal(t, "5pm", ext.TimePhrase)
	assert.False(t, ext.Empty())
}

func TestExtractStripsCodeFences(t *testing.T) {
	client := &stubCompletion{text: "```json\n{\"dia_relativo\":\"hoy\"}\n```"}
	ext := NewExtractor(client, "model-x", nil).Extract(context.Background(), "hoy por favor")

	assert.Equal(t, "hoy", ext.RelativeDay)
}

func TestExtractIsBestEffort(t *testing.T) {
	tests := []struct {
		name   string
		client ai.Client
	}{
		{"provider error", &stubCompletion{err: errors.New("throttled")}},
		{"unparsable output", &stubCompletion{text: "no hay fecha aquí"}},
		{"empty output", &stubCompletion{text: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := NewExtractor(tt.client, "model-x", nil).Extract(context.Background(), "algo")
			assert.True(t, ext.Empty())
		})
	}
}

func TestExtractSkipsBlankInput(t *testing.T) {
	ext := NewExtractor(&stubCompletion{text: `{"dia_relativo":"hoy"}`}, "model-x", nil).Extract(context.Background(), "   ")
	assert.True(t, ext.Empty())
}
