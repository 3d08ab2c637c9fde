package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/citaflow/citaflow/internal/ai"
	"github.com/citaflow/citaflow/internal/tasks"
)

type stubClient struct {
	text string
	err  error
}

func (s *stubClient) Complete(context.Context, ai.CompletionRequest) (ai.CompletionResponse, error) {
	if s.err != nil {
		return ai.CompletionResponse{}, s.err
	}
	return ai.CompletionResponse{Text: s.text}, nil
}

func TestDetectKnownIntents(t *testing.T) {
	cases := []struct {
		answer string
		want   tasks.Name
	}{
		{"agendar_cita", tasks.NameBook},
		{"  Reagendar_Cita  ", tasks.NameReschedule},
		{"cancelar_cita", tasks.NameCancel},
		{"listar_citas", tasks.NameList},
		{"```\nagendar_cita\n```", tasks.NameBook},
		{"La intención es: cancelar_cita.", tasks.NameCancel},
	}
	for _, tc := range cases {
		d := NewDetector(&stubClient{text: tc.answer}, "m", nil)
		name, ok := d.Detect(context.Background(), "hola")
		assert.True(t, ok, "answer %q", tc.answer)
		assert.Equal(t, tc.want, name, "answer %q", tc.answer)
	}
}

func TestDetectDegradesToFallback(t *testing.T) {
	for _, answer := range []string{"ninguna", "", "hacer_magia", "no lo sé"} {
		d := NewDetector(&stubClient{text: answer}, "m", nil)
		_, ok := d.Detect(context.Background(), "hola")
		assert.False(t, ok, "answer %q", answer)
	}
}

func TestDetectProviderError(t *testing.T) {
	d := NewDetector(&stubClient{err: errors.New("throttled")}, "m", nil)
	_, ok := d.Detect(context.Background(), "hola")
	assert.False(t, ok)
}
