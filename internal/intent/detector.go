// Package intent classifies an inbound message into one of the known task
// workflows when no task is active.
package intent

import (
	"context"
	"strings"

	"github.com/citaflow/citaflow/internal/ai"
	"github.com/citaflow/citaflow/internal/tasks"
	"github.com/citaflow/citaflow/pkg/logging"
)

// None is returned when the message does not map to any workflow.
const None = "ninguna"

const systemPrompt = `Eres un clasificador de intenciones para un asistente de citas.
Clasifica el mensaje del usuario en exactamente una de estas intenciones:

- agendar_cita: quiere reservar una cita nueva
- reagendar_cita: quiere cambiar la fecha u hora de una cita existente
- cancelar_cita: quiere cancelar una cita existente
- listar_citas: quiere saber qué citas tiene
- ninguna: cualquier otra cosa

Responde únicamente con el nombre de la intención, sin explicación.`

// FallbackMenu is sent when classification yields nothing actionable. The
// turn always produces exactly one outbound either way.
const FallbackMenu = "Puedo ayudarte a agendar, mover o cancelar una cita, o decirte qué citas tienes. ¿Qué te gustaría hacer?"

// Detector maps free text onto the closed task-name set.
type Detector struct {
	client ai.Client
	model  string
	logger *logging.Logger
}

func NewDetector(client ai.Client, model string, logger *logging.Logger) *Detector {
	if logger == nil {
		logger = logging.Default()
	}
	return &Detector{client: client, model: model, logger: logger}
}

// Detect classifies the message. Any provider failure or off-vocabulary
// answer degrades to ok=false so the caller falls back to the menu.
func (d *Detector) Detect(ctx context.Context, text string) (tasks.Name, bool) {
	resp, err := d.client.Complete(ctx, ai.CompletionRequest{
		Model:       d.model,
		System:      []string{systemPrompt},
		Messages:    []ai.ChatMessage{{Role: ai.ChatRoleUser, Content: text}},
		MaxTokens:   16,
		Temperature: 0,
	})
	if err != nil {
		d.logger.Warn("intent classification failed", "error", err)
		return "", false
	}

	answer := normalize(resp.Text)
	if answer == None || answer == "" {
		return "", false
	}
	name, ok := tasks.KnownName(answer)
	if !ok {
		d.logger.Warn("intent classifier returned unknown label", "label", answer)
		return "", false
	}
	return name, true
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "`\"'.")
	// Some models answer in a short sentence; keep the first known token.
	for _, f := range strings.Fields(s) {
		f = strings.Trim(f, "`\"'.,:")
		if _, ok := tasks.KnownName(f); ok {
			return f
		}
		if f == None {
			return None
		}
	}
	return s
}
