package tasks

import (
	"fmt"
	"strings"
	"time"

	"github.com/citaflow/citaflow/internal/appointments"
)

const (
	replyEscapeAck        = "De acuerdo, lo dejamos por ahora. Escríbeme cuando quieras retomar. 😊"
	replyTaskBroken       = "Perdona, algo salió mal de nuestro lado. ¿Podemos empezar de nuevo?"
	replyNoAppointments   = "No encontré citas próximas a tu nombre."
	replyAskDateTime      = "¿Para qué día y a qué hora te gustaría tu cita?"
	replyAskTimeOnly      = "Perfecto, ¿a qué hora te gustaría?"
	replyAskNewDateTime   = "¿Para qué día y hora quieres mover tu cita?"
	replyAskConfirmation  = "¿Me confirmas con un sí o un no, por favor?"
	replyDeclinedAck      = "Entendido, no hice ningún cambio. ¿Algo más en lo que pueda ayudarte?"
	replyNoServicesSetup  = "Por el momento no tenemos servicios disponibles para agendar. Una disculpa."
	replyBookingFailed    = "No pude completar la reservación. Por favor intenta de nuevo más tarde."
	replyCancelDone       = "Listo, tu cita quedó cancelada. ¡Que tengas buen día!"
	replyCancelFailed     = "No pude cancelar tu cita. Por favor intenta de nuevo más tarde."
	replyRescheduleFailed = "No pude mover tu cita. Por favor intenta de nuevo más tarde."
)

func renderServiceList(types []appointments.AppointmentType) string {
	var sb strings.Builder
	sb.WriteString("¿Qué servicio te gustaría agendar?\n")
	for i, t := range types {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t.Name)
	}
	sb.WriteString("Respóndeme con el nombre o el número.")
	return sb.String()
}

func renderAppointmentList(intro string, appts []appointments.Appointment, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString(intro)
	sb.WriteString("\n")
	for i, a := range appts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, appointments.Describe(a, loc))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func renderBookSummary(typeName string, at time.Time, loc *time.Location) string {
	return fmt.Sprintf(
		"Quedaría así: %s el %s. ¿Confirmamos? (sí/no)",
		typeName,
		describeInstant(at, loc),
	)
}

func renderRescheduleSummary(appt appointments.Appointment, newAt time.Time, loc *time.Location) string {
	return fmt.Sprintf(
		"Moveríamos tu cita de %s al %s. ¿Confirmamos? (sí/no)",
		appointments.Describe(appt, loc),
		describeInstant(newAt, loc),
	)
}

func renderCancelSummary(appt appointments.Appointment, loc *time.Location) string {
	return fmt.Sprintf(
		"¿Seguro que quieres cancelar tu cita de %s? (sí/no)",
		appointments.Describe(appt, loc),
	)
}

func renderBookSuccess(typeName string, at time.Time, loc *time.Location) string {
	return fmt.Sprintf("¡Listo! Tu cita de %s quedó agendada para el %s. 🎉", typeName, describeInstant(at, loc))
}

func renderRescheduleSuccess(at time.Time, loc *time.Location) string {
	return fmt.Sprintf("¡Listo! Tu cita quedó movida al %s. 🎉", describeInstant(at, loc))
}

func describeInstant(at time.Time, loc *time.Location) string {
	return appointments.DescribeInstant(at, loc)
}
