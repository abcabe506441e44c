package notifications

import (
	"bytes"
	"html/template"

	"cabinet-backend/internal/models"
	"cabinet-backend/internal/schedule"
)

const appointmentConfirmationTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Bonjour {{.Name}},</p>
  <p>Votre rendez-vous est confirme. Voici les details :</p>
  <ul>
    <li>Service : {{.ServiceName}}</li>
    <li>Date : {{.Date}}</li>
    <li>Heure : {{.Time}}</li>
    <li>Duree : {{.DurationMinutes}} minutes</li>
    <li>Type : {{.TypeLabel}}</li>
    <li>Numero de reservation : {{.AppointmentID}}</li>
  </ul>
  <p>Pour annuler ou verifier votre rendez-vous, gardez votre numero de
  reservation et l'adresse email utilisee.</p>
  <p>Merci.</p>
</body>
</html>`

var appointmentConfirmationTmpl = template.Must(template.New("appointment_confirmation").Parse(appointmentConfirmationTemplate))

type appointmentConfirmationData struct {
	Name            string
	ServiceName     string
	Date            string
	Time            string
	DurationMinutes int
	TypeLabel       string
	AppointmentID   string
}

func buildAppointmentConfirmationHTML(appointment models.Appointment, service models.Service) (string, error) {
	data := appointmentConfirmationData{
		Name:            appointment.Name,
		ServiceName:     service.Name,
		Date:            appointment.Date,
		Time:            appointment.Time,
		DurationMinutes: schedule.AppointmentMinutes,
		TypeLabel:       appointmentTypeLabel(appointment.Type),
		AppointmentID:   appointment.ID,
	}
	var buf bytes.Buffer
	if err := appointmentConfirmationTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func appointmentTypeLabel(value string) string {
	switch value {
	case models.ConsultationOnline:
		return "En ligne"
	case models.ConsultationCabinet:
		return "Au cabinet"
	default:
		return value
	}
}
