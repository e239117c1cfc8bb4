package notifier

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/digihealth/clinic-scheduler/internal/booking"
)

// TopicAppointments receives every appointment change in the clinic.
const TopicAppointments = "appointments"

// DoctorTopic names the per-doctor feed.
func DoctorTopic(doctorID uuid.UUID) string {
	return "appointments.doctor." + doctorID.String()
}

// Event is the change notification fanned out to subscribers and relayed
// between processes over redis pub/sub.
type Event struct {
	Kind        string          `json:"kind"`
	Topic       string          `json:"topic"`
	Origin      string          `json:"origin"`
	Appointment json.RawMessage `json:"appointment"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

type appointmentPayload struct {
	ID              uuid.UUID      `json:"id"`
	DoctorID        uuid.UUID      `json:"doctorId"`
	PatientID       uuid.UUID      `json:"patientId"`
	Date            string         `json:"date"`
	Time            string         `json:"time"`
	DurationMinutes int            `json:"durationMinutes"`
	Status          booking.Status `json:"status"`
	Reason          string         `json:"reason,omitempty"`
}

func marshalAppointment(appt *booking.Appointment) (json.RawMessage, error) {
	return json.Marshal(appointmentPayload{
		ID:              appt.ID,
		DoctorID:        appt.DoctorID,
		PatientID:       appt.PatientID,
		Date:            appt.DateString(),
		Time:            appt.TimeString(),
		DurationMinutes: appt.DurationMinutes,
		Status:          appt.Status,
		Reason:          appt.Reason,
	})
}
