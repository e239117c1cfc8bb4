package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/digihealth/clinic-scheduler/internal/schedule"
)

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus validates a status string from the API.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return Status(s), true
	}
	return "", false
}

// Actor is the capability tag of whoever invokes a mutation. Staff may
// confirm, complete, and override the cancellation deadline.
type Actor string

const (
	ActorPatient Actor = "patient"
	ActorStaff   Actor = "staff"
)

// ParseActor validates an actor tag from the API.
func ParseActor(s string) (Actor, bool) {
	switch Actor(s) {
	case ActorPatient, ActorStaff:
		return Actor(s), true
	}
	return "", false
}

// Appointment is the authoritative booking record. Rows are never deleted;
// cancellation is a status so historical slot occupancy stays queryable.
type Appointment struct {
	ID              uuid.UUID           `json:"id"`
	DoctorID        uuid.UUID           `json:"doctorId"`
	PatientID       uuid.UUID           `json:"patientId"`
	Date            time.Time           `json:"-"`
	Time            schedule.TimeOfDay  `json:"-"`
	DurationMinutes int                 `json:"durationMinutes"`
	Status          Status              `json:"status"`
	Reason          string              `json:"reason"`
	Notes           string              `json:"notes,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	CancelledBy     *Actor              `json:"cancelledBy,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
}

// DateString formats the appointment's calendar date for the wire.
func (a *Appointment) DateString() string {
	return a.Date.Format(DateLayout)
}

// TimeString formats the slot start for the wire.
func (a *Appointment) TimeString() string {
	return a.Time.String()
}

// ScheduledAt anchors the slot onto its calendar date.
func (a *Appointment) ScheduledAt() time.Time {
	return a.Time.At(a.Date)
}

// Active reports whether the appointment still occupies its slot.
func (a *Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// Patient is the slice of the patient profile the ledger cares about: the
// record must exist, and the onboarding flag clears on first booking.
type Patient struct {
	ID                uuid.UUID
	Name              string
	Email             *string
	OnboardingPending bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Doctor is the slice of the doctor profile the ledger cares about.
type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary carries the doctor dashboard counts for one day.
type Summary struct {
	TotalPatients  int64 `json:"totalPatients"`
	TodayPending   int64 `json:"todayPending"`
	TodayConfirmed int64 `json:"todayConfirmed"`
	TodayCompleted int64 `json:"todayCompleted"`
}

// EventLog is one row of the append-only mutation journal.
type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

const (
	EventAppointmentBooked        = "APPOINTMENT_BOOKED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentDetailsEdited = "APPOINTMENT_DETAILS_EDITED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
)
