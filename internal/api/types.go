package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/digihealth/clinic-scheduler/internal/booking"
	"github.com/digihealth/clinic-scheduler/internal/policy"
	"github.com/digihealth/clinic-scheduler/internal/schedule"
)

type AvailabilityResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Slots    []string  `json:"slots"`
}

type HoursRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type SchedulePolicyResponse struct {
	DoctorID uuid.UUID             `json:"doctor_id"`
	WorkDays []string              `json:"work_days"`
	Hours    map[string]HoursRange `json:"hours"`
	Policy   policy.Policy         `json:"policy"`
}

type WorkDaysRequest struct {
	Days map[string]HoursRange `json:"days"`
}

type CreateAppointmentRequest struct {
	DoctorID  string `json:"doctor_id"`
	PatientID string `json:"patient_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Reason    string `json:"reason"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

type UpdateDetailsRequest struct {
	Reason *string `json:"reason,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Actor string `json:"actor"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	Date            string     `json:"date"`
	Time            string     `json:"time"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	Reason          string     `json:"reason,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CancelledBy     *string    `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func appointmentResponse(a *booking.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID,
		DoctorID:        a.DoctorID,
		PatientID:       a.PatientID,
		Date:            a.DateString(),
		Time:            a.TimeString(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Reason:          a.Reason,
		Notes:           a.Notes,
		CancelledAt:     a.CancelledAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.CancelledBy != nil {
		by := string(*a.CancelledBy)
		resp.CancelledBy = &by
	}
	return resp
}

func appointmentListResponse(appts []booking.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, appointmentResponse(&appts[i]))
	}
	return out
}

func schedulePolicyResponse(doctorID uuid.UUID, template schedule.WeeklyTemplate, pol policy.Policy) SchedulePolicyResponse {
	resp := SchedulePolicyResponse{
		DoctorID: doctorID,
		WorkDays: make([]string, 0, len(template)),
		Hours:    make(map[string]HoursRange, len(template)),
		Policy:   pol,
	}
	for _, day := range template.Days() {
		window, _ := template.Window(day)
		resp.WorkDays = append(resp.WorkDays, string(day))
		resp.Hours[string(day)] = HoursRange{
			Start: window.Start.String(),
			End:   window.End.String(),
		}
	}
	return resp
}
