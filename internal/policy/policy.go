package policy

import "fmt"

// Policy holds the admin-controlled booking knobs. The booking engine only
// reads it; writes come through the admin settings handler.
type Policy struct {
	SlotMinutes             int  `json:"slotMinutes"`
	MinAdvanceHours         int  `json:"minAdvanceHours"`
	MaxAdvanceDays          int  `json:"maxAdvanceDays"`
	CancelDeadlineHours     int  `json:"cancelDeadlineHours"`
	AllowSameDayBooking     bool `json:"allowSameDayBooking"`
	AutoConfirmAppointments bool `json:"autoConfirmAppointments"`
	MaintenanceMode         bool `json:"maintenanceMode"`
}

// Default mirrors the settings the clinic ships with before an admin touches
// anything.
func Default() Policy {
	return Policy{
		SlotMinutes:             30,
		MinAdvanceHours:         2,
		MaxAdvanceDays:          30,
		CancelDeadlineHours:     24,
		AllowSameDayBooking:     true,
		AutoConfirmAppointments: true,
		MaintenanceMode:         false,
	}
}

// Validate rejects knob combinations the slot math cannot work with.
func (p Policy) Validate() error {
	if p.SlotMinutes <= 0 {
		return fmt.Errorf("slotMinutes must be positive, got %d", p.SlotMinutes)
	}
	if p.MinAdvanceHours < 0 {
		return fmt.Errorf("minAdvanceHours must not be negative, got %d", p.MinAdvanceHours)
	}
	if p.MaxAdvanceDays < 0 {
		return fmt.Errorf("maxAdvanceDays must not be negative, got %d", p.MaxAdvanceDays)
	}
	if p.CancelDeadlineHours < 0 {
		return fmt.Errorf("cancelDeadlineHours must not be negative, got %d", p.CancelDeadlineHours)
	}
	return nil
}
