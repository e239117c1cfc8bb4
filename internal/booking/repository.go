package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/digihealth/clinic-scheduler/internal/schedule"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrDuplicateSlot surfaces the storage-level uniqueness constraint on
	// (doctor, date, time) for non-cancelled rows. The in-process lock should
	// make this unreachable; the constraint is the cross-process backstop.
	ErrDuplicateSlot = errors.New("slot already occupied by an active appointment")
)

// DetailUpdate carries the non-status fields a caller may edit.
type DetailUpdate struct {
	Reason *string
	Notes  *string
}

// Repository contains all DB interactions needed by the ledger.
type Repository interface {
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	ClearPatientOnboarding(ctx context.Context, id uuid.UUID) error

	// ActiveTimes lists slot starts of non-cancelled appointments for a
	// doctor on a date. exceptID (uuid.Nil for none) excludes one row, used
	// when that row itself is being moved.
	ActiveTimes(ctx context.Context, doctorID uuid.UUID, date time.Time, exceptID uuid.UUID) ([]schedule.TimeOfDay, error)

	Create(ctx context.Context, appt *Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateStatus is compare-and-swap on the prior status: it affects no
	// rows unless the stored status still equals from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, cancelledBy *Actor, cancelledAt *time.Time, noteAppend string) (*Appointment, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, fields DetailUpdate) (*Appointment, error)

	// MoveSlot relocates an active appointment to a new date and time,
	// guarded by the same CAS-on-status discipline as UpdateStatus.
	MoveSlot(ctx context.Context, id uuid.UUID, status Status, newDate time.Time, newTime schedule.TimeOfDay) (*Appointment, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to *time.Time) ([]Appointment, error)
	SummaryForDoctor(ctx context.Context, doctorID uuid.UUID, day time.Time) (Summary, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
