package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/digihealth/clinic-scheduler/internal/availability"
	"github.com/digihealth/clinic-scheduler/internal/metrics"
	"github.com/digihealth/clinic-scheduler/internal/policy"
	redisclient "github.com/digihealth/clinic-scheduler/internal/redis"
	"github.com/digihealth/clinic-scheduler/internal/schedule"
	"github.com/digihealth/clinic-scheduler/pkg/logging"
)

// EventPublisher receives committed mutations for fan-out. Implementations
// must never block the caller for long and must never return delivery
// failures into the booking path.
type EventPublisher interface {
	PublishAppointment(kind string, appt *Appointment)
}

// Service is the booking ledger: the sole writer of appointment state.
type Service struct {
	repo      Repository
	locker    redisclient.Locker
	schedules schedule.Store
	policies  policy.Store
	publisher EventPublisher
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger

	// Now is swappable for tests.
	Now func() time.Time
}

func NewService(
	repo Repository,
	locker redisclient.Locker,
	schedules schedule.Store,
	policies policy.Store,
	publisher EventPublisher,
	m *metrics.BookingMetrics,
	logger *logging.Logger,
) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		schedules: schedules,
		policies:  policies,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		Now:       time.Now,
	}
}

// Availability computes the advisory candidate slot list for a doctor and
// date. No locking: the reservation path re-validates under the lock.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.TimeOfDay, error) {
	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	pol, err := s.policies.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	template, err := s.schedules.TemplateForDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load work template: %w", err)
	}

	booked, err := s.repo.ActiveTimes(ctx, doctorID, date, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("load active appointments: %w", err)
	}

	return availability.Slots(availability.Request{
		Template: template,
		Policy:   pol,
		Date:     date,
		Now:      s.Now(),
		Booked:   booked,
	}), nil
}

// SchedulePolicy returns the doctor's weekly template alongside the clinic
// policy knobs, for clients that render a booking calendar.
func (s *Service) SchedulePolicy(ctx context.Context, doctorID uuid.UUID) (schedule.WeeklyTemplate, policy.Policy, error) {
	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, policy.Policy{}, err
		}
		return nil, policy.Policy{}, fmt.Errorf("load doctor: %w", err)
	}

	template, err := s.schedules.TemplateForDoctor(ctx, doctorID)
	if err != nil {
		return nil, policy.Policy{}, fmt.Errorf("load work template: %w", err)
	}

	pol, err := s.policies.Get(ctx)
	if err != nil {
		return nil, policy.Policy{}, fmt.Errorf("load policy: %w", err)
	}

	return template, pol, nil
}

// Reserve books one slot for a patient. The per-(doctor, date) lock
// serializes competing reservations; inside the critical section the
// candidate set is recomputed against current bookings and the policy bounds
// are re-checked at the time of evaluation, so a stale availability response
// can never produce a double booking.
func (s *Service) Reserve(ctx context.Context, doctorID uuid.UUID, date time.Time, slot schedule.TimeOfDay, patientID uuid.UUID, reason string) (*Appointment, error) {
	pol, err := s.policies.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if pol.MaintenanceMode {
		s.metrics.ObserveReserve("maintenance")
		return nil, ErrMaintenanceMode
	}

	patient, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	template, err := s.schedules.TemplateForDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load work template: %w", err)
	}

	date = midnight(date)

	var created *Appointment

	err = s.locker.WithScheduleLock(ctx, doctorID, date.Format(DateLayout), func(lockCtx context.Context) error {
		now := s.Now()

		if err := checkPolicyBounds(pol, date, slot, now); err != nil {
			return err
		}

		booked, err := s.repo.ActiveTimes(lockCtx, doctorID, date, uuid.Nil)
		if err != nil {
			return fmt.Errorf("load active appointments: %w", err)
		}

		req := availability.Request{
			Template: template,
			Policy:   pol,
			Date:     date,
			Now:      now,
			Booked:   booked,
		}
		if !availability.Contains(req, slot) {
			for _, b := range booked {
				if b == slot {
					return ErrSlotConflict
				}
			}
			return ErrSlotInvalid
		}

		appt := &Appointment{
			DoctorID:        doctorID,
			PatientID:       patientID,
			Date:            date,
			Time:            slot,
			DurationMinutes: pol.SlotMinutes,
			Status:          InitialStatus(pol),
			Reason:          reason,
		}

		created, err = s.repo.Create(lockCtx, appt)
		if err != nil {
			if errors.Is(err, ErrDuplicateSlot) {
				// The candidate check above should have caught this; the
				// storage constraint is the cross-process backstop.
				return ErrSlotConflict
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  doctorID.String(),
			"patient_id": patientID.String(),
			"date":       created.DateString(),
			"time":       created.TimeString(),
			"status":     string(created.Status),
		})

		if patient.OnboardingPending {
			if err := s.repo.ClearPatientOnboarding(lockCtx, patientID); err != nil {
				s.logger.Warn("failed to clear onboarding flag", "patient_id", patientID, "error", err)
			}
		}

		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.metrics.ObserveLockContention()
			s.metrics.ObserveReserve("lock_busy")
		case errors.Is(err, ErrSlotConflict):
			s.metrics.ObserveReserve("conflict")
		case errors.Is(err, ErrSlotInvalid):
			s.metrics.ObserveReserve("invalid")
		case errors.Is(err, ErrPolicyViolation):
			s.metrics.ObserveReserve("policy")
		default:
			s.metrics.ObserveReserve("error")
		}
		return nil, err
	}

	s.metrics.ObserveReserve("success")
	s.publish(EventAppointmentBooked, created)

	return created, nil
}

// UpdateStatus applies a lifecycle transition. Cancellations by non-staff
// actors must respect the cancel deadline; staff may override it. A COMPLETED
// transition commits on its own: any clinical-note write happens elsewhere
// and its failure cannot corrupt appointment state.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, actor Actor, reason string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if err := CheckTransition(appt.Status, to, actor); err != nil {
		return nil, err
	}

	var cancelledBy *Actor
	var cancelledAt *time.Time
	var noteAppend string

	if to == StatusCancelled {
		if actor != ActorStaff {
			pol, err := s.policies.Get(ctx)
			if err != nil {
				return nil, fmt.Errorf("load policy: %w", err)
			}
			deadline := time.Duration(pol.CancelDeadlineHours) * time.Hour
			if appt.ScheduledAt().Sub(s.Now()) < deadline {
				return nil, ErrPolicyViolation
			}
		}

		now := s.Now()
		cancelledBy = &actor
		cancelledAt = &now
		if reason != "" {
			noteAppend = "Cancellation reason: " + reason
		}
	}

	updated, err := s.repo.UpdateStatus(ctx, id, appt.Status, to, cancelledBy, cancelledAt, noteAppend)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row existed a moment ago, so the CAS lost to a concurrent
			// transition.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from":  string(appt.Status),
		"to":    string(to),
		"actor": string(actor),
	})

	s.publish(EventAppointmentStatusChanged, updated)

	return updated, nil
}

// UpdateDetails edits non-status fields. The slot invariant is untouched, so
// no schedule lock is needed.
func (s *Service) UpdateDetails(ctx context.Context, id uuid.UUID, fields DetailUpdate) (*Appointment, error) {
	updated, err := s.repo.UpdateDetails(ctx, id, fields)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update details: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentDetailsEdited, map[string]any{})

	s.publish(EventAppointmentDetailsEdited, updated)

	return updated, nil
}

// Reschedule moves an active appointment to a new slot. The target slot is
// validated under the lock exactly like a fresh reservation; the old slot
// frees implicitly once the row moves.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newTime schedule.TimeOfDay, actor Actor) (*Appointment, error) {
	pol, err := s.policies.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if pol.MaintenanceMode {
		return nil, ErrMaintenanceMode
	}

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusPending && appt.Status != StatusConfirmed {
		return nil, ErrInvalidTransition
	}

	template, err := s.schedules.TemplateForDoctor(ctx, appt.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load work template: %w", err)
	}

	newDate = midnight(newDate)

	var moved *Appointment

	err = s.locker.WithScheduleLock(ctx, appt.DoctorID, newDate.Format(DateLayout), func(lockCtx context.Context) error {
		now := s.Now()

		if err := checkPolicyBounds(pol, newDate, newTime, now); err != nil {
			return err
		}

		booked, err := s.repo.ActiveTimes(lockCtx, appt.DoctorID, newDate, appt.ID)
		if err != nil {
			return fmt.Errorf("load active appointments: %w", err)
		}

		req := availability.Request{
			Template: template,
			Policy:   pol,
			Date:     newDate,
			Now:      now,
			Booked:   booked,
		}
		if !availability.Contains(req, newTime) {
			for _, b := range booked {
				if b == newTime {
					return ErrSlotConflict
				}
			}
			return ErrSlotInvalid
		}

		moved, err = s.repo.MoveSlot(lockCtx, id, appt.Status, newDate, newTime)
		if err != nil {
			if errors.Is(err, ErrDuplicateSlot) {
				return ErrSlotConflict
			}
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrInvalidTransition
			}
			return fmt.Errorf("move appointment: %w", err)
		}

		s.logEvent(lockCtx, moved.ID, EventAppointmentRescheduled, map[string]any{
			"from_date": appt.DateString(),
			"from_time": appt.TimeString(),
			"to_date":   moved.DateString(),
			"to_time":   moved.TimeString(),
			"actor":     string(actor),
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	s.publish(EventAppointmentRescheduled, moved)

	return moved, nil
}

// Get retrieves an appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListByPatient retrieves a patient's appointments, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appts, nil
}

// ListByDoctor retrieves a doctor's appointments, optionally bounded to a
// date range.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to *time.Time) ([]Appointment, error) {
	appts, err := s.repo.ListByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return appts, nil
}

// DashboardSummary returns today's counts for the doctor dashboard.
func (s *Service) DashboardSummary(ctx context.Context, doctorID uuid.UUID) (Summary, error) {
	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return Summary{}, err
		}
		return Summary{}, fmt.Errorf("load doctor: %w", err)
	}

	summary, err := s.repo.SummaryForDoctor(ctx, doctorID, midnight(s.Now()))
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// checkPolicyBounds enforces minAdvanceHours, maxAdvanceDays, and the
// same-day rule against the evaluation time, independent of what the
// candidate computation allows.
func checkPolicyBounds(pol policy.Policy, date time.Time, slot schedule.TimeOfDay, now time.Time) error {
	// Same normalization as the candidate computation: day arithmetic must
	// compare calendar days in the date's own location.
	now = now.In(date.Location())

	scheduledAt := slot.At(date)

	if scheduledAt.Sub(now) < time.Duration(pol.MinAdvanceHours)*time.Hour {
		return ErrPolicyViolation
	}

	daysAhead := int(midnight(date).Sub(midnight(now)).Hours() / 24)
	if daysAhead < 0 || daysAhead > pol.MaxAdvanceDays {
		return ErrPolicyViolation
	}

	if daysAhead == 0 && !pol.AllowSameDayBooking {
		return ErrPolicyViolation
	}

	return nil
}

func (s *Service) publish(kind string, appt *Appointment) {
	if s.publisher == nil || appt == nil {
		return
	}
	// Fire and forget: fan-out must never delay or fail the mutation.
	go s.publisher.PublishAppointment(kind, appt)
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", "event_type", eventType, "error", err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to insert event log", "event_type", eventType, "appointment_id", appointmentID, "error", err)
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
