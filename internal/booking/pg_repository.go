package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digihealth/clinic-scheduler/internal/schedule"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `
	id, doctor_id, patient_id, appointment_date, appointment_time,
	duration_minutes, status, reason, notes, created_at, updated_at,
	cancelled_by, cancelled_at`

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.OnboardingPending,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var timeStr string
	var cancelledBy *string
	var cancelledAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&timeStr,
		&a.DurationMinutes,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
		&cancelledBy,
		&cancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	tod, err := schedule.ParseTimeOfDay(timeStr)
	if err != nil {
		return nil, fmt.Errorf("appointment %s has malformed time %q: %w", a.ID, timeStr, err)
	}
	a.Time = tod

	if cancelledBy != nil {
		actor := Actor(*cancelledBy)
		a.CancelledBy = &actor
	}
	a.CancelledAt = cancelledAt

	return &a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Interface methods

func (r *PgRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, onboarding_pending, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ClearPatientOnboarding(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE patients
		SET onboarding_pending = false,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("clear onboarding flag: %w", err)
	}
	return nil
}

func (r *PgRepository) ActiveTimes(ctx context.Context, doctorID uuid.UUID, date time.Time, exceptID uuid.UUID) ([]schedule.TimeOfDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_time
		FROM appointments
		WHERE doctor_id = $1
		  AND appointment_date = $2
		  AND status <> 'cancelled'
		  AND id <> $3
	`, doctorID, date, exceptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.TimeOfDay
	for rows.Next() {
		var timeStr string
		if err := rows.Scan(&timeStr); err != nil {
			return nil, err
		}
		tod, err := schedule.ParseTimeOfDay(timeStr)
		if err != nil {
			return nil, fmt.Errorf("stored appointment time %q: %w", timeStr, err)
		}
		out = append(out, tod)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (r *PgRepository) Create(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, doctor_id, patient_id, appointment_date, appointment_time,
			duration_minutes, status, reason, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, appt.DoctorID, appt.PatientID, appt.Date, appt.Time.String(),
		appt.DurationMinutes, appt.Status, appt.Reason, appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, cancelledBy *Actor, cancelledAt *time.Time, noteAppend string) (*Appointment, error) {
	var byStr *string
	if cancelledBy != nil {
		s := string(*cancelledBy)
		byStr = &s
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    cancelled_by = COALESCE($4, cancelled_by),
		    cancelled_at = COALESCE($5, cancelled_at),
		    notes = CASE WHEN $6 = '' THEN notes
		                 WHEN notes = '' THEN $6
		                 ELSE notes || E'\n\n' || $6 END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from, byStr, cancelledAt, noteAppend)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateDetails(ctx context.Context, id uuid.UUID, fields DetailUpdate) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET reason = COALESCE($2, reason),
		    notes = COALESCE($3, notes),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, fields.Reason, fields.Notes)

	return scanAppointment(row)
}

func (r *PgRepository) MoveSlot(ctx context.Context, id uuid.UUID, status Status, newDate time.Time, newTime schedule.TimeOfDay) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $3,
		    appointment_time = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns+`
	`, id, status, newDate, newTime.String())

	moved, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}
	return moved, nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to *time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND ($2::date IS NULL OR appointment_date >= $2)
		  AND ($3::date IS NULL OR appointment_date <= $3)
		ORDER BY appointment_date ASC, appointment_time ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *PgRepository) SummaryForDoctor(ctx context.Context, doctorID uuid.UUID, day time.Time) (Summary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(DISTINCT patient_id) FROM appointments WHERE doctor_id = $1),
			COUNT(*) FILTER (WHERE appointment_date = $2 AND status = 'pending'),
			COUNT(*) FILTER (WHERE appointment_date = $2 AND status = 'confirmed'),
			COUNT(*) FILTER (WHERE appointment_date = $2 AND status = 'completed')
		FROM appointments
		WHERE doctor_id = $1
	`, doctorID, day)

	var s Summary
	if err := row.Scan(&s.TotalPatients, &s.TodayPending, &s.TodayConfirmed, &s.TodayCompleted); err != nil {
		return Summary{}, fmt.Errorf("doctor summary: %w", err)
	}
	return s, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
