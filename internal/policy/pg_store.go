package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads and writes the singleton clinic policy row.
type Store interface {
	Get(ctx context.Context) (Policy, error)
	Update(ctx context.Context, p Policy) (Policy, error)
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Get returns the clinic policy, falling back to defaults when no admin has
// saved settings yet.
func (s *PgStore) Get(ctx context.Context) (Policy, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT slot_minutes, min_advance_hours, max_advance_days,
		       cancel_deadline_hours, allow_same_day_booking,
		       auto_confirm_appointments, maintenance_mode
		FROM clinic_settings
		WHERE id = 1
	`)

	var p Policy
	err := row.Scan(
		&p.SlotMinutes,
		&p.MinAdvanceHours,
		&p.MaxAdvanceDays,
		&p.CancelDeadlineHours,
		&p.AllowSameDayBooking,
		&p.AutoConfirmAppointments,
		&p.MaintenanceMode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Default(), nil
		}
		return Policy{}, fmt.Errorf("load clinic settings: %w", err)
	}

	return p, nil
}

// Update upserts the singleton row and returns the stored policy.
func (s *PgStore) Update(ctx context.Context, p Policy) (Policy, error) {
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO clinic_settings (
			id, slot_minutes, min_advance_hours, max_advance_days,
			cancel_deadline_hours, allow_same_day_booking,
			auto_confirm_appointments, maintenance_mode, updated_at
		)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			slot_minutes = EXCLUDED.slot_minutes,
			min_advance_hours = EXCLUDED.min_advance_hours,
			max_advance_days = EXCLUDED.max_advance_days,
			cancel_deadline_hours = EXCLUDED.cancel_deadline_hours,
			allow_same_day_booking = EXCLUDED.allow_same_day_booking,
			auto_confirm_appointments = EXCLUDED.auto_confirm_appointments,
			maintenance_mode = EXCLUDED.maintenance_mode,
			updated_at = now()
	`, p.SlotMinutes, p.MinAdvanceHours, p.MaxAdvanceDays,
		p.CancelDeadlineHours, p.AllowSameDayBooking,
		p.AutoConfirmAppointments, p.MaintenanceMode)
	if err != nil {
		return Policy{}, fmt.Errorf("save clinic settings: %w", err)
	}

	return p, nil
}
