package schedule

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// TemplateForDoctor loads the doctor's weekly template. A doctor who never
// edited their schedule has no rows and gets the clinic default.
func (s *PgStore) TemplateForDoctor(ctx context.Context, doctorID uuid.UUID) (WeeklyTemplate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT weekday, start_time, end_time
		FROM doctor_work_days
		WHERE doctor_id = $1
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("query work days: %w", err)
	}
	defer rows.Close()

	wt := make(WeeklyTemplate)
	for rows.Next() {
		var dayStr, startStr, endStr string
		if err := rows.Scan(&dayStr, &startStr, &endStr); err != nil {
			return nil, fmt.Errorf("scan work day: %w", err)
		}

		day, err := ParseWeekday(dayStr)
		if err != nil {
			return nil, fmt.Errorf("work day row for doctor %s: %w", doctorID, err)
		}
		start, err := ParseTimeOfDay(startStr)
		if err != nil {
			return nil, fmt.Errorf("work day start for doctor %s: %w", doctorID, err)
		}
		end, err := ParseTimeOfDay(endStr)
		if err != nil {
			return nil, fmt.Errorf("work day end for doctor %s: %w", doctorID, err)
		}

		wt[day] = WorkWindow{Start: start, End: end}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(wt) == 0 {
		return DefaultTemplate(), nil
	}

	return wt, nil
}

// ReplaceTemplate swaps the doctor's full week in one transaction.
func (s *PgStore) ReplaceTemplate(ctx context.Context, doctorID uuid.UUID, template WeeklyTemplate) error {
	if err := template.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace template: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM doctor_work_days WHERE doctor_id = $1
	`, doctorID); err != nil {
		return fmt.Errorf("clear work days: %w", err)
	}

	for _, day := range template.Days() {
		w := template[day]
		if _, err := tx.Exec(ctx, `
			INSERT INTO doctor_work_days (doctor_id, weekday, start_time, end_time, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, doctorID, string(day), w.Start.String(), w.End.String()); err != nil {
			return fmt.Errorf("insert work day %s: %w", day, err)
		}
	}

	return tx.Commit(ctx)
}
