package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/digihealth/clinic-scheduler/internal/db"
	"github.com/digihealth/clinic-scheduler/internal/policy"
	"github.com/digihealth/clinic-scheduler/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, 25)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedWorkDays(context.Background(), pool, doctorIDs); err != nil {
		log.Fatalf("seed work days: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 500); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSettings(context.Background(), pool); err != nil {
		log.Fatalf("seed settings: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		if _, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

// seedWorkDays gives a third of the doctors a custom template; the rest fall
// back to the application default.
func seedWorkDays(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	store := schedule.NewPgStore(pool)

	templates := []schedule.WeeklyTemplate{
		mustTemplate(map[schedule.Weekday][2]string{
			schedule.Mon: {"08:00", "14:00"},
			schedule.Tue: {"08:00", "14:00"},
			schedule.Thu: {"12:00", "20:00"},
			schedule.Fri: {"08:00", "12:00"},
		}),
		mustTemplate(map[schedule.Weekday][2]string{
			schedule.Tue: {"10:00", "18:00"},
			schedule.Wed: {"10:00", "18:00"},
			schedule.Sat: {"09:00", "13:00"},
		}),
	}

	customized := 0
	for i, id := range doctorIDs {
		if i%3 != 0 {
			continue
		}
		template := templates[gofakeit.Number(0, len(templates)-1)]
		if err := store.ReplaceTemplate(ctx, id, template); err != nil {
			return err
		}
		customized++
	}

	log.Printf("customized work days for %d doctors", customized)
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()
		onboarding := gofakeit.Bool()

		if _, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, onboarding_pending, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, email, onboarding); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedSettings(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("seeding clinic settings")
	_, err := policy.NewPgStore(pool).Update(ctx, policy.Default())
	return err
}

func mustTemplate(days map[schedule.Weekday][2]string) schedule.WeeklyTemplate {
	wt := make(schedule.WeeklyTemplate, len(days))
	for day, hours := range days {
		start, err := schedule.ParseTimeOfDay(hours[0])
		if err != nil {
			log.Fatalf("bad template time %q: %v", hours[0], err)
		}
		end, err := schedule.ParseTimeOfDay(hours[1])
		if err != nil {
			log.Fatalf("bad template time %q: %v", hours[1], err)
		}
		wt[day] = schedule.WorkWindow{Start: start, End: end}
	}
	if err := wt.Validate(); err != nil {
		log.Fatalf("bad template: %v", err)
	}
	return wt
}
