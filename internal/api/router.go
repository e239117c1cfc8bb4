package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/digihealth/clinic-scheduler/internal/booking"
	"github.com/digihealth/clinic-scheduler/internal/notifier"
	"github.com/digihealth/clinic-scheduler/internal/policy"
	"github.com/digihealth/clinic-scheduler/internal/schedule"
	"github.com/digihealth/clinic-scheduler/pkg/logging"
)

// BookingService is the slice of the booking ledger the HTTP layer needs.
type BookingService interface {
	Availability(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]schedule.TimeOfDay, error)
	SchedulePolicy(ctx context.Context, doctorID uuid.UUID) (schedule.WeeklyTemplate, policy.Policy, error)
	Reserve(ctx context.Context, doctorID uuid.UUID, date time.Time, slot schedule.TimeOfDay, patientID uuid.UUID, reason string) (*booking.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*booking.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]booking.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to *time.Time) ([]booking.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to booking.Status, actor booking.Actor, reason string) (*booking.Appointment, error)
	UpdateDetails(ctx context.Context, id uuid.UUID, fields booking.DetailUpdate) (*booking.Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, newDate time.Time, newTime schedule.TimeOfDay, actor booking.Actor) (*booking.Appointment, error)
	DashboardSummary(ctx context.Context, doctorID uuid.UUID) (booking.Summary, error)
}

type RouterConfig struct {
	Service   BookingService
	Schedules schedule.Store
	Policies  policy.Store
	Hub       *notifier.Hub
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Registry  *prometheus.Registry
	Env       string
	Version   string
	Logger    *logging.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Get("/availability", availabilityHandler(cfg.Service))
		r.Get("/schedule-policy", schedulePolicyHandler(cfg.Service))
		r.Put("/work-days", updateWorkDaysHandler(cfg.Schedules))
		r.Get("/dashboard", dashboardHandler(cfg.Service))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Service))
		r.Get("/", listAppointmentsHandler(cfg.Service))
		r.Get("/{id}", getAppointmentHandler(cfg.Service))
		r.Put("/{id}/status", updateStatusHandler(cfg.Service))
		r.Put("/{id}/details", updateDetailsHandler(cfg.Service))
		r.Post("/{id}/reschedule", rescheduleHandler(cfg.Service))
	})

	r.Route("/admin/settings", func(r chi.Router) {
		r.Get("/", getSettingsHandler(cfg.Policies))
		r.Put("/", updateSettingsHandler(cfg.Policies))
	})

	if cfg.Hub != nil {
		r.Get("/ws", notifier.ServeWS(cfg.Hub, logger))
	}

	return r
}
