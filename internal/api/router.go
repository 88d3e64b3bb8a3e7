package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type AppointmentService interface {
	CreateAppointment(ctx context.Context, in appointment.CreateAppointmentInput) (*appointment.Appointment, error)
	RescheduleAppointment(ctx context.Context, id uuid.UUID, newProfessionalID *uuid.UUID, newDate time.Time) (*appointment.Appointment, error)
	TransitionAppointment(ctx context.Context, id uuid.UUID, to appointment.Status) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointmentsByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]appointment.Appointment, error)
}

type AvailabilityService interface {
	GetAvailability(ctx context.Context, q appointment.AvailabilityQuery) ([]appointment.DayAvailability, error)
}

type RouterConfig struct {
	Appointments AppointmentService
	Availability AvailabilityService
	Postgres     Pinger
	Redis        Pinger
	Logger       zerolog.Logger
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/professionals/{id}", func(r chi.Router) {
		r.Get("/availability", getAvailabilityHandler(cfg.Availability))
		r.Get("/appointments", listProfessionalAppointmentsHandler(cfg.Appointments))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Appointments))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/reschedule", rescheduleAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/cancel", transitionAppointmentHandler(cfg.Appointments, appointment.StatusCancelled))
		r.Post("/{id}/complete", transitionAppointmentHandler(cfg.Appointments, appointment.StatusCompleted))
		r.Post("/{id}/expire", transitionAppointmentHandler(cfg.Appointments, appointment.StatusExpired))
	})

	return r
}
