package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/timezone"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentExpired     = "APPOINTMENT_EXPIRED"
)

var (
	ErrSlotConflict      = errors.New("slot is no longer free")
	ErrSlotBeingBooked   = fmt.Errorf("%w: slot is currently being booked, please retry", ErrSlotConflict)
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotBookableSlot   = fmt.Errorf("%w: date is not a bookable slot", ErrInvalidInput)
)

type CreateAppointmentInput struct {
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	ClinicID       uuid.UUID
	Date           time.Time
	PriceInCents   *int64 // nil snapshots the professional's current price
}

// Service is the only writer of appointment status and date.
type Service struct {
	repo   Repository
	ledger *Ledger
	locker redisclient.Locker
	cfg    config.Config
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: NewLedger(repo),
		locker: locker,
		cfg:    cfg,
		loc:    timezone.Location(cfg.ClinicTimezone),
		now:    time.Now,
		logger: logger,
	}
}

// CreateAppointment books a slot for a patient. The date must be one of the
// professional's slots; the availability list a client booked from is only
// advisory.
// The Redis lock and the ledger check only fail fast; the partial unique
// index on active appointments is what actually rejects a double booking.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*Appointment, error) {
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	if in.PriceInCents != nil && *in.PriceInCents < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}

	prof, err := s.loadProfessional(ctx, in.ProfessionalID, in.ClinicID)
	if err != nil {
		return nil, err
	}

	patient, err := s.repo.GetPatientByID(ctx, in.PatientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.ClinicID != in.ClinicID {
		return nil, ErrPatientNotFound
	}

	price := prof.AppointmentsPriceInCents
	if in.PriceInCents != nil {
		price = *in.PriceInCents
	}
	date := normalize(in.Date)
	if err := s.checkSlot(prof, date); err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, redisclient.SlotKey(prof.ID, date), func(lockCtx context.Context) error {
		free, err := s.ledger.IsFree(lockCtx, prof.ID, date, uuid.Nil)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if !free {
			return ErrSlotConflict
		}

		appt, err := s.repo.CreateAppointment(lockCtx, Appointment{
			PatientID:               patient.ID,
			ProfessionalID:          prof.ID,
			ClinicID:                in.ClinicID,
			Date:                    date,
			AppointmentPriceInCents: price,
			Status:                  StatusActive,
		})
		if err != nil {
			if errors.Is(err, ErrSlotConflict) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logEvent(ctx, created.ID, EventAppointmentCreated, map[string]any{
		"professional_id": prof.ID.String(),
		"patient_id":      patient.ID.String(),
		"date":            created.Date,
		"price_in_cents":  created.AppointmentPriceInCents,
	})

	return created, nil
}

// RescheduleAppointment moves an active appointment to a new date and,
// optionally, to another professional of the same clinic. Moving onto the
// appointment's own current slot is a no-op.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, newProfessionalID *uuid.UUID, newDate time.Time) (*Appointment, error) {
	if newDate.IsZero() {
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}

	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanReschedule(appt.Status); err != nil {
		return nil, err
	}

	var prof *Professional
	profID := appt.ProfessionalID
	price := appt.AppointmentPriceInCents
	if newProfessionalID != nil && *newProfessionalID != uuid.Nil && *newProfessionalID != appt.ProfessionalID {
		prof, err = s.loadProfessional(ctx, *newProfessionalID, appt.ClinicID)
		if err != nil {
			return nil, err
		}
		profID = prof.ID
		price = prof.AppointmentsPriceInCents
	}

	date := normalize(newDate)
	if profID == appt.ProfessionalID && date.Equal(normalize(appt.Date)) {
		return appt, nil
	}

	if prof == nil {
		if prof, err = s.loadProfessional(ctx, appt.ProfessionalID, appt.ClinicID); err != nil {
			return nil, err
		}
	}
	// Availability may have been read a while ago; the slot is re-checked
	// against the current clock.
	if err := s.checkSlot(prof, date); err != nil {
		return nil, err
	}

	var updated *Appointment

	err = s.locker.WithSlotLock(ctx, redisclient.SlotKey(profID, date), func(lockCtx context.Context) error {
		free, err := s.ledger.IsFree(lockCtx, profID, date, appt.ID)
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		if !free {
			return ErrSlotConflict
		}

		res, err := s.repo.RescheduleAppointment(lockCtx, appt.ID, profID, date, price)
		if err != nil {
			switch {
			case errors.Is(err, ErrSlotConflict):
				return err
			case errors.Is(err, ErrAppointmentNotFound):
				return fmt.Errorf("%w: appointment is no longer active", ErrInvalidTransition)
			}
			return fmt.Errorf("reschedule appointment: %w", err)
		}

		updated = res
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.logEvent(ctx, updated.ID, EventAppointmentRescheduled, map[string]any{
		"from_professional_id": appt.ProfessionalID.String(),
		"from_date":            appt.Date,
		"to_professional_id":   updated.ProfessionalID.String(),
		"to_date":              updated.Date,
	})

	return updated, nil
}

// TransitionAppointment moves an active appointment into a terminal status.
func (s *Service) TransitionAppointment(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, appt, to, "request")
}

func (s *Service) transition(ctx context.Context, appt *Appointment, to Status, reason string) (*Appointment, error) {
	if err := CanTransition(appt.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusActive, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Someone else moved it out of active between our read and write.
			return nil, fmt.Errorf("%w: appointment is no longer active", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, eventFor(to), map[string]any{
		"reason": reason,
	})

	return updated, nil
}

// ExpireOverdueAppointments is intended to be called by the worker periodically.
// It expires active appointments that started more than ExpireGrace ago and
// returns how many it moved.
func (s *Service) ExpireOverdueAppointments(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.ExpireGrace)
	expired := 0

	for {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		batch, err := s.repo.FindOverdueActive(ctx, cutoff, s.cfg.ExpireBatchSize)
		if err != nil {
			return expired, fmt.Errorf("find overdue appointments: %w", err)
		}

		progressed := 0
		for i := range batch {
			_, err := s.transition(ctx, &batch[i], StatusExpired, "worker")
			if err != nil {
				if !errors.Is(err, ErrInvalidTransition) {
					s.logger.Error().
						Err(err).
						Str("appointment_id", batch[i].ID.String()).
						Msg("failed to expire appointment")
				}
				continue
			}
			progressed++
		}
		expired += progressed

		if len(batch) < s.cfg.ExpireBatchSize || progressed == 0 {
			return expired, nil
		}
	}
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.loadAppointment(ctx, id)
}

// ListAppointmentsByProfessional returns every appointment of a
// professional whose date falls in [from, to), any status.
func (s *Service) ListAppointmentsByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", ErrInvalidInput)
	}
	if _, err := s.repo.GetProfessionalByID(ctx, professionalID); err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}

	appts, err := s.repo.ListAppointmentsByProfessional(ctx, professionalID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments by professional: %w", err)
	}
	return appts, nil
}

func (s *Service) loadAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return appt, nil
}

// loadProfessional treats a professional of another clinic as missing.
func (s *Service) loadProfessional(ctx context.Context, id, clinicID uuid.UUID) (*Professional, error) {
	prof, err := s.repo.GetProfessionalByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}
	if prof.ClinicID != clinicID {
		return nil, ErrProfessionalNotFound
	}
	return prof, nil
}

// checkSlot accepts only instants GetAvailability could have offered: inside
// the professional's window, on the granularity grid and not in the past.
func (s *Service) checkSlot(prof *Professional, date time.Time) error {
	if !prof.Window().IsSlot(date.In(s.loc), s.cfg.SlotGranularity, s.now()) {
		return fmt.Errorf("%w: %s for professional %s", ErrNotBookableSlot, date.Format(time.RFC3339), prof.ID)
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn().
			Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
