package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrPatientNotFound      = fmt.Errorf("patient %w", ErrNotFound)
	ErrProfessionalNotFound = fmt.Errorf("professional %w", ErrNotFound)
	ErrAppointmentNotFound  = fmt.Errorf("appointment %w", ErrNotFound)
)

// Repository contains all DB interactions needed by the services.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Ledger reads: dates of active appointments for a professional in
	// [from, to), skipping excludeID when it is not uuid.Nil.
	ListActiveDates(ctx context.Context, professionalID uuid.UUID, from, to time.Time, excludeID uuid.UUID) ([]time.Time, error)
	ListAppointmentsByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// Writes. Both return ErrSlotConflict when the active-slot uniqueness
	// guard rejects the row.
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	RescheduleAppointment(ctx context.Context, id, professionalID uuid.UUID, date time.Time, priceInCents int64) (*Appointment, error)

	// UpdateAppointmentStatus only applies when the row is still in `from`;
	// otherwise it returns ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Expiry worker
	FindOverdueActive(ctx context.Context, before time.Time, limit int) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
