package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

const (
	pgUniqueViolation    = "23505"
	activeSlotConstraint = "appointments_active_slot_uniq"
)

const appointmentColumns = `id, patient_id, professional_id, clinic_id, date, appointment_price_in_cents, status, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	var fromTime, toTime pgtype.Time

	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.Name,
		&p.Speciality,
		&p.AvailableFromWeekDay,
		&p.AvailableToWeekDay,
		&fromTime,
		&toTime,
		&p.AppointmentsPriceInCents,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}

	p.AvailableFromTime = timeOfDayFromPg(fromTime)
	p.AvailableToTime = timeOfDayFromPg(toTime)
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProfessionalID,
		&a.ClinicID,
		&a.Date,
		&a.AppointmentPriceInCents,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

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

func timeOfDayFromPg(t pgtype.Time) schedule.TimeOfDay {
	if !t.Valid {
		return 0
	}
	return schedule.TimeOfDay(time.Duration(t.Microseconds) * time.Microsecond)
}

func timeOfDayToPg(t schedule.TimeOfDay) pgtype.Time {
	return pgtype.Time{Microseconds: time.Duration(t).Microseconds(), Valid: true}
}

// mapWriteErr turns a violation of the active-slot index into ErrSlotConflict.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == activeSlotConstraint {
		return ErrSlotConflict
	}
	return err
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, speciality,
		       available_from_week_day, available_to_week_day,
		       available_from_time, available_to_time,
		       appointment_price_in_cents, created_at, updated_at
		FROM professionals
		WHERE id = $1
	`, id)
	return scanProfessional(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveDates(ctx context.Context, professionalID uuid.UUID, from, to time.Time, excludeID uuid.UUID) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT date
		FROM appointments
		WHERE professional_id = $1
		  AND status = 'active'
		  AND date >= $2
		  AND date < $3
		  AND id <> $4
		ORDER BY date
	`, professionalID, from, to, excludeID)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[time.Time])
}

func (r *PgRepository) ListAppointmentsByProfessional(ctx context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
		  AND date >= $2
		  AND date < $3
		ORDER BY date, created_at
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}

	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, professional_id, clinic_id, date, appointment_price_in_cents, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ProfessionalID, a.ClinicID, a.Date, a.AppointmentPriceInCents, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return created, nil
}

func (r *PgRepository) RescheduleAppointment(ctx context.Context, id, professionalID uuid.UUID, date time.Time, priceInCents int64) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET professional_id = $2,
		    date = $3,
		    appointment_price_in_cents = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'active'
		RETURNING `+appointmentColumns,
		id, professionalID, date, priceInCents)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return updated, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) FindOverdueActive(ctx context.Context, before time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'active'
		  AND date < $1
		ORDER BY date
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}

	return collectAppointments(rows)
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

// Seeding writes. These sit outside Repository; only cmd/seed and the
// simulator create directory rows.

func (r *PgRepository) CreateClinic(ctx context.Context, c Clinic) (*Clinic, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO clinics (id, name, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		RETURNING id, name, created_at, updated_at
	`, c.ID, c.Name).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert clinic: %w", err)
	}
	return &c, nil
}

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, clinic_id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING id, clinic_id, name, email, created_at, updated_at
	`, p.ID, p.ClinicID, p.Name, p.Email)

	created, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return created, nil
}

func (r *PgRepository) CreateProfessional(ctx context.Context, p Professional) (*Professional, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO professionals (id, clinic_id, name, speciality,
		                           available_from_week_day, available_to_week_day,
		                           available_from_time, available_to_time,
		                           appointment_price_in_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING id, clinic_id, name, speciality,
		          available_from_week_day, available_to_week_day,
		          available_from_time, available_to_time,
		          appointment_price_in_cents, created_at, updated_at
	`, p.ID, p.ClinicID, p.Name, p.Speciality,
		p.AvailableFromWeekDay, p.AvailableToWeekDay,
		timeOfDayToPg(p.AvailableFromTime), timeOfDayToPg(p.AvailableToTime),
		p.AppointmentsPriceInCents)

	created, err := scanProfessional(row)
	if err != nil {
		return nil, fmt.Errorf("insert professional: %w", err)
	}
	return created, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
