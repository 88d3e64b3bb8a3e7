package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusCompleted Status = "completed"
)

type Clinic struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Professional struct {
	ID                       uuid.UUID
	ClinicID                 uuid.UUID
	Name                     string
	Speciality               *string
	AvailableFromWeekDay     int
	AvailableToWeekDay       int
	AvailableFromTime        schedule.TimeOfDay
	AvailableToTime          schedule.TimeOfDay
	AppointmentsPriceInCents int64
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// Window is the professional's recurring weekly availability.
func (p *Professional) Window() schedule.Window {
	return schedule.Window{
		FromWeekday: time.Weekday(p.AvailableFromWeekDay),
		ToWeekday:   time.Weekday(p.AvailableToWeekDay),
		FromTime:    p.AvailableFromTime,
		ToTime:      p.AvailableToTime,
	}
}

type Appointment struct {
	ID                      uuid.UUID
	PatientID               uuid.UUID
	ProfessionalID          uuid.UUID
	ClinicID                uuid.UUID
	Date                    time.Time
	AppointmentPriceInCents int64
	Status                  Status
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// DayAvailability lists the free slot instants of one clinic-local day.
type DayAvailability struct {
	Date           time.Time
	AvailableTimes []time.Time
}
