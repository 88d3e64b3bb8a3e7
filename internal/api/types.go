package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID      string    `json:"patient_id"`
	ProfessionalID string    `json:"professional_id"`
	ClinicID       string    `json:"clinic_id"`
	Date           time.Time `json:"date"`
	PriceInCents   *int64    `json:"appointment_price_in_cents,omitempty"`
}

type RescheduleAppointmentRequest struct {
	ProfessionalID *string   `json:"professional_id,omitempty"`
	Date           time.Time `json:"date"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	ClinicID       uuid.UUID `json:"clinic_id"`
	Date           time.Time `json:"date"`
	PriceInCents   int64     `json:"appointment_price_in_cents"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	Label string    `json:"label"` // HH:MM, clinic local
}

type DayAvailabilityResponse struct {
	Date  string         `json:"date"` // YYYY-MM-DD, clinic local
	Times []SlotResponse `json:"available_times"`
}

type AvailabilityResponse struct {
	ProfessionalID uuid.UUID                 `json:"professional_id"`
	Days           []DayAvailabilityResponse `json:"days"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		ProfessionalID: a.ProfessionalID,
		ClinicID:       a.ClinicID,
		Date:           a.Date,
		PriceInCents:   a.AppointmentPriceInCents,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toAvailabilityResponse(professionalID uuid.UUID, days []appointment.DayAvailability) AvailabilityResponse {
	resp := AvailabilityResponse{
		ProfessionalID: professionalID,
		Days:           make([]DayAvailabilityResponse, 0, len(days)),
	}
	for _, d := range days {
		day := DayAvailabilityResponse{
			Date:  d.Date.Format(time.DateOnly),
			Times: make([]SlotResponse, 0, len(d.AvailableTimes)),
		}
		for _, t := range d.AvailableTimes {
			day.Times = append(day.Times, SlotResponse{Start: t, Label: t.Format("15:04")})
		}
		resp.Days = append(resp.Days, day)
	}
	return resp
}
