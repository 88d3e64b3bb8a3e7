package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

type seedOptions struct {
	clinics       int
	professionals int
	patients      int
	seed          uint64
}

// directory is the write side the seeder needs; PgRepository provides it.
type directory interface {
	CreateClinic(ctx context.Context, c appointment.Clinic) (*appointment.Clinic, error)
	CreateProfessional(ctx context.Context, p appointment.Professional) (*appointment.Professional, error)
	CreatePatient(ctx context.Context, p appointment.Patient) (*appointment.Patient, error)
}

var specialities = []string{
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

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := seedOptions{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with fake clinics, professionals and patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.clinics <= 0 {
				return fmt.Errorf("--clinics must be > 0")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.New(cfg.Env, cfg.LogLevel, "seed")

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()

			pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			if err := db.EnsureSchema(ctx, pool); err != nil {
				return err
			}

			return seed(ctx, appointment.NewPgRepository(pool), gofakeit.New(opts.seed), opts, logger)
		},
	}

	cmd.Flags().IntVar(&opts.clinics, "clinics", 3, "number of clinics")
	cmd.Flags().IntVar(&opts.professionals, "professionals", 10, "professionals per clinic")
	cmd.Flags().IntVar(&opts.patients, "patients", 300, "patients per clinic")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed, 0 picks one")

	return cmd
}

func seed(ctx context.Context, dir directory, faker *gofakeit.Faker, opts seedOptions, logger zerolog.Logger) error {
	logger.Info().
		Int("clinics", opts.clinics).
		Int("professionals_per_clinic", opts.professionals).
		Int("patients_per_clinic", opts.patients).
		Msg("seed starting")

	for i := 0; i < opts.clinics; i++ {
		clinic, err := dir.CreateClinic(ctx, appointment.Clinic{Name: faker.Company() + " Clinic"})
		if err != nil {
			return err
		}

		for j := 0; j < opts.professionals; j++ {
			if _, err := dir.CreateProfessional(ctx, fakeProfessional(faker, clinic.ID)); err != nil {
				return err
			}
		}

		for j := 0; j < opts.patients; j++ {
			email := faker.Email()
			p := appointment.Patient{ClinicID: clinic.ID, Name: faker.Name(), Email: &email}
			if _, err := dir.CreatePatient(ctx, p); err != nil {
				return err
			}
		}

		logger.Info().Str("clinic_id", clinic.ID.String()).Str("name", clinic.Name).Msg("clinic seeded")
	}

	logger.Info().Msg("seed complete")
	return nil
}

// fakeProfessional draws a weekly window. Most work weekdays; some windows
// wrap past Saturday.
func fakeProfessional(faker *gofakeit.Faker, clinicID uuid.UUID) appointment.Professional {
	from := faker.Number(0, 6)
	to := faker.Number(0, 6)
	if faker.Number(1, 10) <= 7 {
		from, to = 1, 5
	}

	startHour := faker.Number(7, 10)
	endHour := startHour + faker.Number(4, 10)
	if endHour > 22 {
		endHour = 22
	}

	speciality := faker.RandomString(specialities)

	return appointment.Professional{
		ClinicID:                 clinicID,
		Name:                     "Dr. " + faker.Name(),
		Speciality:               &speciality,
		AvailableFromWeekDay:     from,
		AvailableToWeekDay:       to,
		AvailableFromTime:        schedule.NewTimeOfDay(startHour, 0, 0),
		AvailableToTime:          schedule.NewTimeOfDay(endHour, 0, 0),
		AppointmentsPriceInCents: int64(faker.Number(10, 80)) * 500,
	}
}
