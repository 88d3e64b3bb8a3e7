package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL       string
	Duration         time.Duration
	Workers          int
	BookingRatio     float64
	RescheduleRatio  float64
	CancelRatio      float64
	ReadRatio        float64
	HotProfessionals int // how many professionals all workers compete for
	HotSlots         int // how many of the earliest free slots a booking picks from
	PatientLimit     int
}

type professionalRef struct {
	ID       uuid.UUID
	ClinicID uuid.UUID
}

type DataPool struct {
	Professionals []professionalRef
	Patients      map[uuid.UUID][]uuid.UUID // by clinic
	mu            sync.RWMutex
	appointments  []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("dev", "info", "simulate")
		bootLogger.Fatal().Err(err).Msg("failed to load base config")
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel, "simulate")

	cfg := loadSimConfig()
	if err := validateSimConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid simulation config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("reschedule", cfg.RescheduleRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().Int("professionals", len(dataPool.Professionals)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()

	checkCtx, cancelCheck := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelCheck()

	duplicates, err := countDoubleBookedSlots(checkCtx, pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("invariant check failed")
	}

	fmt.Print(sim.metrics.Report(cfg.Duration, cfg.Workers, duplicates))
	if duplicates > 0 {
		os.Exit(1)
	}
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:       getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:         getDuration("SIM_DURATION", 30*time.Second),
		Workers:          getInt("SIM_WORKERS", 10),
		BookingRatio:     getFloat("SIM_BOOKING_RATIO", 0.4),
		RescheduleRatio:  getFloat("SIM_RESCHEDULE_RATIO", 0.15),
		CancelRatio:      getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:        getFloat("SIM_READ_RATIO", 0.35),
		HotProfessionals: getInt("SIM_HOT_PROFESSIONALS", 5),
		HotSlots:         getInt("SIM_HOT_SLOTS", 4),
		PatientLimit:     getInt("SIM_PATIENT_LIMIT", 4000),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.RescheduleRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.RescheduleRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateSimConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.HotProfessionals <= 0 || cfg.HotSlots <= 0 {
		return fmt.Errorf("SIM_HOT_PROFESSIONALS and SIM_HOT_SLOTS must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{Patients: map[uuid.UUID][]uuid.UUID{}}

	rows, err := pool.Query(ctx, `
		SELECT p.id, p.clinic_id
		FROM professionals p
		WHERE EXISTS (SELECT 1 FROM patients pt WHERE pt.clinic_id = p.clinic_id)
		  AND p.available_from_time < p.available_to_time
		ORDER BY p.created_at
		LIMIT $1
	`, cfg.HotProfessionals)
	if err != nil {
		return nil, fmt.Errorf("load professionals: %w", err)
	}
	for rows.Next() {
		var ref professionalRef
		if err := rows.Scan(&ref.ID, &ref.ClinicID); err != nil {
			rows.Close()
			return nil, err
		}
		dataPool.Professionals = append(dataPool.Professionals, ref)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Professionals) == 0 {
		return nil, fmt.Errorf("no professionals loaded, run cmd/seed first")
	}

	for _, ref := range dataPool.Professionals {
		if _, ok := dataPool.Patients[ref.ClinicID]; ok {
			continue
		}
		rows, err := pool.Query(ctx, `
			SELECT id FROM patients WHERE clinic_id = $1 LIMIT $2
		`, ref.ClinicID, cfg.PatientLimit)
		if err != nil {
			return nil, fmt.Errorf("load patients: %w", err)
		}
		var ids []uuid.UUID
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			ids = append(ids, id)
		}
		rows.Close()
		dataPool.Patients[ref.ClinicID] = ids
	}

	return dataPool, nil
}

// countDoubleBookedSlots returns how many (professional, date) pairs hold
// more than one active appointment. Anything but 0 is a bug.
func countDoubleBookedSlots(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT professional_id, date
			FROM appointments
			WHERE status = 'active'
			GROUP BY professional_id, date
			HAVING count(*) > 1
		) dup
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count double booked slots: %w", err)
	}
	return n, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.RescheduleRatio:
			s.doReschedule(ctx, rng)
		case r < s.config.BookingRatio+s.config.RescheduleRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			if rng.Intn(2) == 0 {
				s.doReadByID(ctx, rng)
			} else {
				prof := s.pool.Professionals[rng.Intn(len(s.pool.Professionals))]
				_, _ = s.fetchSlots(ctx, prof.ID, uuid.Nil)
			}
		}
	}
}

type availabilityResponse struct {
	Days []struct {
		Times []struct {
			Start time.Time `json:"start"`
		} `json:"available_times"`
	} `json:"days"`
}

// fetchSlots returns the earliest free slots of a professional.
func (s *Simulator) fetchSlots(ctx context.Context, profID, excludeID uuid.UUID) ([]time.Time, error) {
	url := fmt.Sprintf("%s/professionals/%s/availability?lookahead_days=3", s.config.APIBaseURL, profID)
	if excludeID != uuid.Nil {
		url += "&exclude_appointment_id=" + excludeID.String()
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Availability.Record(latency, false, false)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.metrics.Availability.Record(latency, false, false)
		return nil, fmt.Errorf("availability status %d", resp.StatusCode)
	}

	var body availabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		s.metrics.Availability.Record(latency, false, false)
		return nil, err
	}
	s.metrics.Availability.Record(latency, true, false)

	var slots []time.Time
	for _, d := range body.Days {
		for _, t := range d.Times {
			slots = append(slots, t.Start)
			if len(slots) == s.config.HotSlots {
				return slots, nil
			}
		}
	}
	return slots, nil
}

func (s *Simulator) post(ctx context.Context, path string, body any) (*http.Response, time.Duration, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	return resp, time.Since(start), err
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	prof := s.pool.Professionals[rng.Intn(len(s.pool.Professionals))]
	patients := s.pool.Patients[prof.ClinicID]
	if len(patients) == 0 {
		return
	}

	slots, err := s.fetchSlots(ctx, prof.ID, uuid.Nil)
	if err != nil || len(slots) == 0 {
		return
	}

	resp, latency, err := s.post(ctx, "/appointments", map[string]any{
		"patient_id":      patients[rng.Intn(len(patients))].String(),
		"professional_id": prof.ID.String(),
		"clinic_id":       prof.ClinicID.String(),
		"date":            slots[rng.Intn(len(slots))],
	})
	if err != nil {
		s.metrics.Booking.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil && created.ID != uuid.Nil {
			s.pool.AddAppointment(created.ID)
		}
		s.metrics.Booking.Record(latency, true, false)
	case http.StatusConflict:
		s.metrics.Booking.Record(latency, false, true)
	default:
		s.metrics.Booking.Record(latency, false, false)
	}
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	appt, ok := s.readAppointment(ctx, apptID)
	if !ok || appt.Status != "active" {
		return
	}

	slots, err := s.fetchSlots(ctx, appt.ProfessionalID, apptID)
	if err != nil || len(slots) == 0 {
		return
	}

	resp, latency, err := s.post(ctx, "/appointments/"+apptID.String()+"/reschedule", map[string]any{
		"date": slots[rng.Intn(len(slots))],
	})
	s.recordTransition(&s.metrics.Reschedule, resp, latency, err)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	resp, latency, err := s.post(ctx, "/appointments/"+apptID.String()+"/cancel", nil)
	s.recordTransition(&s.metrics.Cancel, resp, latency, err)
}

func (s *Simulator) recordTransition(om *OperationMetrics, resp *http.Response, latency time.Duration, err error) {
	if err != nil {
		om.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()
	om.Record(latency, resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusConflict)
}

type appointmentView struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Status         string    `json:"status"`
}

func (s *Simulator) readAppointment(ctx context.Context, id uuid.UUID) (appointmentView, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/appointments/"+id.String(), nil)
	if err != nil {
		return appointmentView{}, false
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.ReadByID.Record(latency, false, false)
		return appointmentView{}, false
	}
	defer resp.Body.Close()

	var view appointmentView
	ok := resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&view) == nil
	s.metrics.ReadByID.Record(latency, ok, false)
	return view, ok
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	if apptID, ok := s.pool.GetRandomAppointment(rng); ok {
		s.readAppointment(ctx, apptID)
	}
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
