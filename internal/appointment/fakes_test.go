package appointment

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
)

// fakeRepo is an in-memory Repository. Like the partial unique index, it
// refuses a second active row for the same professional and instant.
type fakeRepo struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]Patient
	professionals map[uuid.UUID]Professional
	appointments  map[uuid.UUID]Appointment
	events        []EventLog

	// hideActive makes ListActiveDates report nothing, so only the write
	// path guard is left to catch conflicts.
	hideActive bool
	listErr    error
	eventErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:      map[uuid.UUID]Patient{},
		professionals: map[uuid.UUID]Professional{},
		appointments:  map[uuid.UUID]Appointment{},
	}
}

func (r *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *fakeRepo) GetProfessionalByID(_ context.Context, id uuid.UUID) (*Professional, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.professionals[id]
	if !ok {
		return nil, ErrProfessionalNotFound
	}
	return &p, nil
}

func (r *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *fakeRepo) ListActiveDates(_ context.Context, professionalID uuid.UUID, from, to time.Time, excludeID uuid.UUID) ([]time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	if r.hideActive {
		return nil, nil
	}

	var out []time.Time
	for _, a := range r.appointments {
		if a.ProfessionalID != professionalID || a.Status != StatusActive || a.ID == excludeID {
			continue
		}
		if a.Date.Before(from) || !a.Date.Before(to) {
			continue
		}
		out = append(out, a.Date)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (r *fakeRepo) ListAppointmentsByProfessional(_ context.Context, professionalID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.ProfessionalID == professionalID && !a.Date.Before(from) && a.Date.Before(to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// activeClash must be called with mu held.
func (r *fakeRepo) activeClash(professionalID uuid.UUID, date time.Time, self uuid.UUID) bool {
	for _, a := range r.appointments {
		if a.ID != self && a.Status == StatusActive && a.ProfessionalID == professionalID && a.Date.Equal(date) {
			return true
		}
	}
	return false
}

func (r *fakeRepo) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.Status == StatusActive && r.activeClash(a.ProfessionalID, a.Date, uuid.Nil) {
		return nil, ErrSlotConflict
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.appointments[a.ID] = a
	return &a, nil
}

func (r *fakeRepo) RescheduleAppointment(_ context.Context, id, professionalID uuid.UUID, date time.Time, priceInCents int64) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != StatusActive {
		return nil, ErrAppointmentNotFound
	}
	if r.activeClash(professionalID, date, id) {
		return nil, ErrSlotConflict
	}
	a.ProfessionalID = professionalID
	a.Date = date
	a.AppointmentPriceInCents = priceInCents
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *fakeRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *fakeRepo) FindOverdueActive(_ context.Context, before time.Time, limit int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusActive && a.Date.Before(before) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.eventErr != nil {
		return r.eventErr
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

// put stores an appointment as-is, bypassing every guard.
func (r *fakeRepo) put(a Appointment) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.appointments[a.ID] = a
	return a
}

// assertAtMostOneActive fails when two active rows share a professional and instant.
func (r *fakeRepo) assertAtMostOneActive(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := map[string]uuid.UUID{}
	for _, a := range r.appointments {
		if a.Status != StatusActive {
			continue
		}
		key := redisclient.SlotKey(a.ProfessionalID, a.Date)
		if other, ok := seen[key]; ok {
			t.Fatalf("appointments %s and %s are both active at %s", other, a.ID, a.Date)
		}
		seen[key] = a.ID
	}
}

type busyLocker struct{}

func (busyLocker) WithSlotLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// recordingLocker remembers the keys it was asked for.
type recordingLocker struct {
	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) WithSlotLock(ctx context.Context, key string, fn func(context.Context) error) error {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return fn(ctx)
}

// Fixture: one clinic, one patient and a Mon-Fri 08:00-18:00 professional
// charging 10000 cents. "Now" is Wednesday 2024-05-15 09:00 UTC.

var (
	testNow = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	repo     *fakeRepo
	svc      *Service
	avail    *AvailabilityService
	clinicID uuid.UUID
	patient  Patient
	prof     Professional
}

func testConfig() config.Config {
	return config.Config{
		Env:             "test",
		ClinicTimezone:  "UTC",
		SlotGranularity: 30 * time.Minute,
		LookaheadDays:   7,
		MaxLookahead:    30,
		LockTTL:         5 * time.Second,
		ExpireGrace:     24 * time.Hour,
		ExpireBatchSize: 2,
	}
}

func mustTime(t *testing.T, s string) schedule.TimeOfDay {
	t.Helper()
	tod, err := schedule.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("ParseTimeOfDay(%q): %v", s, err)
	}
	return tod
}

func newFixture(t *testing.T, locker redisclient.Locker) *fixture {
	t.Helper()

	repo := newFakeRepo()
	clinicID := uuid.New()

	patient := Patient{ID: uuid.New(), ClinicID: clinicID, Name: "Ana Souza"}
	repo.patients[patient.ID] = patient

	prof := Professional{
		ID:                       uuid.New(),
		ClinicID:                 clinicID,
		Name:                     "Dr. Carlos Lima",
		AvailableFromWeekDay:     int(time.Monday),
		AvailableToWeekDay:       int(time.Friday),
		AvailableFromTime:        mustTime(t, "08:00"),
		AvailableToTime:          mustTime(t, "18:00"),
		AppointmentsPriceInCents: 10000,
	}
	repo.professionals[prof.ID] = prof

	if locker == nil {
		locker = redisclient.NoopLocker{}
	}

	cfg := testConfig()
	clock := func() time.Time { return testNow }

	svc := NewService(repo, locker, cfg, zerolog.Nop())
	svc.now = clock

	avail := NewAvailabilityService(repo, cfg, zerolog.Nop())
	avail.now = clock

	return &fixture{
		repo:     repo,
		svc:      svc,
		avail:    avail,
		clinicID: clinicID,
		patient:  patient,
		prof:     prof,
	}
}

func (f *fixture) addProfessional(p Professional) Professional {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.repo.professionals[p.ID] = p
	return p
}

func (f *fixture) book(t *testing.T, at time.Time) *Appointment {
	t.Helper()
	appt, err := f.svc.CreateAppointment(context.Background(), CreateAppointmentInput{
		PatientID:      f.patient.ID,
		ProfessionalID: f.prof.ID,
		ClinicID:       f.clinicID,
		Date:           at,
	})
	if err != nil {
		t.Fatalf("CreateAppointment(%s): %v", at, err)
	}
	return appt
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 5, day, hour, minute, 0, 0, time.UTC)
}
