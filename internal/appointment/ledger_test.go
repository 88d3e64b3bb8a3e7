package appointment

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestOccupied_IgnoresSubSecond(t *testing.T) {
	o := NewOccupied(at(15, 9, 0).Add(400 * time.Millisecond))

	if !o.Has(at(15, 9, 0)) {
		t.Fatal("expected 09:00 to be occupied")
	}
	if o.Has(at(15, 9, 30)) {
		t.Fatal("09:30 must be free")
	}
}

func TestFilterFree(t *testing.T) {
	candidates := slices.Values([]time.Time{at(15, 9, 0), at(15, 9, 30), at(15, 10, 0)})
	occupied := NewOccupied(at(15, 9, 30), at(16, 9, 30))

	got := FilterFree(candidates, occupied)
	want := []time.Time{at(15, 9, 0), at(15, 10, 0)}
	if !slices.EqualFunc(got, want, time.Time.Equal) {
		t.Fatalf("FilterFree = %v, want %v", got, want)
	}
}

func TestLedger_IsFree(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ledger := NewLedger(f.repo)

	appt := f.book(t, at(16, 10, 0))

	free, err := ledger.IsFree(ctx, f.prof.ID, at(16, 10, 0), uuid.Nil)
	if err != nil {
		t.Fatalf("IsFree: %v", err)
	}
	if free {
		t.Fatal("booked slot reported free")
	}

	free, err = ledger.IsFree(ctx, f.prof.ID, at(16, 10, 0), appt.ID)
	if err != nil {
		t.Fatalf("IsFree with exclude: %v", err)
	}
	if !free {
		t.Fatal("an appointment must not occupy its own slot when excluded")
	}

	free, err = ledger.IsFree(ctx, uuid.New(), at(16, 10, 0), uuid.Nil)
	if err != nil {
		t.Fatalf("IsFree other professional: %v", err)
	}
	if !free {
		t.Fatal("slot of another professional must be free")
	}
}

func TestLedger_IgnoresTerminalAppointments(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, st := range []Status{StatusCancelled, StatusCompleted, StatusExpired} {
		f.repo.put(Appointment{ProfessionalID: f.prof.ID, ClinicID: f.clinicID, Date: at(17, 8, 0), Status: st})
	}

	occupied, err := NewLedger(f.repo).ActiveTimes(ctx, f.prof.ID, at(17, 0, 0), at(18, 0, 0), uuid.Nil)
	if err != nil {
		t.Fatalf("ActiveTimes: %v", err)
	}
	if len(occupied) != 0 {
		t.Fatalf("terminal appointments occupy %d slots", len(occupied))
	}
}

func TestLedger_PropagatesRepoError(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("db down")
	f.repo.listErr = boom

	_, err := NewLedger(f.repo).IsFree(context.Background(), f.prof.ID, at(16, 10, 0), uuid.Nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}
