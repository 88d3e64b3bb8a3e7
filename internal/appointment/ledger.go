package appointment

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
)

// Occupied is the set of instants a professional is actively booked at.
type Occupied map[int64]struct{}

func NewOccupied(dates ...time.Time) Occupied {
	o := make(Occupied, len(dates))
	for _, d := range dates {
		o.Add(d)
	}
	return o
}

func (o Occupied) Add(t time.Time) { o[normalize(t).Unix()] = struct{}{} }

func (o Occupied) Has(t time.Time) bool {
	_, ok := o[normalize(t).Unix()]
	return ok
}

// Ledger answers slot occupancy questions from the persisted active
// appointments. It is read-only; writes go through Service.
type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// ActiveTimes returns the occupied instants of a professional in [from, to).
// The row identified by excludeID (if any) is left out so an appointment
// being rescheduled does not collide with itself.
func (l *Ledger) ActiveTimes(ctx context.Context, professionalID uuid.UUID, from, to time.Time, excludeID uuid.UUID) (Occupied, error) {
	dates, err := l.repo.ListActiveDates(ctx, professionalID, from, to, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list active dates: %w", err)
	}
	return NewOccupied(dates...), nil
}

func (l *Ledger) IsFree(ctx context.Context, professionalID uuid.UUID, at time.Time, excludeID uuid.UUID) (bool, error) {
	at = normalize(at)
	occupied, err := l.ActiveTimes(ctx, professionalID, at, at.Add(time.Second), excludeID)
	if err != nil {
		return false, err
	}
	return !occupied.Has(at), nil
}

// FilterFree drops occupied instants from candidates, keeping their order.
func FilterFree(candidates iter.Seq[time.Time], occupied Occupied) []time.Time {
	var free []time.Time
	for t := range candidates {
		if !occupied.Has(t) {
			free = append(free, t)
		}
	}
	return free
}

// normalize truncates to whole seconds; slot instants never carry a
// sub-second part and Postgres keeps only microseconds.
func normalize(t time.Time) time.Time {
	return t.Truncate(time.Second)
}
