package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/timezone"
)

type AvailabilityQuery struct {
	ProfessionalID       uuid.UUID
	LookaheadDays        int       // 0 uses the configured default
	ExcludeAppointmentID uuid.UUID // set when computing slots for a reschedule
	Now                  time.Time // zero uses the service clock
}

// AvailabilityService computes bookable slots per day for booking UIs.
type AvailabilityService struct {
	repo   Repository
	ledger *Ledger
	cfg    config.Config
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

func NewAvailabilityService(repo Repository, cfg config.Config, logger zerolog.Logger) *AvailabilityService {
	return &AvailabilityService{
		repo:   repo,
		ledger: NewLedger(repo),
		cfg:    cfg,
		loc:    timezone.Location(cfg.ClinicTimezone),
		now:    time.Now,
		logger: logger,
	}
}

// GetAvailability walks [today, today+lookahead) in clinic-local days and
// returns only the days with at least one free slot.
func (s *AvailabilityService) GetAvailability(ctx context.Context, q AvailabilityQuery) ([]DayAvailability, error) {
	prof, err := s.repo.GetProfessionalByID(ctx, q.ProfessionalID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}

	result := []DayAvailability{}

	window := prof.Window()
	if err := window.Validate(); err != nil {
		s.logger.Debug().
			Err(err).
			Str("professional_id", prof.ID.String()).
			Msg("professional has no usable availability window")
		return result, nil
	}

	now := q.Now
	if now.IsZero() {
		now = s.now()
	}
	now = now.In(s.loc)

	days := s.lookahead(q.LookaheadDays)
	today := timezone.StartOfDay(now, s.loc)
	rangeEnd := today.AddDate(0, 0, days)

	// One read for the whole range keeps every day consistent with the
	// same committed state.
	occupied, err := s.ledger.ActiveTimes(ctx, prof.ID, today, rangeEnd, q.ExcludeAppointmentID)
	if err != nil {
		return nil, err
	}

	for i := 0; i < days; i++ {
		day := today.AddDate(0, 0, i)
		free := FilterFree(window.DaySlots(day, s.cfg.SlotGranularity, now), occupied)
		if len(free) == 0 {
			continue
		}
		result = append(result, DayAvailability{Date: day, AvailableTimes: free})
	}

	return result, nil
}

func (s *AvailabilityService) lookahead(requested int) int {
	if requested <= 0 {
		return s.cfg.LookaheadDays
	}
	if s.cfg.MaxLookahead > 0 && requested > s.cfg.MaxLookahead {
		return s.cfg.MaxLookahead
	}
	return requested
}
