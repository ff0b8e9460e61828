package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically purges expired sessions from the store. Expiry is
// owned here; the dispatcher never deletes sessions itself.
type Sweeper struct {
	store  Store
	ttl    time.Duration
	cron   *cron.Cron
	logger zerolog.Logger
}

// NewSweeper creates a sweeper that deletes sessions older than ttl on the
// given cron schedule (e.g. "@hourly").
func NewSweeper(store Store, ttl time.Duration, schedule string, logger zerolog.Logger) (*Sweeper, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be positive")
	}

	s := &Sweeper{
		store:  store,
		ttl:    ttl,
		cron:   cron.New(),
		logger: logger.With().Str("component", "session-sweeper").Logger(),
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins the sweep schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info().Dur("ttl", s.ttl).Msg("Session sweeper started")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Session sweeper stopped")
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := s.store.DeleteExpired(ctx, time.Now().Add(-s.ttl))
	if err != nil {
		s.logger.Error().Err(err).Msg("Session sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Expired sessions purged")
	}
}
