package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/testprep-api/internal/domain/repository"
)

// SessionJanitor periodically removes sessions that were started but never finalized.
type SessionJanitor struct {
	scheduler   *gocron.Scheduler
	sessionRepo repository.SessionRepository
	staleAfter  time.Duration
	interval    time.Duration
	now         func() time.Time
}

func NewSessionJanitor(sessionRepo repository.SessionRepository, staleAfter, interval time.Duration) (*SessionJanitor, error) {
	if sessionRepo == nil {
		return nil, fmt.Errorf("SessionRepository is required for SessionJanitor")
	}
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &SessionJanitor{
		scheduler:   gocron.NewScheduler(time.UTC),
		sessionRepo: sessionRepo,
		staleAfter:  staleAfter,
		interval:    interval,
		now:         time.Now,
	}, nil
}

// Start schedules the sweep and runs it once immediately.
func (j *SessionJanitor) Start() error {
	minutes := int(j.interval / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if _, err := j.scheduler.Every(minutes).Minutes().Do(j.sweep); err != nil {
		return fmt.Errorf("failed to schedule session janitor: %w", err)
	}
	j.scheduler.StartAsync()
	log.Info().Msgf("[SessionJanitor] started: every %d min, stale after %s", minutes, j.staleAfter)
	return nil
}

func (j *SessionJanitor) Stop() {
	j.scheduler.Stop()
}

func (j *SessionJanitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := j.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("[SessionJanitor] sweep failed")
	}
}

// Sweep deletes sessions created more than staleAfter ago and returns how many were removed.
func (j *SessionJanitor) Sweep(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.staleAfter)
	deleted, err := j.sessionRepo.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Info().Msgf("[SessionJanitor] removed %d sessions created before %s", deleted, cutoff.Format(time.RFC3339))
	}
	return deleted, nil
}
