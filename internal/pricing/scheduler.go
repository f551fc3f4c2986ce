package pricing

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs the price fluctuation step on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
}

func NewScheduler(service *Service) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: service,
	}
}

// Start registers the fluctuation job under the given cron spec (standard
// five-field specs and @every descriptors) and starts the scheduler.
func (s *Scheduler) Start(spec string) error {
	logger := log.With().Str("component", "price_scheduler").Logger()

	_, err := s.cron.AddFunc(spec, func() {
		if _, err := s.service.UpdatePrices(time.Now()); err != nil {
			logger.Error().Err(err).Msg("scheduled price update failed")
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info().Str("schedule", spec).Msg("price scheduler started")
	return nil
}

// Stop stops the scheduler, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
