package marketplace

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor periodically sweeps expired listings so escrowed resources make
// it back to sellers without anyone touching the listing.
type Processor struct {
	service       *Service
	sweepInterval time.Duration
}

func NewProcessor(service *Service, sweepInterval time.Duration) *Processor {
	return &Processor{
		service:       service,
		sweepInterval: sweepInterval,
	}
}

// Start begins the sweep loop and blocks until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "expiry_sweep").Logger()
	logger.Info().Dur("interval", p.sweepInterval).Msg("starting expiry sweep")

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down expiry sweep")
			return
		case <-ticker.C:
			if _, err := p.service.SweepExpired(time.Now()); err != nil {
				logger.Error().Err(err).Msg("expiry sweep failed")
			}
		}
	}
}
