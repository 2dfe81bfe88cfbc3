package activity

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweep runs one retention cycle: prune against the store clock, then flush.
// Flush errors are logged and left for the next cycle.
func (s *Store) Sweep(ctx context.Context) int {
	removed := s.Prune(s.now())

	if err := s.Flush(ctx); err != nil {
		log.Warn().Err(err).Msg("activity log flush failed")
	}

	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("pruned stale activity")
	}
	return removed
}

// RunRetention sweeps every interval until ctx is cancelled. Stopping it only
// stops future pruning; stored events are untouched.
func (s *Store) RunRetention(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Dur("window", s.window).
		Dur("interval", interval).
		Msg("retention started")

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx)
		case <-ctx.Done():
			log.Info().Msg("retention stopped")
			return
		}
	}
}
