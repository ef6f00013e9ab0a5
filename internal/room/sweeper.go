// internal/room/sweeper.go
package room

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// DefaultSweepInterval is how often the periodic sweep runs.
const DefaultSweepInterval = 30 * time.Second

// Sweeper periodically moves stale non-terminal rooms to EXPIRED. It is a
// backstop for the lazy expiry done on access: redundant runs are safe, and a
// sweep never reverses a FINISHED or already-EXPIRED room.
type Sweeper struct {
	store    Store
	clock    clockwork.Clock
	interval time.Duration
	logger   *log.Logger

	stop chan struct{}
	done chan struct{}
}

func NewSweeper(store Store, clock clockwork.Clock, interval time.Duration, logger *log.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Sweeper{
		store:    store,
		clock:    clock,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Sweep runs one pass and returns how many rooms were expired.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.ExpireRooms(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.WithField("count", n).Info("expired stale rooms")
	}
	return n, nil
}

// Start launches the periodic sweep loop. Call Stop to shut it down.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := s.clock.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.WithError(err).Warn("room sweep failed")
				}
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}
