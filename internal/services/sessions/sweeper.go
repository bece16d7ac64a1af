package sessions

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Sweeper periodically removes expired sessions from a Store
type Sweeper struct {
	store    *Store
	cron     *cron.Cron
	interval time.Duration
	logger   arbor.ILogger
}

// NewSweeper creates a sweeper that runs every interval
func NewSweeper(store *Store, interval time.Duration, logger arbor.ILogger) *Sweeper {
	return &Sweeper{
		store:    store,
		cron:     cron.New(),
		interval: interval,
		logger:   logger,
	}
}

// Start schedules the sweep. A non-positive interval leaves sweeping disabled.
func (w *Sweeper) Start() error {
	if w.interval <= 0 {
		w.logger.Info().Msg("Session sweeper disabled")
		return nil
	}

	if _, err := w.cron.AddFunc(fmt.Sprintf("@every %s", w.interval), w.sweep); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}
	w.cron.Start()

	w.logger.Info().Dur("interval", w.interval).Msg("Session sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (w *Sweeper) Stop() {
	<-w.cron.Stop().Done()
}

func (w *Sweeper) sweep() {
	removed := w.store.Sweep(time.Now())
	if removed > 0 {
		w.logger.Debug().
			Int("removed", removed).
			Int("remaining", w.store.Len()).
			Msg("Swept expired sessions")
	}
}
