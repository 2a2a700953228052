/*
scheduler.go - Automated status-refresh scheduler

PURPOSE:
  Periodically re-resolves installment statuses so installments whose
  due date has passed become overdue without waiting for a manual
  refresh, and newly overdue ones reach the reminder dispatcher.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each tick calls the service's RefreshStatuses as of today
  - Resolution is idempotent, so overlapping manual and scheduled
    refreshes are harmless

CONFIGURATION:
  - CheckInterval: How often to refresh (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewRefreshScheduler(service, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RefreshStatuses endpoint (manual refresh)
  - finance/service.go: RefreshStatuses semantics
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/expocrm/finance-engine/finance"
	"github.com/rs/zerolog"
)

// RefreshScheduler drives periodic installment status refresh.
type RefreshScheduler struct {
	Service       *finance.Service
	CheckInterval time.Duration
	Enabled       bool

	// Now is swappable for tests.
	Now func() finance.Date

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRefreshScheduler creates a scheduler with the default hourly interval.
func NewRefreshScheduler(service *finance.Service, log zerolog.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		Service:       service,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		Now:           finance.Today,
		log:           log,
		stop:          make(chan struct{}),
	}
}

// Start begins the background refresh loop.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.log.Info().Msg("refresh scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	rs.log.Info().Dur("interval", rs.CheckInterval).Msg("refresh scheduler started")
}

// Stop stops the scheduler and waits for an in-flight refresh to finish.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.log.Info().Msg("refresh scheduler stopped")
	}
}

func (rs *RefreshScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.refresh()

	for {
		select {
		case <-rs.ticker.C:
			rs.refresh()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RefreshScheduler) refresh() {
	now := rs.Now()
	overdue, err := rs.Service.RefreshStatuses(context.Background(), now)
	if err != nil {
		rs.log.Error().Err(err).Msg("scheduled status refresh failed")
		return
	}
	if len(overdue) > 0 {
		rs.log.Info().
			Str("as_of", now.String()).
			Int("newly_overdue", len(overdue)).
			Msg("scheduled status refresh completed")
	}
}

// RunNow triggers an immediate refresh (for testing/admin).
func (rs *RefreshScheduler) RunNow() {
	rs.refresh()
}
