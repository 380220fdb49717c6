package poller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tomlapa/paris-transit-dashboard/internal/clock"
	"github.com/tomlapa/paris-transit-dashboard/internal/idfm"
	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/metrics"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// Fleet polls every monitored stop in parallel and assembles the results
// into one immutable FleetSnapshot.
type Fleet struct {
	fetcher *Fetcher
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewFleet builds a Fleet over the given fetcher.
func NewFleet(fetcher *Fetcher, m *metrics.Metrics, clk clock.Clock, logger *slog.Logger) *Fleet {
	return &Fleet{
		fetcher: fetcher,
		clock:   clk,
		metrics: m,
		logger:  logger.With(slog.String("component", "fleet")),
	}
}

// PollAll fetches all stops concurrently, one goroutine per target, and
// returns a snapshot with an entry for every requested target. A panic in one
// fetch becomes that target's error snapshot; the others are unaffected.
func (p *Fleet) PollAll(ctx context.Context, stops []models.MonitoredStop) *models.FleetSnapshot {
	started := p.clock.Now()
	snapshot := models.NewFleetSnapshot(started.In(idfm.ParisLocation))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, stop := range stops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logging.LogError(p.logger, "panic while fetching stop", nil,
						slog.String("stop_id", stop.ID),
						slog.Any("panic", r))
					failed := models.NewErrorSnapshot(stop, p.clock.NowInParis(), models.InternalErrorMessage)
					mu.Lock()
					snapshot.Stops[stop.Key()] = failed
					mu.Unlock()
				}
			}()

			result := p.fetcher.Fetch(ctx, stop)
			mu.Lock()
			snapshot.Stops[stop.Key()] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	errored := 0
	for _, stopSnapshot := range snapshot.Stops {
		if stopSnapshot.Error != "" {
			errored++
		}
	}
	p.metrics.PollCyclesTotal.Inc()
	p.metrics.PollCycleDuration.Observe(p.clock.Since(started).Seconds())
	p.metrics.MonitoredStops.Set(float64(len(stops)))
	p.metrics.StopsInError.Set(float64(errored))

	return snapshot
}
