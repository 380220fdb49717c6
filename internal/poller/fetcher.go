// Package poller drives the real-time side of the dashboard: fetching
// departures for each monitored stop with retry and caching, fanning out over
// the whole fleet every cycle, and supervising the long-running poll loop.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomlapa/paris-transit-dashboard/internal/clock"
	"github.com/tomlapa/paris-transit-dashboard/internal/idfm"
	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/metrics"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
	"github.com/tomlapa/paris-transit-dashboard/internal/prim"
)

const (
	// cacheTTL is how long a terminal snapshot satisfies repeat fetches.
	cacheTTL = 20 * time.Second

	// maxRetries bounds the upstream attempts per fetch at 1 + maxRetries.
	maxRetries = 2

	// retryInitialWait doubles per attempt: 1s before the second try, 2s
	// before the third.
	retryInitialWait = 1 * time.Second

	// requestTimeout bounds one stop-monitoring request.
	requestTimeout = 8 * time.Second
)

// MonitoringSource is the upstream surface the fetcher needs; *prim.Client
// implements it.
type MonitoringSource interface {
	GetStopMonitoring(ctx context.Context, stopID, lineID string) (*idfm.SiriResponse, error)
}

// Fetcher resolves one monitored stop to its latest snapshot, consulting the
// TTL cache first and retrying transient upstream failures.
type Fetcher struct {
	source  MonitoringSource
	cache   *snapshotCache
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	// newBackOff builds the retry schedule for one fetch; replaced in tests
	// to avoid real waits.
	newBackOff func() backoff.BackOff
}

// NewFetcher builds a Fetcher over the given upstream source.
func NewFetcher(source MonitoringSource, m *metrics.Metrics, clk clock.Clock, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:     source,
		cache:      newSnapshotCache(cacheTTL, clk),
		clock:      clk,
		metrics:    m,
		logger:     logger.With(slog.String("component", "fetcher")),
		newBackOff: newRetrySchedule,
	}
}

// newRetrySchedule returns the fixed 1s, 2s retry schedule. Randomization is
// disabled so waits are exact.
func newRetrySchedule() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     retryInitialWait,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Minute,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return backoff.WithMaxRetries(b, maxRetries)
}

func cacheKey(stop models.MonitoredStop) string {
	return stop.ID + "|" + stop.Direction + "|" + stop.LineID
}

// Fetch returns the current snapshot for one monitored stop. It never returns
// an error: every failure becomes an error snapshot so the dashboard always
// has something to show. Terminal results, errors included, are cached for
// the TTL; a cancelled fetch is returned but not cached.
func (f *Fetcher) Fetch(ctx context.Context, stop models.MonitoredStop) models.StopSnapshot {
	key := cacheKey(stop)
	if snapshot, ok := f.cache.get(key); ok {
		f.metrics.CacheHitsTotal.Inc()
		return snapshot
	}
	f.metrics.CacheMissesTotal.Inc()

	now := f.clock.NowInParis()

	response, err := f.fetchWithRetry(ctx, stop)
	if err != nil {
		snapshot := models.NewErrorSnapshot(stop, now, fetchErrorMessage(err))
		if ctx.Err() == nil {
			f.cache.put(key, snapshot)
		}
		return snapshot
	}

	departures := idfm.ParseDepartures(response, stop, now)
	snapshot := models.NewStopSnapshot(stop, now, departures)
	f.cache.put(key, snapshot)
	return snapshot
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, stop models.MonitoredStop) (*idfm.SiriResponse, error) {
	operation := func() (*idfm.SiriResponse, error) {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		started := f.clock.Now()
		response, err := f.source.GetStopMonitoring(reqCtx, stop.ID, stop.LineID)
		f.metrics.RecordUpstreamRequest(outcomeFor(err), f.clock.Since(started))

		if err == nil {
			return response, nil
		}
		switch {
		case errors.Is(err, prim.ErrNoAPIKey),
			errors.Is(err, prim.ErrUnknownStop),
			errors.Is(err, prim.ErrInvalidResponse):
			return nil, backoff.Permanent(err)
		}
		// 429, other upstream statuses and transport failures are worth
		// another try.
		return nil, err
	}

	notify := func(err error, wait time.Duration) {
		f.metrics.FetchRetriesTotal.Inc()
		logging.LogOperation(f.logger, "retrying_stop_monitoring",
			slog.String("stop_id", stop.ID),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}

	return backoff.RetryNotifyWithData(operation, backoff.WithContext(f.newBackOff(), ctx), notify)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, prim.ErrUnknownStop):
		return metrics.OutcomeUnknownStop
	case errors.Is(err, prim.ErrRateLimited):
		return metrics.OutcomeRateLimited
	case prim.IsTimeout(err):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeError
	}
}

// fetchErrorMessage maps a fetch failure onto the label shown on the
// dashboard tile.
func fetchErrorMessage(err error) string {
	var statusErr *prim.StatusError
	switch {
	case errors.Is(err, prim.ErrUnknownStop):
		return models.UnknownStopMessage
	case errors.Is(err, prim.ErrRateLimited):
		return models.ErrorMessageForStatus(429)
	case errors.Is(err, prim.ErrInvalidResponse):
		return models.InvalidResponseMessage
	case errors.Is(err, prim.ErrNoAPIKey):
		return models.MissingKeyMessage
	case prim.IsTimeout(err):
		return models.TimeoutMessage
	case errors.As(err, &statusErr):
		return models.ErrorMessageForStatus(statusErr.Code)
	default:
		return err.Error()
	}
}
