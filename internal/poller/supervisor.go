package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// panicCooldown is how long the supervisor pauses after a cycle panics
// before resuming polling.
const panicCooldown = 5 * time.Second

// ConfigSource exposes the pieces of configuration the poll loop reads each
// cycle, so interval and stop-list changes apply without a restart (a restart
// is only needed to interrupt the current wait).
type ConfigSource interface {
	APIKey() string
	Stops() []models.MonitoredStop
	RefreshInterval() time.Duration
}

// FleetPoller runs one poll cycle; *Fleet implements it.
type FleetPoller interface {
	PollAll(ctx context.Context, stops []models.MonitoredStop) *models.FleetSnapshot
}

// SnapshotSink receives the completed snapshot of each cycle.
type SnapshotSink interface {
	Replace(*models.FleetSnapshot)
}

// Supervisor owns the long-running poll loop: poll, wait the refresh
// interval, repeat. It is the sole writer of the snapshot sink. A panic in a
// cycle is logged, followed by a short cool-down, then the loop resumes.
type Supervisor struct {
	fleet  FleetPoller
	config ConfigSource
	sink   SnapshotSink
	logger *slog.Logger

	// wait blocks for d or until ctx is done, reporting whether the full
	// duration elapsed; replaced in tests.
	wait func(ctx context.Context, d time.Duration) bool

	cooldown time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor builds a stopped Supervisor; call Start to begin polling.
func NewSupervisor(fleet FleetPoller, config ConfigSource, sink SnapshotSink, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		fleet:    fleet,
		config:   config,
		sink:     sink,
		logger:   logger.With(slog.String("component", "supervisor")),
		wait:     sleepContext,
		cooldown: panicCooldown,
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Start launches the poll loop. Calling Start while running is a no-op.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked()
}

func (s *Supervisor) startLocked() {
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	logging.LogOperation(s.logger, "starting_poll_loop")
	go s.run(ctx, done)
}

// Stop cancels the poll loop and waits for it to exit. Safe to call when not
// running.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	logging.LogOperation(s.logger, "poll_loop_stopped")
}

// Restart replaces the current poll loop with a fresh one: cancel, join,
// respawn under one lock so two generations never run concurrently. Used
// after configuration changes to apply them immediately.
func (s *Supervisor) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.startLocked()
}

// Running reports whether the poll loop is live.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Supervisor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		panicked := s.cycle(ctx)

		if ctx.Err() != nil {
			return
		}

		wait := s.config.RefreshInterval()
		if panicked {
			wait = s.cooldown
		}
		if !s.wait(ctx, wait) {
			return
		}
	}
}

// cycle runs one poll pass. Unconfigured states (no key, no stops) are
// no-ops; the loop keeps its cadence and picks the config up once valid. A
// cancelled cycle's partial snapshot is discarded rather than published.
func (s *Supervisor) cycle(ctx context.Context) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			logging.LogError(s.logger, "panic in poll cycle", nil, slog.Any("panic", r))
		}
	}()

	stops := s.config.Stops()
	if s.config.APIKey() == "" || len(stops) == 0 {
		return false
	}

	snapshot := s.fleet.PollAll(ctx, stops)
	if ctx.Err() != nil {
		return false
	}
	s.sink.Replace(snapshot)
	return false
}
