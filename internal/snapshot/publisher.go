package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/tomlapa/paris-transit-dashboard/internal/clock"
	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/metrics"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// publishInterval is the cadence at which the publisher re-renders the view
// and pushes it to subscribers when it changed.
const publishInterval = 5 * time.Second

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind skips updates instead of blocking the publisher.
const subscriberBuffer = 4

// ViewConfig is the configuration surface the publisher reads per tick.
type ViewConfig interface {
	Stops() []models.MonitoredStop
	MaxDepartures() int
}

type subscriber struct {
	ch chan []byte
	// lastHash is the content hash of the last update actually delivered.
	// Empty for a fresh subscriber, so the first tick always delivers.
	lastHash string
}

// Publisher pushes rendered dashboard views to subscribers. Updates carrying
// the same stop content as the previous delivery are suppressed per
// subscriber; the volatile timestamps alone never trigger a push.
type Publisher struct {
	store   *Store
	config  ViewConfig
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	interval time.Duration

	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextID      int
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewPublisher builds a stopped Publisher; call Start to begin ticking.
func NewPublisher(store *Store, config ViewConfig, m *metrics.Metrics, clk clock.Clock, logger *slog.Logger) *Publisher {
	return &Publisher{
		store:       store,
		config:      config,
		clock:       clk,
		metrics:     m,
		logger:      logger.With(slog.String("component", "publisher")),
		interval:    publishInterval,
		subscribers: make(map[int]*subscriber),
	}
}

// View renders the current dashboard payload on demand.
func (p *Publisher) View() models.DashboardView {
	return BuildView(p.store.Current(), p.config.Stops(), p.config.MaxDepartures(), p.clock.Now())
}

// Subscribe registers a new update channel and returns its id for
// Unsubscribe. The channel is closed on Unsubscribe.
func (p *Publisher) Subscribe() (int, <-chan []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	sub := &subscriber{ch: make(chan []byte, subscriberBuffer)}
	p.subscribers[id] = sub
	p.metrics.SSESubscribers.Set(float64(len(p.subscribers)))
	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// no-ops.
func (p *Publisher) Unsubscribe(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sub, ok := p.subscribers[id]
	if !ok {
		return
	}
	delete(p.subscribers, id)
	close(sub.ch)
	p.metrics.SSESubscribers.Set(float64(len(p.subscribers)))
}

// Start launches the tick loop. Calling Start while running is a no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	logging.LogOperation(p.logger, "starting_publisher")
	go p.run(ctx, done)
}

// Stop cancels the tick loop and waits for it to exit.
func (p *Publisher) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Publisher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.publish()
		case <-ctx.Done():
			return
		}
	}
}

// publish renders the view once and forwards it to every subscriber whose
// last delivery differs. Sends never block: a subscriber with a full buffer
// keeps its old hash and is retried next tick.
func (p *Publisher) publish() {
	payload, hash, err := encodeView(p.View())
	if err != nil {
		logging.LogError(p.logger, "failed to encode dashboard view", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subscribers {
		if sub.lastHash == hash {
			continue
		}
		select {
		case sub.ch <- payload:
			sub.lastHash = hash
			p.metrics.SSEEventsTotal.Inc()
		default:
		}
	}
}

// encodeView marshals the full payload and hashes the stops content with the
// freshness fields zeroed: LastUpdated advances on every successful fetch and
// IsCached flips on cache hits, neither changes what the dashboard displays,
// so two renders differing only in those share a hash.
func encodeView(view models.DashboardView) (payload []byte, hash string, err error) {
	payload, err = json.Marshal(view)
	if err != nil {
		return nil, "", err
	}

	hashed := make([]models.StopView, len(view.Stops))
	copy(hashed, view.Stops)
	for i := range hashed {
		hashed[i].LastUpdated = ""
		hashed[i].IsCached = false
	}
	stops, err := json.Marshal(hashed)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(stops)
	return payload, hex.EncodeToString(sum[:]), nil
}
