// Package config persists the dashboard's user-editable settings: the PRIM
// API credential, the poll cadence, display preferences and the ordered list
// of monitored stops. Everything lives in one YAML file that the REST layer
// and the CLI both mutate through a shared Store.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// Bounds for user-tunable values. Reads clamp, endpoint writes reject.
const (
	MinRefreshSeconds = 10
	MaxRefreshSeconds = 300
	MinDisplayCap     = 1
	MaxDisplayCap     = 6

	DefaultRefreshSeconds = 30
	DefaultDisplayCap     = 3
	DefaultTheme          = "classic"
)

// APIKeyEnvVar overrides the persisted credential when set, so deployments
// can keep the key out of the config file.
const APIKeyEnvVar = "PRIM_API_KEY"

// ErrIntervalOutOfRange rejects refresh intervals outside the allowed bounds.
var ErrIntervalOutOfRange = fmt.Errorf("l'intervalle doit être entre %d et %d secondes", MinRefreshSeconds, MaxRefreshSeconds)

// API holds the upstream credential and poll cadence.
type API struct {
	Key                    string `yaml:"key"`
	RefreshIntervalSeconds int    `yaml:"refresh_interval_seconds" validate:"gte=0"`
}

// Display holds rendering preferences.
type Display struct {
	MaxDeparturesPerStop int    `yaml:"max_departures_per_stop" validate:"gte=0"`
	Theme                string `yaml:"theme"`
}

// Config is the full persisted document.
type Config struct {
	API     API                    `yaml:"api"`
	Display Display                `yaml:"display"`
	Stops   []models.MonitoredStop `yaml:"stops" validate:"dive"`
}

// Default returns the configuration written on first run.
func Default() Config {
	return Config{
		API:     API{RefreshIntervalSeconds: DefaultRefreshSeconds},
		Display: Display{MaxDeparturesPerStop: DefaultDisplayCap, Theme: DefaultTheme},
		Stops:   []models.MonitoredStop{},
	}
}

// Store owns the config file. All reads return copies; all mutations persist
// before returning, so a crash never loses an acknowledged change.
type Store struct {
	path     string
	mu       sync.Mutex
	config   Config
	validate *validator.Validate
}

// Load reads the config file at path, falling back to defaults when the file
// does not exist yet. Entries are normalized (missing transport types become
// bus) and validated; a malformed file is an error rather than silently
// replaced.
func Load(path string) (*Store, error) {
	store := &Store{path: path, validate: validator.New()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		store.config = Default()
		return store, nil
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	for i := range cfg.Stops {
		if cfg.Stops[i].TransportType == "" {
			cfg.Stops[i].TransportType = models.TransportBus
		}
	}
	if err := store.validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	store.config = cfg
	return store, nil
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Snapshot returns a deep copy of the current configuration.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

func (s *Store) copyLocked() Config {
	cfg := s.config
	cfg.Stops = make([]models.MonitoredStop, len(s.config.Stops))
	copy(cfg.Stops, s.config.Stops)
	return cfg
}

// APIKey returns the effective credential: the environment override when set,
// otherwise the persisted key.
func (s *Store) APIKey() string {
	if key := os.Getenv(APIKeyEnvVar); key != "" {
		return key
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.API.Key
}

// RefreshInterval returns the poll cadence, clamped to the allowed bounds so
// a hand-edited file can never spin the poller or freeze it.
func (s *Store) RefreshInterval() time.Duration {
	s.mu.Lock()
	seconds := s.config.API.RefreshIntervalSeconds
	s.mu.Unlock()
	return time.Duration(clamp(seconds, MinRefreshSeconds, MaxRefreshSeconds)) * time.Second
}

// MaxDepartures returns the display cap, clamped to 1..6.
func (s *Store) MaxDepartures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clamp(s.config.Display.MaxDeparturesPerStop, MinDisplayCap, MaxDisplayCap)
}

// Stops returns a copy of the monitored stops in configured order.
func (s *Store) Stops() []models.MonitoredStop {
	s.mu.Lock()
	defer s.mu.Unlock()
	stops := make([]models.MonitoredStop, len(s.config.Stops))
	copy(stops, s.config.Stops)
	return stops
}

// IsConfigured reports whether polling can start: a credential and at least
// one monitored stop.
func (s *Store) IsConfigured() bool {
	return s.APIKey() != "" && len(s.Stops()) > 0
}

// SetAPIKey persists a new credential.
func (s *Store) SetAPIKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.API.Key = key
	return s.saveLocked()
}

// SetRefreshInterval persists a new poll cadence, rejecting values outside
// the allowed bounds.
func (s *Store) SetRefreshInterval(seconds int) error {
	if seconds < MinRefreshSeconds || seconds > MaxRefreshSeconds {
		return ErrIntervalOutOfRange
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.API.RefreshIntervalSeconds = seconds
	return s.saveLocked()
}

// SetMaxDepartures persists a new display cap, rejecting values outside 1..6.
func (s *Store) SetMaxDepartures(cap int) error {
	if cap < MinDisplayCap || cap > MaxDisplayCap {
		return fmt.Errorf("le nombre de départs doit être entre %d et %d", MinDisplayCap, MaxDisplayCap)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Display.MaxDeparturesPerStop = cap
	return s.saveLocked()
}

// AddStop appends a monitored stop and persists. Returns false without
// saving when a stop with the same id and direction already exists.
func (s *Store) AddStop(stop models.MonitoredStop) (bool, error) {
	if stop.TransportType == "" {
		stop.TransportType = models.TransportBus
	}
	if err := s.validate.Struct(stop); err != nil {
		return false, fmt.Errorf("invalid stop: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.config.Stops {
		if existing.ID == stop.ID && existing.Direction == stop.Direction {
			return false, nil
		}
	}
	s.config.Stops = append(s.config.Stops, stop)
	if err := s.saveLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveStop deletes entries matching the stop id, restricted to one
// direction when direction is non-empty. Returns false when nothing matched.
func (s *Store) RemoveStop(stopID, direction string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.config.Stops[:0]
	for _, stop := range s.config.Stops {
		if stop.ID == stopID && (direction == "" || stop.Direction == direction) {
			continue
		}
		kept = append(kept, stop)
	}
	if len(kept) == len(s.config.Stops) {
		return false, nil
	}
	s.config.Stops = kept
	if err := s.saveLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// ReorderStops rearranges the monitored stops to the given index order.
// Indices out of range are skipped, matching the lenient behavior of the
// admin UI this serves.
func (s *Store) ReorderStops(order []int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reordered := make([]models.MonitoredStop, 0, len(s.config.Stops))
	for _, i := range order {
		if i >= 0 && i < len(s.config.Stops) {
			reordered = append(reordered, s.config.Stops[i])
		}
	}
	if len(reordered) != len(s.config.Stops) {
		return false, nil
	}
	s.config.Stops = reordered
	if err := s.saveLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// saveLocked writes the config atomically: marshal to a temp file in the same
// directory, then rename over the target.
func (s *Store) saveLocked() error {
	data, err := yaml.Marshal(s.config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp config: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MaskKey renders a credential for display: at most the first eight
// characters followed by an ellipsis. Empty stays empty.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) > 8 {
		key = key[:8]
	}
	return key + "..."
}
