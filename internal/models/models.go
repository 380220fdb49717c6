// Package models defines the domain types shared across the dashboard: the
// monitored-stop configuration entries, parsed departures, per-stop snapshots
// and the aggregate fleet snapshot, plus the search-index records.
package models

import (
	"fmt"
	"time"
)

// Transport categories used by the IDFM network.
const (
	TransportBus   = "bus"
	TransportMetro = "metro"
	TransportRER   = "rer"
	TransportTram  = "tram"
	TransportTrain = "train"
)

// Departure status labels, as displayed to users.
const (
	StatusOnTime    = "À l'heure"
	StatusDelayed   = "Retardé"
	StatusCancelled = "Supprimé"
	StatusEarly     = "En avance"
)

// AwaitingDataMessage is shown for a monitored stop that has no snapshot yet.
const AwaitingDataMessage = "En attente de données..."

// MonitoredStop is one user-configured subscription: a stop to poll, with an
// optional line and direction restriction. Two entries are considered the same
// subscription when stop id and direction both match.
type MonitoredStop struct {
	ID            string `json:"id" yaml:"id" validate:"required"`
	Name          string `json:"name" yaml:"name" validate:"required"`
	Line          string `json:"line" yaml:"line"`
	LineID        string `json:"line_id,omitempty" yaml:"line_id,omitempty"`
	Direction     string `json:"direction,omitempty" yaml:"direction,omitempty"`
	DirectionID   string `json:"direction_id,omitempty" yaml:"direction_id,omitempty"`
	TransportType string `json:"transport_type" yaml:"transport_type" validate:"omitempty,oneof=bus metro rer tram train"`
}

// Key identifies the subscription in snapshots and caches. An empty direction
// (the "all directions" wildcard) is part of the key.
func (s MonitoredStop) Key() string {
	return s.ID + ":" + s.Direction
}

// Departure is one vehicle passage at a monitored stop.
type Departure struct {
	Line         string    `json:"line"`
	LineID       string    `json:"line_id"`
	Direction    string    `json:"direction"`
	Scheduled    time.Time `json:"scheduled"`
	Expected     time.Time `json:"expected"`
	DelayMinutes int       `json:"delay_minutes"`
	Status       string    `json:"status"`
	IsRealtime   bool      `json:"is_realtime"`
}

// DelayMinutes computes the whole-minute delay between the scheduled and
// expected times. The division truncates toward zero, so a 90 second delay is
// one minute and a -90 second advance is minus one.
func DelayMinutes(scheduled, expected time.Time) int {
	return int(expected.Sub(scheduled).Seconds()) / 60
}

// StatusForDelay classifies a departure. Cancellation wins over everything,
// then more than two minutes late is delayed, more than one minute ahead is
// early, anything else is on time.
func StatusForDelay(delayMinutes int, cancelled bool) string {
	switch {
	case cancelled:
		return StatusCancelled
	case delayMinutes > 2:
		return StatusDelayed
	case delayMinutes < -1:
		return StatusEarly
	default:
		return StatusOnTime
	}
}

// StopSnapshot is the result of one fetch for one monitored stop. It is built
// whole and never mutated afterwards; a newer fetch replaces it entirely.
type StopSnapshot struct {
	StopID      string      `json:"stop_id"`
	StopName    string      `json:"stop_name"`
	Line        string      `json:"line"`
	LineID      string      `json:"line_id,omitempty"`
	Direction   string      `json:"direction,omitempty"`
	LastUpdated time.Time   `json:"last_updated"`
	Departures  []Departure `json:"departures"`
	IsCached    bool        `json:"is_cached"`
	Error       string      `json:"error,omitempty"`
}

// NewStopSnapshot returns a snapshot carrying the stop's identity and the
// given departures.
func NewStopSnapshot(stop MonitoredStop, now time.Time, departures []Departure) StopSnapshot {
	return StopSnapshot{
		StopID:      stop.ID,
		StopName:    stop.Name,
		Line:        stop.Line,
		LineID:      stop.LineID,
		Direction:   stop.Direction,
		LastUpdated: now,
		Departures:  departures,
	}
}

// NewErrorSnapshot returns a snapshot carrying an error message instead of
// departures. Error snapshots flow through the same cache and views as
// successful ones.
func NewErrorSnapshot(stop MonitoredStop, now time.Time, message string) StopSnapshot {
	snapshot := NewStopSnapshot(stop, now, nil)
	snapshot.Error = message
	return snapshot
}

// FleetSnapshot is the whole world-state from one poll cycle: every monitored
// stop's latest snapshot, keyed by MonitoredStop.Key. Readers receive it as an
// immutable value; each cycle swaps in a fresh one.
type FleetSnapshot struct {
	Stops map[string]StopSnapshot
	Taken time.Time
}

// NewFleetSnapshot returns an empty snapshot taken at the given time.
func NewFleetSnapshot(taken time.Time) *FleetSnapshot {
	return &FleetSnapshot{Stops: make(map[string]StopSnapshot), Taken: taken}
}

// IndexedLine is one line serving an indexed stop.
type IndexedLine struct {
	LineID        string `json:"line_id"`
	LineName      string `json:"line_name"`
	TransportType string `json:"transport_type"`
}

// IndexedStop is one stop from the prebuilt search index, with the lines that
// serve it and WGS84 coordinates when the source data carried them.
type IndexedStop struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Lat   float64       `json:"lat,omitempty"`
	Lon   float64       `json:"lon,omitempty"`
	Lines []IndexedLine `json:"lines"`
}

// SearchResult is one stop-and-line pair matching a search query.
type SearchResult struct {
	StopID        string  `json:"stop_id"`
	StopName      string  `json:"stop_name"`
	LineID        string  `json:"line_id"`
	LineName      string  `json:"line_name"`
	Direction     string  `json:"direction"`
	TransportType string  `json:"transport_type"`
	Lat           float64 `json:"lat,omitempty"`
	Lon           float64 `json:"lon,omitempty"`
}

// NearbyStop is one spatial-search hit, with the distance from the query point.
type NearbyStop struct {
	StopID   string  `json:"stop_id"`
	StopName string  `json:"stop_name"`
	Distance int     `json:"distance"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
}

// AddressResult is one geocoded match from the BAN address API.
type AddressResult struct {
	Label    string  `json:"label"`
	City     string  `json:"city"`
	Postcode string  `json:"postcode"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Type     string  `json:"type"`
}

// Direction is one distinct destination observed in live monitoring data for a
// stop and line, offered to users when they restrict a subscription.
type Direction struct {
	Direction   string `json:"direction"`
	DirectionID string `json:"direction_id,omitempty"`
	LineID      string `json:"line_id,omitempty"`
	LineName    string `json:"line_name,omitempty"`
}

// StopView is one monitored stop's externally visible entry in the dashboard
// view: the snapshot trimmed to the display cap, or an awaiting-data
// placeholder when no snapshot exists yet.
type StopView struct {
	Index         int         `json:"index"`
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Line          string      `json:"line"`
	Direction     string      `json:"direction,omitempty"`
	TransportType string      `json:"transport_type"`
	LastUpdated   string      `json:"last_updated,omitempty"`
	Departures    []Departure `json:"departures"`
	IsCached      bool        `json:"is_cached,omitempty"`
	Error         string      `json:"error,omitempty"`
}

// DashboardView is the full pull-accessor payload, stops in configured order.
type DashboardView struct {
	Timestamp  string     `json:"timestamp"`
	ParisTime  string     `json:"paris_time"`
	Stops      []StopView `json:"stops"`
	NumColumns int        `json:"num_columns"`
}

// ColumnsFor returns the dashboard column hint for the given stop count,
// between one and four.
func ColumnsFor(stopCount int) int {
	return min(4, max(1, stopCount))
}

// TestConnectionResult reports an API credential check.
type TestConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ConnectedMessage and friends are the credential-check outcomes.
const (
	ConnectedMessage       = "API connectée ✓"
	InvalidKeyMessage      = "Clé API invalide"
	InvalidResponseMessage = "Réponse invalide"
	RateLimitedMessage     = "Limite de requêtes atteinte"
	TimeoutMessage         = "Timeout"
	NotConfiguredMessage   = "Clé API non configurée"
)

// Fetch failure labels carried in error snapshots.
const (
	UnknownStopMessage   = "Arrêt inconnu"
	MissingKeyMessage    = "Clé API manquante"
	InternalErrorMessage = "Erreur interne"
)

// ErrorMessageForStatus renders the generic upstream failure label.
func ErrorMessageForStatus(statusCode int) string {
	return fmt.Sprintf("Erreur %d", statusCode)
}
