package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusForDelay(t *testing.T) {
	tests := []struct {
		name         string
		delayMinutes int
		cancelled    bool
		expected     string
	}{
		{"five minutes early", -5, false, StatusEarly},
		{"one minute early", -1, false, StatusOnTime},
		{"exactly on time", 0, false, StatusOnTime},
		{"two minutes late", 2, false, StatusOnTime},
		{"three minutes late", 3, false, StatusDelayed},
		{"cancelled wins over on time", 0, true, StatusCancelled},
		{"cancelled wins over delay", 10, true, StatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusForDelay(tt.delayMinutes, tt.cancelled))
		})
	}
}

func TestDelayMinutesTruncatesTowardZero(t *testing.T) {
	scheduled := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		expected time.Time
		want     int
	}{
		{"no delay", scheduled, 0},
		{"90 seconds late", scheduled.Add(90 * time.Second), 1},
		{"just under five minutes", scheduled.Add(299 * time.Second), 4},
		{"90 seconds early", scheduled.Add(-90 * time.Second), -1},
		{"just under five minutes early", scheduled.Add(-299 * time.Second), -4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DelayMinutes(scheduled, tt.expected))
		})
	}
}

func TestMonitoredStopKey(t *testing.T) {
	stop := MonitoredStop{ID: "STIF:StopPoint:Q:473921:", Direction: "Paris"}
	assert.Equal(t, "STIF:StopPoint:Q:473921::Paris", stop.Key())

	// The all-directions wildcard is part of the key as an empty segment.
	stop.Direction = ""
	assert.Equal(t, "STIF:StopPoint:Q:473921::", stop.Key())
}

func TestNewErrorSnapshotCarriesStopIdentity(t *testing.T) {
	stop := MonitoredStop{
		ID:            "STIF:StopPoint:Q:473921:",
		Name:          "Joinville-le-Pont",
		Line:          "A",
		LineID:        "STIF:Line::C01742:",
		Direction:     "Paris",
		TransportType: TransportRER,
	}
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	snapshot := NewErrorSnapshot(stop, now, "Timeout")

	assert.Equal(t, stop.ID, snapshot.StopID)
	assert.Equal(t, stop.Name, snapshot.StopName)
	assert.Equal(t, stop.Line, snapshot.Line)
	assert.Equal(t, stop.LineID, snapshot.LineID)
	assert.Equal(t, stop.Direction, snapshot.Direction)
	assert.Equal(t, now, snapshot.LastUpdated)
	assert.Equal(t, "Timeout", snapshot.Error)
	assert.Empty(t, snapshot.Departures)
}

func TestColumnsFor(t *testing.T) {
	assert.Equal(t, 1, ColumnsFor(0))
	assert.Equal(t, 1, ColumnsFor(1))
	assert.Equal(t, 3, ColumnsFor(3))
	assert.Equal(t, 4, ColumnsFor(4))
	assert.Equal(t, 4, ColumnsFor(9))
}

func TestErrorMessageForStatus(t *testing.T) {
	assert.Equal(t, "Erreur 503", ErrorMessageForStatus(503))
}
