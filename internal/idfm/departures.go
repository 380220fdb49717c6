package idfm

import (
	"sort"
	"strings"
	"time"

	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// MaxDepartures caps how many departures one snapshot keeps. Display layers
// may trim further but never see more than this.
const MaxDepartures = 6

// ParseTime normalizes one upstream timestamp to Paris time. Fractional
// seconds are truncated before parsing (upstream emits a varying number of
// digits), and any unparseable value falls back to now so a single bad
// timestamp never sinks the whole visit.
func ParseTime(value string, now time.Time) time.Time {
	if value == "" {
		return now.In(ParisLocation)
	}
	if i := strings.IndexByte(value, '.'); i >= 0 {
		value = value[:i] + "Z"
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return now.In(ParisLocation)
	}
	return t.In(ParisLocation)
}

// DirectionMatches reports whether a configured direction filter accepts an
// observed destination name. Matching is a case-insensitive substring test in
// both directions, so "Paris" accepts "Paris Gare de Lyon" and the reverse.
func DirectionMatches(configured, observed string) bool {
	c := strings.ToLower(strings.TrimSpace(configured))
	o := strings.ToLower(strings.TrimSpace(observed))
	return strings.Contains(o, c) || strings.Contains(c, o)
}

// LineLabel resolves the human label for a visit's line: the published name
// when present, otherwise a short code derived from the line reference,
// otherwise "?".
func LineLabel(lineRef string, journey *MonitoredVehicleJourney) string {
	if len(journey.PublishedLineName) > 0 {
		return journey.PublishedLineName[0].Value
	}
	if lineRef != "" {
		parts := strings.Split(lineRef, ":")
		if len(parts) >= 4 {
			code := parts[3]
			if strings.HasPrefix(code, "C0") {
				code = strings.TrimLeft(code[2:], "0")
				if code == "" {
					code = "0"
				}
			}
			return code
		}
	}
	return "?"
}

// ParseDepartures extracts the ranked departure list for one monitored stop
// from a stop-monitoring response. Absent deliveries or visits yield an empty
// list. Visits are dropped when the direction filter rejects them or when they
// carry no usable time at all; everything else degrades per visit, never for
// the whole response.
func ParseDepartures(response *SiriResponse, stop models.MonitoredStop, now time.Time) []models.Departure {
	departures := []models.Departure{}
	if response == nil {
		return departures
	}

	deliveries := response.Siri.ServiceDelivery.StopMonitoringDelivery
	if len(deliveries) == 0 {
		return departures
	}

	for i := range deliveries[0].MonitoredStopVisit {
		journey := &deliveries[0].MonitoredStopVisit[i].MonitoredVehicleJourney
		call := &journey.MonitoredCall

		lineRef := journey.LineRef.Value
		line := LineLabel(lineRef, journey)

		direction := ""
		if len(journey.DestinationName) > 0 {
			direction = journey.DestinationName[0].Value
		}

		// An empty configured direction means all directions.
		if stop.Direction != "" && !DirectionMatches(stop.Direction, direction) {
			continue
		}

		aimed := call.AimedDepartureTime
		if aimed == "" {
			aimed = call.AimedArrivalTime
		}
		expected := call.ExpectedDepartureTime
		if expected == "" {
			expected = call.ExpectedArrivalTime
		}
		if aimed == "" && expected == "" {
			continue
		}
		isRealtime := expected != ""

		scheduled := aimed
		if scheduled == "" {
			scheduled = expected
		}
		estimated := expected
		if estimated == "" {
			estimated = aimed
		}

		scheduledAt := ParseTime(scheduled, now)
		expectedAt := ParseTime(estimated, now)
		delay := models.DelayMinutes(scheduledAt, expectedAt)
		cancelled := strings.Contains(strings.ToLower(call.DepartureStatus), "cancelled")

		departures = append(departures, models.Departure{
			Line:         line,
			LineID:       lineRef,
			Direction:    direction,
			Scheduled:    scheduledAt,
			Expected:     expectedAt,
			DelayMinutes: delay,
			Status:       models.StatusForDelay(delay, cancelled),
			IsRealtime:   isRealtime,
		})
	}

	sort.SliceStable(departures, func(i, j int) bool {
		return departures[i].Expected.Before(departures[j].Expected)
	})
	if len(departures) > MaxDepartures {
		departures = departures[:MaxDepartures]
	}
	return departures
}

// ContainsSiri reports whether a raw monitoring body looks like a SIRI
// payload. The connection test uses it to tell a real answer from an error
// page served with status 200.
func ContainsSiri(body []byte) bool {
	return strings.Contains(string(body), `"Siri"`)
}
