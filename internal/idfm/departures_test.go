package idfm

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

var testNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func visitJSON(line, destination, aimed, expected, status string) string {
	call := ""
	if aimed != "" {
		call += fmt.Sprintf(`"AimedDepartureTime": %q,`, aimed)
	}
	if expected != "" {
		call += fmt.Sprintf(`"ExpectedDepartureTime": %q,`, expected)
	}
	return fmt.Sprintf(`{
		"MonitoredVehicleJourney": {
			"LineRef": {"value": "STIF:Line::C01742:"},
			"PublishedLineName": [{"value": %q}],
			"DestinationName": [{"value": %q}],
			"DestinationRef": {"value": "STIF:StopPoint:Q:43135:"},
			"MonitoredCall": {%s "DepartureStatus": %q}
		}
	}`, line, destination, call, status)
}

func responseWithVisits(t *testing.T, visits ...string) *SiriResponse {
	t.Helper()
	body := `{"Siri": {"ServiceDelivery": {"StopMonitoringDelivery": [{"MonitoredStopVisit": [`
	for i, v := range visits {
		if i > 0 {
			body += ","
		}
		body += v
	}
	body += `]}]}}}`

	var response SiriResponse
	require.NoError(t, json.Unmarshal([]byte(body), &response))
	return &response
}

func TestParseDeparturesEmptyDelivery(t *testing.T) {
	var response SiriResponse
	require.NoError(t, json.Unmarshal([]byte(`{"Siri": {"ServiceDelivery": {}}}`), &response))

	departures := ParseDepartures(&response, models.MonitoredStop{}, testNow)
	assert.Empty(t, departures)

	assert.Empty(t, ParseDepartures(nil, models.MonitoredStop{}, testNow))
}

func TestParseDeparturesSortedAndCapped(t *testing.T) {
	visits := make([]string, 0, 8)
	for i := 8; i >= 1; i-- {
		at := testNow.Add(time.Duration(i) * 5 * time.Minute).Format(time.RFC3339)
		visits = append(visits, visitJSON("A", "Paris", at, at, "onTime"))
	}
	response := responseWithVisits(t, visits...)

	departures := ParseDepartures(response, models.MonitoredStop{}, testNow)

	require.Len(t, departures, MaxDepartures)
	for i := 1; i < len(departures); i++ {
		assert.False(t, departures[i].Expected.Before(departures[i-1].Expected),
			"departures must be sorted ascending by expected time")
	}
}

func TestParseDeparturesDirectionFilter(t *testing.T) {
	paris := visitJSON("A", "Paris", "2025-03-10T08:10:00Z", "2025-03-10T08:10:00Z", "onTime")
	defense := visitJSON("A", "La Défense", "2025-03-10T08:12:00Z", "2025-03-10T08:12:00Z", "onTime")

	t.Run("filter keeps matching direction only", func(t *testing.T) {
		response := responseWithVisits(t, paris, defense)
		departures := ParseDepartures(response, models.MonitoredStop{Direction: "Paris"}, testNow)

		require.Len(t, departures, 1)
		assert.Equal(t, "Paris", departures[0].Direction)
	})

	t.Run("empty direction is the wildcard", func(t *testing.T) {
		response := responseWithVisits(t, paris, defense)
		departures := ParseDepartures(response, models.MonitoredStop{Direction: ""}, testNow)

		assert.Len(t, departures, 2)
	})

	t.Run("filter matches observed prefix both ways", func(t *testing.T) {
		long := visitJSON("A", "Paris Gare de Lyon", "2025-03-10T08:10:00Z", "2025-03-10T08:10:00Z", "onTime")
		response := responseWithVisits(t, long)

		departures := ParseDepartures(response, models.MonitoredStop{Direction: "paris"}, testNow)
		require.Len(t, departures, 1)

		departures = ParseDepartures(response, models.MonitoredStop{Direction: "Paris Gare de Lyon et au-delà"}, testNow)
		require.Len(t, departures, 1)
	})
}

func TestParseDeparturesDelayAndStatus(t *testing.T) {
	aimed := "2025-03-10T08:10:00Z"

	t.Run("three minutes late is delayed", func(t *testing.T) {
		response := responseWithVisits(t, visitJSON("A", "Paris", aimed, "2025-03-10T08:13:30Z", "onTime"))
		departures := ParseDepartures(response, models.MonitoredStop{}, testNow)

		require.Len(t, departures, 1)
		assert.Equal(t, 3, departures[0].DelayMinutes)
		assert.Equal(t, models.StatusDelayed, departures[0].Status)
	})

	t.Run("cancelled status wins", func(t *testing.T) {
		response := responseWithVisits(t, visitJSON("A", "Paris", aimed, aimed, "CANCELLED"))
		departures := ParseDepartures(response, models.MonitoredStop{}, testNow)

		require.Len(t, departures, 1)
		assert.Equal(t, models.StatusCancelled, departures[0].Status)
	})

	t.Run("two minutes early", func(t *testing.T) {
		response := responseWithVisits(t, visitJSON("A", "Paris", aimed, "2025-03-10T08:08:00Z", "onTime"))
		departures := ParseDepartures(response, models.MonitoredStop{}, testNow)

		require.Len(t, departures, 1)
		assert.Equal(t, -2, departures[0].DelayMinutes)
		assert.Equal(t, models.StatusEarly, departures[0].Status)
	})
}

func TestParseDeparturesTimeFallbacks(t *testing.T) {
	t.Run("visit without any time is skipped", func(t *testing.T) {
		response := responseWithVisits(t,
			visitJSON("A", "Paris", "", "", "onTime"),
			visitJSON("A", "Paris", "2025-03-10T08:10:00Z", "2025-03-10T08:10:00Z", "onTime"))

		departures := ParseDepartures(response, models.MonitoredStop{}, testNow)
		assert.Len(t, departures, 1)
	})

	t.Run("aimed only is schedule data", func(t *testing.T) {
		response := responseWithVisits(t, visitJSON("A", "Paris", "2025-03-10T08:10:00Z", "", "onTime"))
		departures := ParseDepartures(response, models.MonitoredStop{}, testNow)

		require.Len(t, departures, 1)
		assert.False(t, departures[0].IsRealtime)
		assert.Equal(t, departures[0].Scheduled, departures[0].Expected)
		assert.Equal(t, 0, departures[0].DelayMinutes)
	})

	t.Run("expected only is realtime", func(t *testing.T) {
		response := responseWithVisits(t, visitJSON("A", "Paris", "", "2025-03-10T08:10:00Z", "onTime"))
		departures := ParseDepartures(response, models.MonitoredStop{}, testNow)

		require.Len(t, departures, 1)
		assert.True(t, departures[0].IsRealtime)
		assert.Equal(t, departures[0].Scheduled, departures[0].Expected)
	})

	t.Run("arrival fields replace missing departure fields", func(t *testing.T) {
		visit := `{
			"MonitoredVehicleJourney": {
				"LineRef": {"value": "STIF:Line::C01742:"},
				"PublishedLineName": [{"value": "A"}],
				"DestinationName": [{"value": "Paris"}],
				"MonitoredCall": {
					"AimedArrivalTime": "2025-03-10T08:20:00Z",
					"ExpectedArrivalTime": "2025-03-10T08:24:00Z",
					"DepartureStatus": "onTime"
				}
			}
		}`
		response := responseWithVisits(t, visit)
		departures := ParseDepartures(response, models.MonitoredStop{}, testNow)

		require.Len(t, departures, 1)
		assert.Equal(t, 4, departures[0].DelayMinutes)
		assert.True(t, departures[0].IsRealtime)
	})
}

func TestParseDeparturesLineLabelFallback(t *testing.T) {
	visit := `{
		"MonitoredVehicleJourney": {
			"LineRef": {"value": "STIF:Line::C01742:"},
			"DestinationName": [{"value": "Paris"}],
			"MonitoredCall": {
				"AimedDepartureTime": "2025-03-10T08:10:00Z",
				"DepartureStatus": "onTime"
			}
		}
	}`
	response := responseWithVisits(t, visit)

	departures := ParseDepartures(response, models.MonitoredStop{}, testNow)

	require.Len(t, departures, 1)
	assert.Equal(t, "1742", departures[0].Line)
	assert.Equal(t, "STIF:Line::C01742:", departures[0].LineID)
}

func TestLineLabel(t *testing.T) {
	tests := []struct {
		name     string
		lineRef  string
		journey  MonitoredVehicleJourney
		expected string
	}{
		{
			name:     "published name preferred",
			lineRef:  "STIF:Line::C01742:",
			journey:  MonitoredVehicleJourney{PublishedLineName: []LocalizedValue{{Value: "A"}}},
			expected: "A",
		},
		{
			name:     "code derived from ref",
			lineRef:  "STIF:Line::C01742:",
			expected: "1742",
		},
		{
			name:     "all zero code",
			lineRef:  "STIF:Line::C0000:",
			expected: "0",
		},
		{
			name:     "code without standard prefix",
			lineRef:  "STIF:Line::B42:",
			expected: "B42",
		},
		{
			name:     "short ref",
			lineRef:  "oddref",
			expected: "?",
		},
		{
			name:     "no information at all",
			expected: "?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LineLabel(tt.lineRef, &tt.journey))
		})
	}
}

func TestParseTime(t *testing.T) {
	paris := ParisLocation

	t.Run("fractional seconds truncated", func(t *testing.T) {
		parsed := ParseTime("2025-07-10T08:30:00.123Z", testNow)
		assert.Equal(t, time.Date(2025, 7, 10, 10, 30, 0, 0, paris).Format(time.RFC3339), parsed.Format(time.RFC3339))
	})

	t.Run("utc converted to paris winter", func(t *testing.T) {
		parsed := ParseTime("2025-01-10T08:30:00Z", testNow)
		// Paris is UTC+1 in winter.
		assert.Equal(t, "2025-01-10T09:30:00+01:00", parsed.Format(time.RFC3339))
	})

	t.Run("unparseable falls back to now", func(t *testing.T) {
		parsed := ParseTime("pas-une-date", testNow)
		assert.True(t, parsed.Equal(testNow))
		assert.Equal(t, paris.String(), parsed.Location().String())
	})

	t.Run("empty falls back to now", func(t *testing.T) {
		assert.True(t, ParseTime("", testNow).Equal(testNow))
	})
}

func TestDirectionMatches(t *testing.T) {
	assert.True(t, DirectionMatches("Paris", "Paris Gare de Lyon"))
	assert.True(t, DirectionMatches("Paris Gare de Lyon", "Paris"))
	assert.True(t, DirectionMatches("  paris  ", "PARIS"))
	assert.False(t, DirectionMatches("Paris", "La Défense"))
}

func TestContainsSiri(t *testing.T) {
	assert.True(t, ContainsSiri([]byte(`{"Siri": {"ServiceDelivery": {}}}`)))
	assert.False(t, ContainsSiri([]byte(`{"message": "quota exceeded"}`)))
}
