package indexer

import (
	"fmt"
	"sort"

	"github.com/OneBusAway/go-gtfs"

	"github.com/tomlapa/paris-transit-dashboard/internal/idfm"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// ParseGTFS extracts stops and the lines serving them from a GTFS zip
// archive. Stop-to-line relations come from the scheduled trips' stop times;
// identifiers are converted to the canonical STIF namespace. Stops no trip
// ever visits are left out.
func ParseGTFS(data []byte) ([]models.IndexedStop, error) {
	staticData, err := gtfs.ParseStatic(data, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("unable to parse GTFS archive: %w", err)
	}

	// One line entry per (stop, line id, label), discovered trip by trip.
	type lineKey struct {
		lineID string
		label  string
	}
	linesByStop := make(map[string]map[lineKey]models.IndexedLine)

	for _, trip := range staticData.Trips {
		route := trip.Route
		if route == nil {
			continue
		}

		lineID := idfm.CanonicalLineID(route.Id)
		label := route.ShortName
		if label == "" {
			label = route.LongName
		}
		line := models.IndexedLine{
			LineID:        lineID,
			LineName:      label,
			TransportType: categoryForRouteType(int64(route.Type)),
		}
		key := lineKey{lineID: lineID, label: label}

		for _, stopTime := range trip.StopTimes {
			if stopTime.Stop == nil {
				continue
			}
			stopID := idfm.CanonicalStopID(stopTime.Stop.Id)
			if linesByStop[stopID] == nil {
				linesByStop[stopID] = make(map[lineKey]models.IndexedLine)
			}
			linesByStop[stopID][key] = line
		}
	}

	var stops []models.IndexedStop
	seen := make(map[string]int)
	for _, s := range staticData.Stops {
		stopID := idfm.CanonicalStopID(s.Id)
		served := linesByStop[stopID]
		if len(served) == 0 {
			continue
		}

		if i, dup := seen[stopID]; dup {
			// Platform-level entries can collapse onto one canonical id;
			// keep the first name and backfill missing coordinates.
			if stops[i].Lat == 0 && stops[i].Lon == 0 && s.Latitude != nil && s.Longitude != nil {
				stops[i].Lat = *s.Latitude
				stops[i].Lon = *s.Longitude
			}
			continue
		}

		stop := models.IndexedStop{ID: stopID, Name: s.Name}
		if s.Latitude != nil && s.Longitude != nil {
			stop.Lat = *s.Latitude
			stop.Lon = *s.Longitude
		}
		for _, line := range served {
			stop.Lines = append(stop.Lines, line)
		}
		sort.Slice(stop.Lines, func(a, b int) bool {
			if stop.Lines[a].LineName != stop.Lines[b].LineName {
				return stop.Lines[a].LineName < stop.Lines[b].LineName
			}
			return stop.Lines[a].LineID < stop.Lines[b].LineID
		})

		seen[stopID] = len(stops)
		stops = append(stops, stop)
	}

	return stops, nil
}

// categoryForRouteType maps a GTFS route_type to a dashboard category. IDFM
// publishes its RER lines as type 2 (rail).
func categoryForRouteType(routeType int64) string {
	switch routeType {
	case 0:
		return models.TransportTram
	case 1:
		return models.TransportMetro
	case 2:
		return models.TransportRER
	default:
		return models.TransportBus
	}
}
