package snapshot

import (
	"time"

	"github.com/tomlapa/paris-transit-dashboard/internal/idfm"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// BuildView renders the dashboard payload: every configured stop in order,
// each carrying its latest snapshot trimmed to maxPerStop departures, or an
// awaiting-data placeholder when the stop has not been polled yet. The stop
// list order is the configured order; indexes are positions in that list.
func BuildView(snapshot *models.FleetSnapshot, stops []models.MonitoredStop, maxPerStop int, now time.Time) models.DashboardView {
	if snapshot == nil {
		snapshot = models.NewFleetSnapshot(time.Time{})
	}

	views := make([]models.StopView, 0, len(stops))
	for i, stop := range stops {
		view := models.StopView{
			Index:         i,
			ID:            stop.ID,
			Name:          stop.Name,
			Line:          stop.Line,
			Direction:     stop.Direction,
			TransportType: stop.TransportType,
			Departures:    []models.Departure{},
		}

		stopSnapshot, ok := snapshot.Stops[stop.Key()]
		if !ok {
			view.Error = models.AwaitingDataMessage
			views = append(views, view)
			continue
		}

		departures := stopSnapshot.Departures
		if len(departures) > maxPerStop {
			departures = departures[:maxPerStop]
		}
		if departures != nil {
			view.Departures = departures
		}
		view.LastUpdated = stopSnapshot.LastUpdated.Format(time.RFC3339)
		view.IsCached = stopSnapshot.IsCached
		view.Error = stopSnapshot.Error
		views = append(views, view)
	}

	paris := now.In(idfm.ParisLocation)
	return models.DashboardView{
		Timestamp:  paris.Format(time.RFC3339),
		ParisTime:  paris.Format("15:04:05"),
		Stops:      views,
		NumColumns: models.ColumnsFor(len(views)),
	}
}
