package search

import (
	"math"
	"sort"

	"github.com/tomlapa/paris-transit-dashboard/internal/geo"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

const (
	// DefaultNearbyRadiusM bounds the spatial search when the caller passes
	// a non-positive radius.
	DefaultNearbyRadiusM = 500
	// MaxNearbyResults caps how many stops a spatial search returns.
	MaxNearbyResults = 20

	metersPerDegreeLat = 111194.9
)

// Nearby returns the indexed stops within radiusM meters of the given point,
// closest first. The r-tree narrows candidates to a bounding box and the
// exact distance filter runs on those. Stops without coordinates never
// appear.
func (idx *Index) Nearby(lat, lon float64, radiusM, limit int) []models.NearbyStop {
	if radiusM <= 0 {
		radiusM = DefaultNearbyRadiusM
	}
	if limit <= 0 || limit > MaxNearbyResults {
		limit = MaxNearbyResults
	}

	dLat := float64(radiusM) / metersPerDegreeLat
	dLon := math.Abs(dLat / math.Cos(lat*math.Pi/180))

	var hits []models.NearbyStop
	idx.tree.Search(
		[2]float64{lon - dLon, lat - dLat},
		[2]float64{lon + dLon, lat + dLat},
		func(_, _ [2]float64, i int) bool {
			stop := &idx.stops[i]
			d := geo.Haversine(lat, lon, stop.Lat, stop.Lon)
			if d <= float64(radiusM) {
				hits = append(hits, models.NearbyStop{
					StopID:   stop.ID,
					StopName: stop.Name,
					Distance: int(d),
					Lat:      stop.Lat,
					Lon:      stop.Lon,
				})
			}
			return true
		},
	)

	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].StopName < hits[b].StopName
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
