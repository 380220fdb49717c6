package search

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/tidwall/rtree"

	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// DefaultSearchLimit caps search responses when the caller does not.
const DefaultSearchLimit = 30

// MaxLineStopResults caps the stops returned for one line lookup.
const MaxLineStopResults = 50

type foldedLine struct {
	label string // folded line name
	combo string // folded "category label" pair, e.g. "rer a"
}

type foldedStop struct {
	name  string
	lines []foldedLine
}

// Index answers stop and line searches. It is immutable once built, so all
// methods are safe for concurrent use.
type Index struct {
	stops   []models.IndexedStop
	folded  []foldedStop
	byID    map[string]int
	tree    rtree.RTreeG[int]
	spatial int
	logger  *slog.Logger
}

// NewIndex builds the in-memory search structures from the stops loaded out
// of the index database. Stops without coordinates are searchable by text but
// invisible to Nearby.
func NewIndex(stops []models.IndexedStop, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}

	idx := &Index{
		stops:  stops,
		folded: make([]foldedStop, len(stops)),
		byID:   make(map[string]int, len(stops)),
		logger: logger.With(slog.String("component", "search_index")),
	}

	for i, stop := range stops {
		fs := foldedStop{
			name:  Fold(stop.Name),
			lines: make([]foldedLine, len(stop.Lines)),
		}
		for j, line := range stop.Lines {
			fs.lines[j] = foldedLine{
				label: Fold(line.LineName),
				combo: Fold(line.TransportType + " " + line.LineName),
			}
		}
		idx.folded[i] = fs
		idx.byID[stop.ID] = i

		if stop.Lat != 0 || stop.Lon != 0 {
			point := [2]float64{stop.Lon, stop.Lat}
			idx.tree.Insert(point, point, i)
			idx.spatial++
		}
	}

	logging.LogOperation(idx.logger, "search_index_ready",
		slog.Int("stops", len(stops)),
		slog.Int("with_coordinates", idx.spatial))

	return idx
}

// Len returns the number of indexed stops.
func (idx *Index) Len() int {
	return len(idx.stops)
}

// Stop returns the indexed stop with the given id.
func (idx *Index) Stop(stopID string) (models.IndexedStop, bool) {
	i, ok := idx.byID[stopID]
	if !ok {
		return models.IndexedStop{}, false
	}
	return idx.stops[i], true
}

// LinesAt returns the lines serving the stop, or nil when the stop is not in
// the index.
func (idx *Index) LinesAt(stopID string) []models.IndexedLine {
	i, ok := idx.byID[stopID]
	if !ok {
		return nil
	}
	lines := make([]models.IndexedLine, len(idx.stops[i].Lines))
	copy(lines, idx.stops[i].Lines)
	return lines
}

// Search returns stop-and-line pairs matching the query. A match is a folded
// substring hit on the stop name, the line label, or the category-label pair
// ("rer a"). Results whose folded stop name equals the folded query come
// first, the rest alphabetically; at most one result per (stop, line label).
// A non-empty category restricts results to that transport type. A
// non-positive limit falls back to DefaultSearchLimit.
func (idx *Index) Search(query, category string, limit int) []models.SearchResult {
	folded := Fold(strings.TrimSpace(query))
	if folded == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	type ranked struct {
		result models.SearchResult
		exact  bool
		name   string
	}

	var matches []ranked
	seen := make(map[string]struct{})
	for i := range idx.stops {
		stop := &idx.stops[i]
		fs := &idx.folded[i]
		nameHit := strings.Contains(fs.name, folded)

		for j := range stop.Lines {
			line := &stop.Lines[j]
			if category != "" && line.TransportType != category {
				continue
			}
			fl := &fs.lines[j]
			if !nameHit && !strings.Contains(fl.label, folded) && !strings.Contains(fl.combo, folded) {
				continue
			}

			key := stop.ID + "|" + fl.label
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			matches = append(matches, ranked{
				result: models.SearchResult{
					StopID:        stop.ID,
					StopName:      stop.Name,
					LineID:        line.LineID,
					LineName:      line.LineName,
					TransportType: line.TransportType,
					Lat:           stop.Lat,
					Lon:           stop.Lon,
				},
				exact: fs.name == folded,
				name:  fs.name,
			})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].exact != matches[b].exact {
			return matches[a].exact
		}
		return matches[a].name < matches[b].name
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	results := make([]models.SearchResult, len(matches))
	for i, m := range matches {
		results[i] = m.result
	}
	return results
}

// StopsOnLine returns the stops served by the line whose label exactly equals
// the query after folding, so "a" finds the RER A and "7" the metro 7 without
// also matching "77". At most one result per (stop, line label), capped at
// MaxLineStopResults, in index order.
func (idx *Index) StopsOnLine(query string) []models.SearchResult {
	folded := Fold(strings.TrimSpace(query))
	if folded == "" {
		return nil
	}

	var results []models.SearchResult
	seen := make(map[string]struct{})
	for i := range idx.stops {
		stop := &idx.stops[i]
		fs := &idx.folded[i]
		for j := range stop.Lines {
			if fs.lines[j].label != folded {
				continue
			}
			key := stop.ID + "|" + fs.lines[j].label
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			line := &stop.Lines[j]
			results = append(results, models.SearchResult{
				StopID:        stop.ID,
				StopName:      stop.Name,
				LineID:        line.LineID,
				LineName:      line.LineName,
				TransportType: line.TransportType,
				Lat:           stop.Lat,
				Lon:           stop.Lon,
			})
			if len(results) == MaxLineStopResults {
				return results
			}
		}
	}
	return results
}
