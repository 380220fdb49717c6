package restapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
	"github.com/tomlapa/paris-transit-dashboard/internal/search"
)

// searchStopsHandler answers stop searches for the admin page and the setup
// wizard. The SQLite full-text index is probed first; when it errors or finds
// nothing the in-memory folded scan takes over, so accented queries that FTS
// tokenizing misses still match.
func (api *RestAPI) searchStopsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		api.sendError(w, r, http.StatusBadRequest, "paramètre q requis")
		return
	}
	category := r.URL.Query().Get("type")

	limit := search.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			api.sendError(w, r, http.StatusBadRequest, "paramètre limit invalide")
			return
		}
		limit = min(parsed, search.DefaultSearchLimit)
	}

	results := api.searchFullText(r, query, category, limit)
	if results == nil {
		results = api.Index.Search(query, category, limit)
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	api.sendResults(w, r, results)
}

// searchFullText runs the FTS fast path and expands matched stops to their
// line pairs. Returns nil when the path cannot serve the query, which sends
// the caller to the in-memory scan.
func (api *RestAPI) searchFullText(r *http.Request, query, category string, limit int) []models.SearchResult {
	if api.StopDB == nil {
		return nil
	}

	rows, err := api.StopDB.SearchStopsByFullText(r.Context(), query, int64(limit))
	if err != nil {
		logging.LogError(logging.FromContext(r.Context()), "full-text search failed", err,
			slog.String("query", query))
		return nil
	}
	if len(rows) == 0 {
		return nil
	}

	var results []models.SearchResult
	for _, row := range rows {
		stop, ok := api.Index.Stop(row.ID)
		if !ok {
			continue
		}
		for _, line := range stop.Lines {
			if category != "" && line.TransportType != category {
				continue
			}
			results = append(results, models.SearchResult{
				StopID:        stop.ID,
				StopName:      stop.Name,
				LineID:        line.LineID,
				LineName:      line.LineName,
				TransportType: line.TransportType,
				Lat:           stop.Lat,
				Lon:           stop.Lon,
			})
			if len(results) == limit {
				return results
			}
		}
	}
	if len(results) == 0 {
		return nil
	}
	return results
}

// searchLinesHandler returns the stops served by the line whose label equals
// the query, for the "find my line" flow.
func (api *RestAPI) searchLinesHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		api.sendError(w, r, http.StatusBadRequest, "paramètre q requis")
		return
	}

	results := api.Index.StopsOnLine(query)
	if results == nil {
		results = []models.SearchResult{}
	}
	api.sendResults(w, r, results)
}

// searchAddressHandler geocodes a free-form address through the BAN API,
// keeping only Île-de-France results.
func (api *RestAPI) searchAddressHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		api.sendError(w, r, http.StatusBadRequest, "paramètre q requis")
		return
	}

	results, err := api.Geocoder.SearchAddress(r.Context(), query)
	if err != nil {
		logging.LogError(logging.FromContext(r.Context()), "address search failed", err,
			slog.String("query", query))
		api.sendError(w, r, http.StatusBadGateway, "service d'adresses indisponible")
		return
	}
	if results == nil {
		results = []models.AddressResult{}
	}
	api.sendResults(w, r, results)
}
