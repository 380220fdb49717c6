// Package restapi serves the dashboard's HTTP surface: the departures view,
// monitored-stop administration, search and geocoding lookups, configuration
// endpoints and the server-sent event stream.
package restapi

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomlapa/paris-transit-dashboard/internal/app"
)

// RestAPI carries the application dependencies into the handlers.
type RestAPI struct {
	*app.Application
	limiter *RateLimitMiddleware
}

// NewRestAPI builds the API surface for the given application, including its
// per-client rate limiter.
func NewRestAPI(application *app.Application) *RestAPI {
	api := &RestAPI{Application: application}
	api.limiter = NewRateLimitMiddleware(application.Config.RateLimit, nil, application.Clock)
	return api
}

// RateLimiter exposes the limiter so the server can compose it into the
// middleware chain.
func (api *RestAPI) RateLimiter() *RateLimitMiddleware {
	return api.limiter
}

// Shutdown stops the rate limiter's cleanup goroutine.
func (api *RestAPI) Shutdown() {
	if api.limiter != nil {
		api.limiter.Stop()
	}
}

// SetRoutes registers every route on the mux. JSON routes are gzip-compressed
// and marked uncacheable; the event stream and the Prometheus endpoint are
// registered without wrapping.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	api.handleJSON(mux, "GET /api/departures", api.departuresHandler)

	api.handleJSON(mux, "GET /api/stops", api.listStopsHandler)
	api.handleJSON(mux, "POST /api/stops/add", api.addStopHandler)
	api.handleJSON(mux, "POST /api/stops/remove", api.removeStopHandler)
	api.handleJSON(mux, "POST /api/stops/reorder", api.reorderStopsHandler)
	api.handleJSON(mux, "GET /api/stops/nearby", api.nearbyStopsHandler)

	api.handleJSON(mux, "GET /api/search/stops", api.searchStopsHandler)
	api.handleJSON(mux, "GET /api/search/lines", api.searchLinesHandler)
	api.handleJSON(mux, "GET /api/search/address", api.searchAddressHandler)

	api.handleJSON(mux, "GET /api/stop/lines", api.stopLinesHandler)
	api.handleJSON(mux, "GET /api/stop/directions", api.stopDirectionsHandler)

	api.handleJSON(mux, "GET /api/config", api.getConfigHandler)
	api.handleJSON(mux, "POST /api/config/apikey", api.setAPIKeyHandler)
	api.handleJSON(mux, "POST /api/config/refresh_interval", api.setRefreshIntervalHandler)
	api.handleJSON(mux, "GET /api/config/test", api.testConnectionHandler)

	api.handleJSON(mux, "GET /health", api.healthHandler)
	mux.HandleFunc("GET /events", api.eventsHandler)

	if api.Application != nil && api.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
	}
}

func (api *RestAPI) handleJSON(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.Handle(pattern, CacheControlMiddleware(0, gzhttp.GzipHandler(handler)))
}
