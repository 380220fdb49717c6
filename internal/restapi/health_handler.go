package restapi

import (
	"net/http"

	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
)

// HealthResponse is the JSON body of the health endpoint.
type HealthResponse struct {
	Status       string `json:"status"`
	Detail       string `json:"detail,omitempty"`
	Configured   bool   `json:"configured"`
	Polling      bool   `json:"polling"`
	IndexedStops int    `json:"indexed_stops"`
}

// healthHandler reports liveness and readiness. An unconfigured dashboard is
// still healthy; only missing infrastructure or an unreachable index database
// degrade the status.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	if api.Application == nil || api.Settings == nil {
		api.sendJSON(w, r, http.StatusServiceUnavailable, HealthResponse{
			Status: "unavailable",
			Detail: "application not initialized",
		})
		return
	}

	response := HealthResponse{
		Status:     "ok",
		Configured: api.Settings.IsConfigured(),
		Polling:    api.PollingRunning(),
	}
	if api.Index != nil {
		response.IndexedStops = api.Index.Len()
	}

	if api.StopDB != nil {
		if err := api.StopDB.DB.PingContext(r.Context()); err != nil {
			logging.LogError(api.Logger, "stop index DB ping failed", err)
			response.Status = "degraded"
			response.Detail = "stop index database unreachable"
			api.sendJSON(w, r, http.StatusServiceUnavailable, response)
			return
		}
	}

	api.sendJSON(w, r, http.StatusOK, response)
}
