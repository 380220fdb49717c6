package restapi

import (
	"encoding/json"
	"net/http"

	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// actionResult is the envelope for admin mutations, mirroring the dashboard's
// historical wire format.
type actionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// errorEnvelope carries a user-facing failure message.
type errorEnvelope struct {
	Error string `json:"error"`
}

func setJSONResponseType(w *http.ResponseWriter) {
	(*w).Header().Set("Content-Type", "application/json")
}

// sendJSON writes payload with the given status. Encoding failures after the
// status line has been written can only be logged.
func (api *RestAPI) sendJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	setJSONResponseType(&w)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to encode response", err)
	}
}

// sendResults wraps a result list in the {"results": …} envelope.
func (api *RestAPI) sendResults(w http.ResponseWriter, r *http.Request, results any) {
	api.sendJSON(w, r, http.StatusOK, map[string]any{"results": results})
}

// sendError writes the error envelope with the given status.
func (api *RestAPI) sendError(w http.ResponseWriter, r *http.Request, status int, message string) {
	api.sendJSON(w, r, status, errorEnvelope{Error: message})
}

// serverErrorResponse logs err and answers with a generic 500.
func (api *RestAPI) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	logging.LogError(logging.FromContext(r.Context()), "internal server error", err)
	api.sendError(w, r, http.StatusInternalServerError, models.InternalErrorMessage)
}
