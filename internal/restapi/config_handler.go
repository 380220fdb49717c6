package restapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/tomlapa/paris-transit-dashboard/internal/config"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// configResponse is the settings payload for the admin page. The credential
// is masked; the real key never leaves the server.
type configResponse struct {
	APIKeyMasked           string `json:"api_key_masked"`
	APIKeyConfigured       bool   `json:"api_key_configured"`
	RefreshIntervalSeconds int    `json:"refresh_interval_seconds"`
	MaxDepartures          int    `json:"max_departures"`
	StopCount              int    `json:"stop_count"`
	PollingRunning         bool   `json:"polling_running"`
}

// getConfigHandler reports the current settings.
func (api *RestAPI) getConfigHandler(w http.ResponseWriter, r *http.Request) {
	key := api.Settings.APIKey()
	api.sendJSON(w, r, http.StatusOK, configResponse{
		APIKeyMasked:           config.MaskKey(key),
		APIKeyConfigured:       key != "",
		RefreshIntervalSeconds: int(api.Settings.RefreshInterval().Seconds()),
		MaxDepartures:          api.Settings.MaxDepartures(),
		StopCount:              len(api.Settings.Stops()),
		PollingRunning:         api.PollingRunning(),
	})
}

// setAPIKeyHandler persists a new PRIM credential, verifies it against the
// test stop and reports the verification outcome. Polling only starts or
// restarts when the key checks out.
func (api *RestAPI) setAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		api.sendError(w, r, http.StatusBadRequest, "formulaire invalide")
		return
	}
	key := r.PostFormValue("api_key")
	if key == "" {
		api.sendError(w, r, http.StatusBadRequest, "paramètre api_key requis")
		return
	}

	if err := api.Settings.SetAPIKey(key); err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}

	result := api.Prim.TestConnection(r.Context())
	if result.Success {
		api.applyConfigChange()
	}
	api.sendJSON(w, r, http.StatusOK, actionResult{Success: result.Success, Message: result.Message})
}

// setRefreshIntervalHandler persists a new poll cadence. Out-of-range values
// are rejected rather than clamped so the admin page can surface the bounds.
func (api *RestAPI) setRefreshIntervalHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		api.sendError(w, r, http.StatusBadRequest, "formulaire invalide")
		return
	}
	seconds, err := strconv.Atoi(r.PostFormValue("seconds"))
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, "paramètre seconds invalide")
		return
	}

	if err := api.Settings.SetRefreshInterval(seconds); err != nil {
		if errors.Is(err, config.ErrIntervalOutOfRange) {
			api.sendError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		api.serverErrorResponse(w, r, err)
		return
	}

	api.applyConfigChange()
	api.sendJSON(w, r, http.StatusOK, actionResult{Success: true})
}

// testConnectionHandler checks the configured credential against the PRIM
// test stop. The check itself never errors; failures come back as messages.
func (api *RestAPI) testConnectionHandler(w http.ResponseWriter, r *http.Request) {
	if api.Settings.APIKey() == "" {
		api.sendJSON(w, r, http.StatusOK, actionResult{Success: false, Message: models.NotConfiguredMessage})
		return
	}

	result := api.Prim.TestConnection(r.Context())
	api.sendJSON(w, r, http.StatusOK, actionResult{Success: result.Success, Message: result.Message})
}
