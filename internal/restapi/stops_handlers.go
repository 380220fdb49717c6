package restapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tomlapa/paris-transit-dashboard/internal/idfm"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// listStopsHandler returns the monitored stops in configured order.
func (api *RestAPI) listStopsHandler(w http.ResponseWriter, r *http.Request) {
	api.sendJSON(w, r, http.StatusOK, map[string]any{"stops": api.Settings.Stops()})
}

// addStopHandler appends a monitored stop from form fields and applies the
// change to the running poll loop.
func (api *RestAPI) addStopHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		api.sendError(w, r, http.StatusBadRequest, "formulaire invalide")
		return
	}

	stop := models.MonitoredStop{
		ID:            r.PostFormValue("stop_id"),
		Name:          r.PostFormValue("stop_name"),
		Line:          r.PostFormValue("line"),
		LineID:        r.PostFormValue("line_id"),
		Direction:     r.PostFormValue("direction"),
		DirectionID:   r.PostFormValue("direction_id"),
		TransportType: r.PostFormValue("transport_type"),
	}
	if stop.ID == "" || stop.Name == "" || stop.Line == "" {
		api.sendError(w, r, http.StatusBadRequest, "paramètres stop_id, stop_name et line requis")
		return
	}

	added, err := api.Settings.AddStop(stop)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !added {
		api.sendJSON(w, r, http.StatusOK, actionResult{Success: false, Message: "Cet arrêt existe déjà"})
		return
	}

	api.applyConfigChange()
	api.sendJSON(w, r, http.StatusOK, actionResult{
		Success: true,
		Message: fmt.Sprintf("Arrêt %s ajouté", stop.Name),
	})
}

// removeStopHandler deletes the monitored stop named by stop_id, restricted
// to one direction when the direction field is present.
func (api *RestAPI) removeStopHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		api.sendError(w, r, http.StatusBadRequest, "formulaire invalide")
		return
	}
	stopID := r.PostFormValue("stop_id")
	if stopID == "" {
		api.sendError(w, r, http.StatusBadRequest, "paramètre stop_id requis")
		return
	}

	removed, err := api.Settings.RemoveStop(stopID, r.PostFormValue("direction"))
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if !removed {
		api.sendJSON(w, r, http.StatusOK, actionResult{Success: false, Message: "Arrêt non trouvé"})
		return
	}

	api.applyConfigChange()
	api.sendJSON(w, r, http.StatusOK, actionResult{Success: true})
}

// reorderStopsHandler rearranges the monitored stops. The body is a JSON
// array of current indices in their new order.
func (api *RestAPI) reorderStopsHandler(w http.ResponseWriter, r *http.Request) {
	var order []int
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		api.sendError(w, r, http.StatusBadRequest, "le corps doit être une liste d'indices")
		return
	}

	ok, err := api.Settings.ReorderStops(order)
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	if ok {
		api.applyConfigChange()
	}
	api.sendJSON(w, r, http.StatusOK, actionResult{Success: ok})
}

// nearbyStopsHandler returns indexed stops within radius meters of the given
// coordinates, closest first.
func (api *RestAPI) nearbyStopsHandler(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, "paramètre lat invalide")
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		api.sendError(w, r, http.StatusBadRequest, "paramètre lon invalide")
		return
	}

	radius := 0
	if raw := r.URL.Query().Get("radius"); raw != "" {
		radius, err = strconv.Atoi(raw)
		if err != nil || radius < 0 {
			api.sendError(w, r, http.StatusBadRequest, "paramètre radius invalide")
			return
		}
	}

	results := api.Index.Nearby(lat, lon, radius, 0)
	if results == nil {
		results = []models.NearbyStop{}
	}
	api.sendResults(w, r, results)
}

// stopLinesHandler returns the lines serving a stop. The id is normalized
// first, so raw open-data identifiers work as well as SIRI ones.
func (api *RestAPI) stopLinesHandler(w http.ResponseWriter, r *http.Request) {
	stopID := r.URL.Query().Get("stop_id")
	if stopID == "" {
		api.sendError(w, r, http.StatusBadRequest, "paramètre stop_id requis")
		return
	}

	lines := api.Index.LinesAt(idfm.CanonicalStopID(stopID))
	if lines == nil {
		lines = []models.IndexedLine{}
	}
	api.sendResults(w, r, lines)
}

// directionsResponse mirrors the original directions envelope: the error
// field doubles as the not-configured notice.
type directionsResponse struct {
	Error      string             `json:"error,omitempty"`
	Directions []models.Direction `json:"directions"`
}

// stopDirectionsHandler lists the distinct destinations currently observed in
// live monitoring data for a stop, optionally restricted to a line. Used by
// the admin page and the setup wizard to offer direction choices.
func (api *RestAPI) stopDirectionsHandler(w http.ResponseWriter, r *http.Request) {
	stopID := r.URL.Query().Get("stop_id")
	if stopID == "" {
		api.sendError(w, r, http.StatusBadRequest, "paramètre stop_id requis")
		return
	}

	if api.Settings.APIKey() == "" {
		api.sendJSON(w, r, http.StatusOK, directionsResponse{
			Error:      "API non configurée",
			Directions: []models.Direction{},
		})
		return
	}

	directions, err := api.Prim.ListDirections(r.Context(), stopID, r.URL.Query().Get("line_id"))
	if err != nil {
		api.sendJSON(w, r, http.StatusBadGateway, directionsResponse{
			Error:      "données de passage indisponibles",
			Directions: []models.Direction{},
		})
		return
	}
	api.sendJSON(w, r, http.StatusOK, directionsResponse{Directions: directions})
}

// applyConfigChange restarts the poll loop after a stop-list mutation so the
// next cycle reflects it immediately rather than after the current wait.
func (api *RestAPI) applyConfigChange() {
	if api.Settings.IsConfigured() {
		api.RestartPolling()
	}
}
