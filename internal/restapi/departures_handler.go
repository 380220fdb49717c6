package restapi

import (
	"net/http"
)

// departuresHandler serves the pull-style dashboard payload: every configured
// stop in order with its latest departures, timestamps in Paris time and the
// column hint for the front end.
func (api *RestAPI) departuresHandler(w http.ResponseWriter, r *http.Request) {
	api.sendJSON(w, r, http.StatusOK, api.Publisher.View())
}
