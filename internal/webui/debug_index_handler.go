package webui

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/davecgh/go-spew/spew"

	"github.com/tomlapa/paris-transit-dashboard/internal/appconf"
	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
)

//go:embed debug_state.html
var templateFS embed.FS

type debugData struct {
	Title string
	Pre   string
}

func (webUI *WebUI) writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	content := spew.Sdump(data)
	w.Header().Set("Content-Type", "text/html")
	tmpl, err := template.ParseFS(templateFS, "debug_state.html")
	if err != nil {
		logging.LogError(webUI.Logger, "failed to parse debug template", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := tmpl.Execute(w, debugData{Title: title, Pre: content}); err != nil {
		logging.LogError(webUI.Logger, "failed to execute debug template", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// debugStateHandler dumps internal state for development. Hidden in
// production.
func (webUI *WebUI) debugStateHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.Config.Env == appconf.Production {
		http.NotFound(w, r)
		return
	}

	var data interface{}
	var title string

	switch dataType := r.URL.Query().Get("dataType"); dataType {
	case "snapshot":
		data = webUI.Snapshots.Current()
		title = "Fleet Snapshot"
	case "stops":
		data = webUI.Settings.Stops()
		title = "Monitored Stops"
	case "view":
		data = webUI.Publisher.View()
		title = "Dashboard View"
	case "config":
		cfg := webUI.Settings.Snapshot()
		cfg.API.Key = "(redacted)"
		data = cfg
		title = "Settings"
	default:
		data = map[string]string{"dataTypes": "snapshot, stops, view, config"}
		title = "Debug State"
	}

	webUI.writeDebugData(w, title, data)
}
