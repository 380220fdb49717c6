// Package webui serves the dashboard's HTML pages: the departure board, the
// stop administration page, and a development-only state dump.
package webui

import (
	"net/http"

	"github.com/tomlapa/paris-transit-dashboard/internal/app"
)

// WebUI carries the application dependencies into the page handlers.
type WebUI struct {
	*app.Application
}

// NewWebUI builds the HTML surface for the given application.
func NewWebUI(application *app.Application) *WebUI {
	return &WebUI{Application: application}
}

// SetRoutes registers the page routes on the mux.
func (webUI *WebUI) SetRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", webUI.dashboardHandler)
	mux.HandleFunc("GET /admin", webUI.adminHandler)
	mux.HandleFunc("GET /static/", webUI.staticHandler)
	mux.HandleFunc("GET /debug/state", webUI.debugStateHandler)
}
