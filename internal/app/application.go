// Package app wires the dashboard's components together. Application is the
// dependency container handed to the HTTP handlers; its lifecycle methods
// start and stop the background loops as one unit.
package app

import (
	"log/slog"

	"github.com/tomlapa/paris-transit-dashboard/internal/appconf"
	"github.com/tomlapa/paris-transit-dashboard/internal/clock"
	"github.com/tomlapa/paris-transit-dashboard/internal/config"
	"github.com/tomlapa/paris-transit-dashboard/internal/geo"
	"github.com/tomlapa/paris-transit-dashboard/internal/metrics"
	"github.com/tomlapa/paris-transit-dashboard/internal/poller"
	"github.com/tomlapa/paris-transit-dashboard/internal/prim"
	"github.com/tomlapa/paris-transit-dashboard/internal/search"
	"github.com/tomlapa/paris-transit-dashboard/internal/snapshot"
	"github.com/tomlapa/paris-transit-dashboard/stopdb"
)

// Application holds the dependencies for the HTTP handlers, helpers and
// middleware: the user-editable settings store, the PRIM and geocoding
// clients, the search index, the snapshot pipeline and the poll supervisor.
type Application struct {
	Config     appconf.Config
	Logger     *slog.Logger
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Settings   *config.Store
	Prim       *prim.Client
	Geocoder   *geo.AddressClient
	Index      *search.Index
	StopDB     *stopdb.Client
	Snapshots  *snapshot.Store
	Publisher  *snapshot.Publisher
	Supervisor *poller.Supervisor
}

// StartBackground launches the poll supervisor and the publisher when polling
// is configured; an unconfigured application stays idle until a credential
// and stops arrive through the admin endpoints.
func (app *Application) StartBackground() {
	if app.Publisher != nil {
		app.Publisher.Start()
	}
	if app.Supervisor != nil && app.Settings != nil && app.Settings.IsConfigured() {
		app.Supervisor.Start()
	}
}

// StartPolling starts the poll supervisor if it is not already running.
func (app *Application) StartPolling() {
	if app.Supervisor != nil {
		app.Supervisor.Start()
	}
}

// RestartPolling replaces the running poll loop so configuration changes
// apply immediately instead of after the current wait. Starts the loop when
// it was not running.
func (app *Application) RestartPolling() {
	if app.Supervisor != nil {
		app.Supervisor.Restart()
	}
}

// PollingRunning reports whether the poll loop is live.
func (app *Application) PollingRunning() bool {
	return app.Supervisor != nil && app.Supervisor.Running()
}

// Shutdown stops the background loops and releases held resources. Safe to
// call on a partially built application.
func (app *Application) Shutdown() {
	if app.Supervisor != nil {
		app.Supervisor.Stop()
	}
	if app.Publisher != nil {
		app.Publisher.Stop()
	}
	if app.Metrics != nil {
		app.Metrics.Shutdown()
	}
	if app.StopDB != nil {
		_ = app.StopDB.Close()
	}
}
