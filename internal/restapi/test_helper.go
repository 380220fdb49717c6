// test_helper.go builds fully wired applications against temp config files
// and stub upstream servers for handler tests.
package restapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomlapa/paris-transit-dashboard/internal/app"
	"github.com/tomlapa/paris-transit-dashboard/internal/appconf"
	"github.com/tomlapa/paris-transit-dashboard/internal/clock"
	"github.com/tomlapa/paris-transit-dashboard/internal/config"
	"github.com/tomlapa/paris-transit-dashboard/internal/geo"
	"github.com/tomlapa/paris-transit-dashboard/internal/metrics"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
	"github.com/tomlapa/paris-transit-dashboard/internal/poller"
	"github.com/tomlapa/paris-transit-dashboard/internal/prim"
	"github.com/tomlapa/paris-transit-dashboard/internal/search"
	"github.com/tomlapa/paris-transit-dashboard/internal/snapshot"
)

var testAPITime = time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)

// testIndexStops is the fixture behind the search handlers.
func testIndexStops() []models.IndexedStop {
	return []models.IndexedStop{
		{
			ID:   "STIF:StopPoint:Q:473921:",
			Name: "Châtelet",
			Lat:  48.8588,
			Lon:  2.3470,
			Lines: []models.IndexedLine{
				{LineID: "STIF:Line::C01742:", LineName: "A", TransportType: models.TransportRER},
				{LineID: "STIF:Line::C01371:", LineName: "1", TransportType: models.TransportMetro},
			},
		},
		{
			ID:   "STIF:StopPoint:Q:40918:",
			Name: "École Militaire",
			Lat:  48.8547,
			Lon:  2.3060,
			Lines: []models.IndexedLine{
				{LineID: "STIF:Line::C01378:", LineName: "8", TransportType: models.TransportMetro},
			},
		},
	}
}

// newTestAPI builds a RestAPI over a temp config file, a mock clock and the
// fixture index. primURL points the PRIM client at a stub server; empty means
// upstream calls are expected to be absent or to fail.
func newTestAPI(t *testing.T, primURL string) (*RestAPI, *clock.MockClock) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewMockClock(testAPITime)
	m := metrics.New()

	settings, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	primClient := prim.NewClient(primURL, settings, logger)
	fetcher := poller.NewFetcher(primClient, m, clk, logger)
	fleet := poller.NewFleet(fetcher, m, clk, logger)

	store := snapshot.NewStore()
	publisher := snapshot.NewPublisher(store, settings, m, clk, logger)
	supervisor := poller.NewSupervisor(fleet, settings, store, logger)

	application := &app.Application{
		Config:     appconf.Config{Env: appconf.Test, RateLimit: 100},
		Logger:     logger,
		Clock:      clk,
		Metrics:    m,
		Settings:   settings,
		Prim:       primClient,
		Geocoder:   geo.NewAddressClient("", logger),
		Index:      search.NewIndex(testIndexStops(), logger),
		Snapshots:  store,
		Publisher:  publisher,
		Supervisor: supervisor,
	}

	api := NewRestAPI(application)
	t.Cleanup(func() {
		api.Shutdown()
		application.Shutdown()
	})
	return api, clk
}

// serveAPI runs the request through the full route table.
func serveAPI(api *RestAPI, r *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}
