package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tomlapa/paris-transit-dashboard/internal/app"
	"github.com/tomlapa/paris-transit-dashboard/internal/appconf"
	"github.com/tomlapa/paris-transit-dashboard/internal/clock"
	"github.com/tomlapa/paris-transit-dashboard/internal/config"
	"github.com/tomlapa/paris-transit-dashboard/internal/geo"
	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/metrics"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
	"github.com/tomlapa/paris-transit-dashboard/internal/poller"
	"github.com/tomlapa/paris-transit-dashboard/internal/prim"
	"github.com/tomlapa/paris-transit-dashboard/internal/restapi"
	"github.com/tomlapa/paris-transit-dashboard/internal/search"
	"github.com/tomlapa/paris-transit-dashboard/internal/snapshot"
	"github.com/tomlapa/paris-transit-dashboard/internal/webui"
	"github.com/tomlapa/paris-transit-dashboard/stopdb"
)

// dbStatsInterval is how often connection pool statistics are sampled.
const dbStatsInterval = 30 * time.Second

func main() {
	// A .env file is optional; the environment wins either way.
	_ = godotenv.Load()

	var cfg appconf.Config
	var envFlag string

	flag.IntVar(&cfg.Port, "port", 4000, "HTTP server port")
	flag.StringVar(&envFlag, "env", "development", "Environment (development|test|production)")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Enable debug logging")
	flag.IntVar(&cfg.RateLimit, "rate-limit", 100, "Requests per second per client (negative disables)")
	flag.StringVar(&cfg.ConfigPath, "config", "config.yaml", "Path to the settings file")
	flag.StringVar(&cfg.IndexPath, "index", "stops.db", "Path to the stop index database (empty disables search)")
	flag.Parse()

	cfg.Env = appconf.EnvFlagToEnvironment(envFlag)

	coreApp, err := BuildApplication(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if err := Run(coreApp, cfg); err != nil {
		logging.LogError(coreApp.Logger, "server exited with error", err)
		os.Exit(1)
	}
}

// BuildApplication assembles every component from the given configuration:
// settings store, PRIM client, stop index, snapshot pipeline and supervisor.
func BuildApplication(cfg appconf.Config) (*app.Application, error) {
	logger := logging.NewLogger(cfg.Verbose)
	clk := clock.RealClock{}
	m := metrics.NewWithLogger(logger)

	settings, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	primClient := prim.NewClient("", settings, logger)

	var stopDB *stopdb.Client
	var stops []models.IndexedStop
	if cfg.IndexPath != "" {
		stopDB, err = stopdb.NewClient(stopdb.Config{Path: cfg.IndexPath, Env: cfg.Env}, logger)
		if err != nil {
			return nil, fmt.Errorf("opening stop index: %w", err)
		}
		stops, err = stopDB.LoadAll(context.Background())
		if err != nil {
			return nil, fmt.Errorf("loading stop index: %w", err)
		}
		m.StartDBStatsCollector(stopDB.DB, dbStatsInterval)
	}

	fetcher := poller.NewFetcher(primClient, m, clk, logger)
	fleet := poller.NewFleet(fetcher, m, clk, logger)

	store := snapshot.NewStore()
	publisher := snapshot.NewPublisher(store, settings, m, clk, logger)
	supervisor := poller.NewSupervisor(fleet, settings, store, logger)

	return &app.Application{
		Config:     cfg,
		Logger:     logger,
		Clock:      clk,
		Metrics:    m,
		Settings:   settings,
		Prim:       primClient,
		Geocoder:   geo.NewAddressClient("", logger),
		Index:      search.NewIndex(stops, logger),
		StopDB:     stopDB,
		Snapshots:  store,
		Publisher:  publisher,
		Supervisor: supervisor,
	}, nil
}

// CreateServer builds the HTTP server with the full route table and
// middleware chain.
func CreateServer(coreApp *app.Application, cfg appconf.Config) (*http.Server, *restapi.RestAPI) {
	mux := http.NewServeMux()

	api := restapi.NewRestAPI(coreApp)
	api.SetRoutes(mux)
	webui.NewWebUI(coreApp).SetRoutes(mux)

	var handler http.Handler = mux
	handler = api.RateLimiter().Handler()(handler)
	handler = restapi.MetricsHandler(coreApp.Metrics)(handler)
	handler = restapi.NewRequestLoggingMiddleware(coreApp.Logger)(handler)
	handler = restapi.RequestIDMiddleware(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(coreApp.Logger.Handler(), slog.LevelError),
	}

	return srv, api
}

// Run starts the background loops and serves HTTP until SIGINT or SIGTERM,
// then shuts everything down in order: server, API, background loops.
func Run(coreApp *app.Application, cfg appconf.Config) error {
	srv, api := CreateServer(coreApp, cfg)

	coreApp.StartBackground()

	shutdownErr := make(chan error, 1)
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit

		logging.LogOperation(coreApp.Logger, "shutting_down", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(ctx)
	}()

	logging.LogOperation(coreApp.Logger, "starting_server",
		slog.String("addr", srv.Addr),
		slog.String("env", cfg.Env.String()))

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdownErr; err != nil {
		return err
	}

	api.Shutdown()
	coreApp.Shutdown()

	logging.LogOperation(coreApp.Logger, "server_stopped")
	return nil
}
