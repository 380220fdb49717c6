// transitctl is the companion CLI for the dashboard: first-run setup wizard,
// stop index building, credential checks and stop list management, all
// operating on the same config file and index database as the server.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tomlapa/paris-transit-dashboard/internal/config"
	"github.com/tomlapa/paris-transit-dashboard/internal/indexer"
	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
	"github.com/tomlapa/paris-transit-dashboard/internal/prim"
	"github.com/tomlapa/paris-transit-dashboard/internal/search"
	"github.com/tomlapa/paris-transit-dashboard/stopdb"
)

var version = "1.0.0"

// Global flags shared by every subcommand.
var (
	flagConfig  string
	flagIndex   string
	flagVerbose bool
)

// Search/directions flags.
var (
	flagCategory string
	flagLine     string
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	labelColor   = color.New(color.FgCyan, color.Bold)
	mutedColor   = color.New(color.FgHiBlack)
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		errorColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "transitctl",
	Short: "Manage the Paris transit dashboard configuration and stop index",
	Long: `transitctl manages the transit dashboard from the command line.

Quick start:
  1. Build the stop index:    transitctl index chantiers-idfm.csv
  2. Run the setup wizard:    transitctl init
  3. Check the credential:    transitctl test
  4. Review monitored stops:  transitctl stops`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(stopsCmd)
	stopsCmd.AddCommand(stopsAddCmd)
	stopsCmd.AddCommand(stopsRemoveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(directionsCmd)

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "Path to the settings file")
	rootCmd.PersistentFlags().StringVar(&flagIndex, "index", "stops.db", "Path to the stop index database")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	searchCmd.Flags().StringVarP(&flagCategory, "type", "t", "", "Restrict to a transport type (bus|metro|rer|tram|train)")
	directionsCmd.Flags().StringVarP(&flagLine, "line", "l", "", "Restrict to a line identifier")
}

func newLogger() *slog.Logger {
	if flagVerbose {
		return logging.NewLogger(true)
	}
	return slog.New(slog.DiscardHandler)
}

func loadSettings() (*config.Store, error) {
	return config.Load(flagConfig)
}

// openIndex loads the whole stop index into memory for searching.
func openIndex(ctx context.Context, logger *slog.Logger) (*search.Index, func(), error) {
	db, err := stopdb.NewClient(stopdb.Config{Path: flagIndex}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening stop index %s: %w", flagIndex, err)
	}
	stops, err := db.LoadAll(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("loading stop index: %w", err)
	}
	return search.NewIndex(stops, logger), func() { _ = db.Close() }, nil
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check the configured PRIM API credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		if settings.APIKey() == "" {
			errorColor.Println(models.NotConfiguredMessage)
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		client := prim.NewClient("", settings, newLogger())
		result := client.TestConnection(ctx)
		if result.Success {
			successColor.Println(result.Message)
		} else {
			errorColor.Println(result.Message)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the stop index by stop or line name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, closeIndex, err := openIndex(cmd.Context(), newLogger())
		if err != nil {
			return err
		}
		defer closeIndex()

		query := strings.Join(args, " ")
		results := index.Search(query, flagCategory, search.DefaultSearchLimit)
		if len(results) == 0 {
			mutedColor.Println("Aucun résultat")
			return nil
		}

		printSearchResults(results)
		return nil
	},
}

func printSearchResults(results []models.SearchResult) {
	for i, hit := range results {
		labelColor.Printf("%2d. %s", i+1, hit.StopName)
		fmt.Printf("  [%s %s]", hit.TransportType, hit.LineName)
		mutedColor.Printf("  %s\n", hit.StopID)
	}
}

var stopsCmd = &cobra.Command{
	Use:   "stops",
	Short: "List the monitored stops in configured order",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		stops := settings.Stops()
		if len(stops) == 0 {
			mutedColor.Println("Aucun arrêt suivi — lancez `transitctl init`")
			return nil
		}
		for i, stop := range stops {
			direction := stop.Direction
			if direction == "" {
				direction = "toutes directions"
			}
			labelColor.Printf("%2d. %s", i+1, stop.Name)
			fmt.Printf("  ligne %s → %s\n", stop.Line, direction)
		}
		return nil
	},
}

var stopsAddCmd = &cobra.Command{
	Use:   "add <query>",
	Short: "Search the index and add a stop to the monitored list",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		index, closeIndex, err := openIndex(cmd.Context(), newLogger())
		if err != nil {
			return err
		}
		defer closeIndex()

		wizard := &setupWizard{
			in:       bufio.NewScanner(cmd.InOrStdin()),
			out:      cmd.OutOrStdout(),
			settings: settings,
		}
		return wizard.addStop(cmd.Context(), index, strings.Join(args, " "))
	},
}

var stopsRemoveCmd = &cobra.Command{
	Use:   "remove <number>",
	Short: "Remove a monitored stop by its position in `stops`",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		stops := settings.Stops()
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(stops) {
			return fmt.Errorf("numéro d'arrêt invalide : %s (1-%d)", args[0], len(stops))
		}

		target := stops[n-1]
		removed, err := settings.RemoveStop(target.ID, target.Direction)
		if err != nil {
			return err
		}
		if !removed {
			mutedColor.Println("Arrêt déjà retiré")
			return nil
		}
		successColor.Printf("Arrêt %s retiré\n", target.Name)
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <perimeter.csv|gtfs.zip>",
	Short: "Build the stop index from an IDFM perimeter CSV or a GTFS archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		db, err := stopdb.NewClient(stopdb.Config{Path: flagIndex}, logger)
		if err != nil {
			return fmt.Errorf("opening stop index %s: %w", flagIndex, err)
		}
		defer func() { _ = db.Close() }()

		builder := indexer.NewBuilder(db, logger)

		source := args[0]
		var report indexer.Report
		if strings.HasSuffix(strings.ToLower(source), ".zip") {
			report, err = builder.BuildFromGTFS(cmd.Context(), source)
		} else {
			report, err = builder.BuildFromCSV(cmd.Context(), source)
		}
		if err != nil {
			return err
		}

		if report.Unchanged {
			mutedColor.Println("Source inchangée, index conservé")
			return nil
		}
		successColor.Printf("Index reconstruit : %d arrêts, %d lignes, %d avec coordonnées\n",
			report.StopCount, report.LineCount, report.WithCoordinates)
		return nil
	},
}

var directionsCmd = &cobra.Command{
	Use:   "directions <stop_id>",
	Short: "List the destinations observed in live data for a stop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		if settings.APIKey() == "" {
			errorColor.Println(models.NotConfiguredMessage)
			return nil
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		client := prim.NewClient("", settings, newLogger())
		directions, err := client.ListDirections(ctx, args[0], flagLine)
		if err != nil {
			return fmt.Errorf("fetching directions: %w", err)
		}
		if len(directions) == 0 {
			mutedColor.Println("Aucune direction observée pour cet arrêt")
			return nil
		}
		for i, direction := range directions {
			labelColor.Printf("%2d. %s", i+1, direction.Direction)
			if direction.LineName != "" {
				fmt.Printf("  (ligne %s)", direction.LineName)
			}
			fmt.Println()
		}
		return nil
	},
}
