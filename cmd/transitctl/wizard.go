package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomlapa/paris-transit-dashboard/internal/config"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
	"github.com/tomlapa/paris-transit-dashboard/internal/prim"
	"github.com/tomlapa/paris-transit-dashboard/internal/search"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive first-run setup: credential, monitored stops, cadence",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		wizard := &setupWizard{
			in:       bufio.NewScanner(cmd.InOrStdin()),
			out:      cmd.OutOrStdout(),
			settings: settings,
		}
		return wizard.run(cmd.Context())
	},
}

// setupWizard walks through credential entry, stop selection and cadence, in
// the same order as the admin page.
type setupWizard struct {
	in       *bufio.Scanner
	out      io.Writer
	settings *config.Store
}

func (w *setupWizard) prompt(label string) string {
	fmt.Fprintf(w.out, "%s ", label)
	if !w.in.Scan() {
		return ""
	}
	return strings.TrimSpace(w.in.Text())
}

// promptChoice asks for a number between 1 and count; zero means abort.
func (w *setupWizard) promptChoice(label string, count int) int {
	for {
		answer := w.prompt(fmt.Sprintf("%s (1-%d, vide pour annuler) :", label, count))
		if answer == "" {
			return 0
		}
		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= count {
			return n
		}
		errorColor.Fprintln(w.out, "Choix invalide")
	}
}

func (w *setupWizard) run(ctx context.Context) error {
	labelColor.Fprintln(w.out, "— Configuration du tableau de bord —")

	if err := w.configureKey(ctx); err != nil {
		return err
	}

	index, closeIndex, err := openIndex(ctx, newLogger())
	if err != nil {
		return fmt.Errorf("l'index des arrêts est requis (construisez-le avec `transitctl index`): %w", err)
	}
	defer closeIndex()

	for {
		if err := w.addStop(ctx, index, ""); err != nil {
			return err
		}
		if !strings.EqualFold(w.prompt("Ajouter un autre arrêt ? (o/N) :"), "o") {
			break
		}
	}

	return w.configureInterval()
}

// configureKey prompts for a credential, keeping the current one when the
// user just presses enter, and verifies it against the PRIM test stop.
func (w *setupWizard) configureKey(ctx context.Context) error {
	current := w.settings.APIKey()
	label := "Clé API PRIM :"
	if current != "" {
		label = fmt.Sprintf("Clé API PRIM (vide pour garder %s) :", config.MaskKey(current))
	}

	key := w.prompt(label)
	if key == "" {
		if current == "" {
			return fmt.Errorf("une clé API est requise")
		}
		key = current
	}

	testCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	result := prim.NewClient("", prim.StaticKey(key), newLogger()).TestConnection(testCtx)
	if !result.Success {
		errorColor.Fprintln(w.out, result.Message)
		return fmt.Errorf("la clé API n'a pas pu être vérifiée")
	}
	successColor.Fprintln(w.out, result.Message)

	if key != current {
		return w.settings.SetAPIKey(key)
	}
	return nil
}

// addStop searches the index, offers live directions for the chosen stop and
// persists the subscription. A non-empty initialQuery skips the first prompt.
func (w *setupWizard) addStop(ctx context.Context, index *search.Index, initialQuery string) error {
	var hit models.SearchResult
	query := initialQuery
	for {
		if query == "" {
			query = w.prompt("Nom de l'arrêt à suivre :")
		}
		if query == "" {
			return nil
		}

		results := index.Search(query, "", 10)
		if len(results) == 0 {
			errorColor.Fprintln(w.out, "Aucun résultat, essayez une autre orthographe")
			query = ""
			continue
		}

		for i, result := range results {
			fmt.Fprintf(w.out, "%2d. %s  [%s %s]\n", i+1, result.StopName, result.TransportType, result.LineName)
		}
		choice := w.promptChoice("Quel arrêt ?", len(results))
		if choice == 0 {
			return nil
		}
		hit = results[choice-1]
		break
	}

	direction, directionID := w.chooseDirection(ctx, hit)

	stop := models.MonitoredStop{
		ID:            hit.StopID,
		Name:          hit.StopName,
		Line:          hit.LineName,
		LineID:        hit.LineID,
		Direction:     direction,
		DirectionID:   directionID,
		TransportType: hit.TransportType,
	}
	added, err := w.settings.AddStop(stop)
	if err != nil {
		return err
	}
	if !added {
		mutedColor.Fprintln(w.out, "Cet arrêt est déjà suivi")
		return nil
	}
	successColor.Fprintf(w.out, "Arrêt %s ajouté\n", stop.Name)
	return nil
}

// chooseDirection lists the destinations currently observed in live data and
// lets the user restrict the subscription to one. Empty means all directions,
// also the fallback when live data is unavailable.
func (w *setupWizard) chooseDirection(ctx context.Context, hit models.SearchResult) (direction, directionID string) {
	listCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client := prim.NewClient("", w.settings, newLogger())
	directions, err := client.ListDirections(listCtx, hit.StopID, hit.LineID)
	if err != nil || len(directions) == 0 {
		mutedColor.Fprintln(w.out, "Directions indisponibles, toutes les directions seront suivies")
		return "", ""
	}

	fmt.Fprintln(w.out, " 0. Toutes les directions")
	for i, d := range directions {
		fmt.Fprintf(w.out, "%2d. %s\n", i+1, d.Direction)
	}

	answer := w.prompt(fmt.Sprintf("Quelle direction ? (0-%d) :", len(directions)))
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(directions) {
		return "", ""
	}
	return directions[n-1].Direction, directions[n-1].DirectionID
}

// configureInterval optionally changes the poll cadence.
func (w *setupWizard) configureInterval() error {
	answer := w.prompt(fmt.Sprintf("Intervalle de rafraîchissement en secondes (%d-%d, vide pour %d) :",
		config.MinRefreshSeconds, config.MaxRefreshSeconds, config.DefaultRefreshSeconds))
	if answer == "" {
		successColor.Fprintln(w.out, "Configuration terminée — lancez le serveur avec `api`")
		return nil
	}

	seconds, err := strconv.Atoi(answer)
	if err != nil {
		return fmt.Errorf("intervalle invalide : %s", answer)
	}
	if err := w.settings.SetRefreshInterval(seconds); err != nil {
		return err
	}
	successColor.Fprintln(w.out, "Configuration terminée — lancez le serveur avec `api`")
	return nil
}
