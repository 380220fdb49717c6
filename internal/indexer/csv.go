package indexer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/tomlapa/paris-transit-dashboard/internal/geo"
	"github.com/tomlapa/paris-transit-dashboard/internal/idfm"
	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// Required perimeter export columns.
const (
	columnLine     = "line"
	columnLineName = "name_line"
	columnStopRef  = "ns2_stoppointref"
	columnStopName = "ns2_stopname"
)

// Coordinate column pairs probed in order; exports differ on naming. The
// values are EPSG:2154 easting/northing.
var coordinateColumns = [][2]string{
	{"xepsg2154", "yepsg2154"},
	{"stop_x", "stop_y"},
	{"x", "y"},
}

// ParseCSV reads an IDFM real-time perimeter export (semicolon-separated,
// UTF-8 with optional BOM) and folds its rows into indexed stops. Rows
// without a stop or line identifier are skipped; duplicated (stop, line)
// pairs collapse to their first occurrence.
func ParseCSV(r io.Reader, logger *slog.Logger) ([]models.IndexedStop, error) {
	if logger == nil {
		logger = slog.Default()
	}

	br := bufio.NewReader(r)
	stripBOM(br)

	reader := csv.NewReader(br)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read CSV header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{columnLine, columnLineName, columnStopRef, columnStopName} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	xCol, yCol := -1, -1
	for _, pair := range coordinateColumns {
		x, okX := columns[pair[0]]
		y, okY := columns[pair[1]]
		if okX && okY {
			xCol, yCol = x, y
			break
		}
	}

	var (
		stops    []models.IndexedStop
		position = make(map[string]int)
		seenLine = make(map[string]struct{})
		skipped  int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read CSV record: %w", err)
		}

		lineID := strings.TrimSpace(field(record, columns[columnLine]))
		lineName := strings.TrimSpace(field(record, columns[columnLineName]))
		stopID := strings.TrimSpace(field(record, columns[columnStopRef]))
		stopName := strings.TrimSpace(field(record, columns[columnStopName]))
		if lineID == "" || stopID == "" {
			skipped++
			continue
		}

		idx, ok := position[stopID]
		if !ok {
			stops = append(stops, models.IndexedStop{ID: stopID, Name: stopName})
			idx = len(stops) - 1
			position[stopID] = idx
		}

		stop := &stops[idx]
		if stop.Name == "" && stopName != "" {
			stop.Name = stopName
		}
		if stop.Lat == 0 && stop.Lon == 0 && xCol >= 0 {
			if lat, lon, ok := parseLambert(field(record, xCol), field(record, yCol)); ok {
				stop.Lat, stop.Lon = lat, lon
			}
		}

		dedupeKey := stopID + "|" + lineID + "|" + lineName
		if _, dup := seenLine[dedupeKey]; dup {
			continue
		}
		seenLine[dedupeKey] = struct{}{}

		stop.Lines = append(stop.Lines, models.IndexedLine{
			LineID:        lineID,
			LineName:      lineName,
			TransportType: idfm.CategoryForLine(lineID, lineName),
		})
	}

	if skipped > 0 {
		logging.LogOperation(logger, "csv_rows_skipped", slog.Int("count", skipped))
	}
	return stops, nil
}

func stripBOM(br *bufio.Reader) {
	bom := []byte{0xEF, 0xBB, 0xBF}
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, bom) {
		_, _ = br.Discard(3)
	}
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

// parseLambert converts one row's EPSG:2154 pair to WGS84, tolerating French
// decimal commas. A (0, 0) pair means the coordinate is absent.
func parseLambert(xs, ys string) (lat, lon float64, ok bool) {
	x, errX := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(xs), ",", "."), 64)
	y, errY := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(ys), ",", "."), 64)
	if errX != nil || errY != nil || (x == 0 && y == 0) {
		return 0, 0, false
	}
	lat, lon = geo.LambertToWGS84(x, y)
	return lat, lon, true
}
