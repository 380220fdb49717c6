package stopdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

// Metadata records how and when the index was last built.
type Metadata struct {
	Source     string
	SourceHash string
	BuiltAt    int64
	StopCount  int64
	LineCount  int64
}

const upsertStop = `
INSERT INTO stops (id, name, lat, lon)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    lat = excluded.lat,
    lon = excluded.lon
`

// UpsertStop inserts or updates a single stop. The full-text table is not
// touched; callers that change stops outside ReplaceAll must call
// RebuildFullText before searching.
func (c *Client) UpsertStop(ctx context.Context, stop models.IndexedStop) error {
	_, err := c.DB.ExecContext(ctx, upsertStop, stop.ID, stop.Name, stop.Lat, stop.Lon)
	if err != nil {
		return fmt.Errorf("unable to upsert stop %s: %w", stop.ID, err)
	}
	return nil
}

const insertStopLine = `
INSERT OR IGNORE INTO stop_lines (stop_id, line_id, line_name, category)
VALUES (?, ?, ?, ?)
`

// InsertStopLine records one line as serving a stop. Inserting the same
// (stop, line id, line name) again is a no-op.
func (c *Client) InsertStopLine(ctx context.Context, stopID string, line models.IndexedLine) error {
	_, err := c.DB.ExecContext(ctx, insertStopLine, stopID, line.LineID, line.LineName, line.TransportType)
	if err != nil {
		return fmt.Errorf("unable to insert line %s for stop %s: %w", line.LineID, stopID, err)
	}
	return nil
}

// RebuildFullText resyncs stops_fts from the stops table.
func (c *Client) RebuildFullText(ctx context.Context) error {
	_, err := c.DB.ExecContext(ctx, "INSERT INTO stops_fts(stops_fts) VALUES('rebuild')")
	if err != nil {
		return fmt.Errorf("unable to rebuild stops_fts: %w", err)
	}
	return nil
}

const upsertMetadata = `
INSERT INTO index_metadata (id, source, source_hash, built_at, stop_count, line_count)
VALUES (1, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    source = excluded.source,
    source_hash = excluded.source_hash,
    built_at = excluded.built_at,
    stop_count = excluded.stop_count,
    line_count = excluded.line_count
`

// ReplaceAll swaps the index content in one transaction: existing rows are
// dropped, the given stops and their lines inserted, the full-text table
// rebuilt and the metadata row replaced with meta plus the row counts.
func (c *Client) ReplaceAll(ctx context.Context, stops []models.IndexedStop, meta Metadata) error {
	logging.LogOperation(c.logger, "replacing_stop_index",
		slog.Int("stops", len(stops)),
		slog.String("source", meta.Source))

	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer logging.SafeRollbackWithLogging(tx, c.logger, "replace_stop_index")

	if _, err := tx.ExecContext(ctx, "DELETE FROM stop_lines"); err != nil {
		return fmt.Errorf("error clearing stop_lines: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM stops"); err != nil {
		return fmt.Errorf("error clearing stops: %w", err)
	}

	stopStmt, err := tx.PrepareContext(ctx, upsertStop)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(stopStmt, c.logger, "stop insert statement")

	lineStmt, err := tx.PrepareContext(ctx, insertStopLine)
	if err != nil {
		return err
	}
	defer logging.SafeCloseWithLogging(lineStmt, c.logger, "stop line insert statement")

	var lineCount int64
	for _, stop := range stops {
		if _, err := stopStmt.ExecContext(ctx, stop.ID, stop.Name, stop.Lat, stop.Lon); err != nil {
			return fmt.Errorf("error inserting stop %s: %w", stop.ID, err)
		}
		for _, line := range stop.Lines {
			if _, err := lineStmt.ExecContext(ctx, stop.ID, line.LineID, line.LineName, line.TransportType); err != nil {
				return fmt.Errorf("error inserting line %s for stop %s: %w", line.LineID, stop.ID, err)
			}
			lineCount++
		}
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO stops_fts(stops_fts) VALUES('rebuild')"); err != nil {
		return fmt.Errorf("error rebuilding stops_fts: %w", err)
	}

	meta.StopCount = int64(len(stops))
	meta.LineCount = lineCount
	if _, err := tx.ExecContext(ctx, upsertMetadata,
		meta.Source, meta.SourceHash, meta.BuiltAt, meta.StopCount, meta.LineCount); err != nil {
		return fmt.Errorf("error updating index metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logging.LogOperation(c.logger, "stop_index_replaced",
		slog.Int("stops", len(stops)),
		slog.Int64("lines", lineCount))

	return nil
}

const loadAllStops = `
SELECT
    s.id,
    s.name,
    s.lat,
    s.lon,
    l.line_id,
    l.line_name,
    l.category
FROM stops s
LEFT JOIN stop_lines l ON l.stop_id = s.id
ORDER BY s.name, s.id, l.line_name
`

// LoadAll returns every indexed stop with its lines, ordered by stop name.
func (c *Client) LoadAll(ctx context.Context) ([]models.IndexedStop, error) {
	rows, err := c.DB.QueryContext(ctx, loadAllStops)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below

	var stops []models.IndexedStop
	byID := make(map[string]int)
	for rows.Next() {
		var (
			id, name                   string
			lat, lon                   float64
			lineID, lineName, category sql.NullString
		)
		if err := rows.Scan(&id, &name, &lat, &lon, &lineID, &lineName, &category); err != nil {
			return nil, err
		}

		idx, ok := byID[id]
		if !ok {
			stops = append(stops, models.IndexedStop{ID: id, Name: name, Lat: lat, Lon: lon})
			idx = len(stops) - 1
			byID[id] = idx
		}
		if lineID.Valid {
			stops[idx].Lines = append(stops[idx].Lines, models.IndexedLine{
				LineID:        lineID.String,
				LineName:      lineName.String,
				TransportType: category.String,
			})
		}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stops, nil
}

const linesForStop = `
SELECT line_id, line_name, category
FROM stop_lines
WHERE stop_id = ?
ORDER BY line_name
`

// LinesForStop returns the lines serving one stop, ordered by line name.
func (c *Client) LinesForStop(ctx context.Context, stopID string) ([]models.IndexedLine, error) {
	rows, err := c.DB.QueryContext(ctx, linesForStop, stopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // closing is also checked explicitly below

	var lines []models.IndexedLine
	for rows.Next() {
		var line models.IndexedLine
		if err := rows.Scan(&line.LineID, &line.LineName, &line.TransportType); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

const getMetadata = `
SELECT source, source_hash, built_at, stop_count, line_count
FROM index_metadata
WHERE id = 1
`

// GetMetadata returns the build record, or sql.ErrNoRows when the index has
// never been built.
func (c *Client) GetMetadata(ctx context.Context) (Metadata, error) {
	var m Metadata
	err := c.DB.QueryRowContext(ctx, getMetadata).Scan(
		&m.Source, &m.SourceHash, &m.BuiltAt, &m.StopCount, &m.LineCount)
	if err != nil {
		return Metadata{}, err
	}
	return m, nil
}
