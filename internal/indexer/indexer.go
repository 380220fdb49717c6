// Package indexer builds the stop search index from IDFM source data, either
// the real-time perimeter CSV export or a GTFS archive. A build replaces the
// whole index; a source file whose hash matches the previous build is
// skipped.
package indexer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tomlapa/paris-transit-dashboard/internal/logging"
	"github.com/tomlapa/paris-transit-dashboard/internal/models"
	"github.com/tomlapa/paris-transit-dashboard/stopdb"
)

// Builder parses source data and writes the result into the index database.
type Builder struct {
	db     *stopdb.Client
	logger *slog.Logger
}

// Report summarizes one index build.
type Report struct {
	Source          string
	StopCount       int
	LineCount       int
	WithCoordinates int
	Unchanged       bool
}

func NewBuilder(db *stopdb.Client, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		db:     db,
		logger: logger.With(slog.String("component", "indexer")),
	}
}

// BuildFromCSV parses an IDFM perimeter export and replaces the index.
func (b *Builder) BuildFromCSV(ctx context.Context, path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}

	if report, done := b.skipIfUnchanged(ctx, path, data); done {
		return report, nil
	}

	stops, err := ParseCSV(bytes.NewReader(data), b.logger)
	if err != nil {
		return Report{}, err
	}
	return b.store(ctx, stops, path, data)
}

// BuildFromGTFS parses a GTFS zip archive and replaces the index.
func (b *Builder) BuildFromGTFS(ctx context.Context, path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, err
	}

	if report, done := b.skipIfUnchanged(ctx, path, data); done {
		return report, nil
	}

	stops, err := ParseGTFS(data)
	if err != nil {
		return Report{}, err
	}
	return b.store(ctx, stops, path, data)
}

func (b *Builder) skipIfUnchanged(ctx context.Context, path string, data []byte) (Report, bool) {
	existing, err := b.db.GetMetadata(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, false
	}
	if err != nil {
		logging.LogError(b.logger, "unable to read index metadata", err)
		return Report{}, false
	}

	hash := sourceHash(data)
	if existing.SourceHash != hash || existing.Source != filepath.Base(path) {
		return Report{}, false
	}

	logging.LogOperation(b.logger, "index_source_unchanged_skipping_build",
		slog.String("hash", hash[:8]))
	return Report{
		Source:    existing.Source,
		StopCount: int(existing.StopCount),
		LineCount: int(existing.LineCount),
		Unchanged: true,
	}, true
}

func (b *Builder) store(ctx context.Context, stops []models.IndexedStop, path string, data []byte) (Report, error) {
	started := time.Now()

	meta := stopdb.Metadata{
		Source:     filepath.Base(path),
		SourceHash: sourceHash(data),
		BuiltAt:    time.Now().Unix(),
	}
	if err := b.db.ReplaceAll(ctx, stops, meta); err != nil {
		return Report{}, fmt.Errorf("unable to store index: %w", err)
	}

	report := Report{Source: meta.Source, StopCount: len(stops)}
	for _, stop := range stops {
		report.LineCount += len(stop.Lines)
		if stop.Lat != 0 || stop.Lon != 0 {
			report.WithCoordinates++
		}
	}

	logging.LogOperation(b.logger, "index_build_completed",
		slog.String("source", meta.Source),
		slog.Int("stops", report.StopCount),
		slog.Int("lines", report.LineCount),
		slog.Int("with_coordinates", report.WithCoordinates),
		slog.Duration("duration", time.Since(started)))

	return report, nil
}

func sourceHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
