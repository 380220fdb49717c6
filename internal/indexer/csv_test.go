package indexer

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomlapa/paris-transit-dashboard/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const perimeterCSV = "\uFEFF" + `line;name_line;ns2_stoppointref;ns2_stopname;xepsg2154;yepsg2154
STIF:Line::C01742:;A;STIF:StopPoint:Q:473921:;Joinville-le-Pont;700000;6600000
STIF:Line::C02251:;77;STIF:StopPoint:Q:473921:;Joinville-le-Pont;700000;6600000
STIF:Line::C01378:;8;STIF:StopPoint:Q:474025:;École Vétérinaire de Maisons-Alfort;;
STIF:Line::C01390:;T7;STIF:StopPoint:Q:48033:;Porte de l'Essonne;0;0
STIF:Line::C01742:;A;STIF:StopPoint:Q:473921:;Joinville-le-Pont;700000;6600000
;;STIF:StopPoint:Q:99999:;Sans ligne;;
`

func TestParseCSV(t *testing.T) {
	stops, err := ParseCSV(strings.NewReader(perimeterCSV), discardLogger())
	require.NoError(t, err)
	require.Len(t, stops, 3, "row without a line id is skipped")

	joinville := stops[0]
	assert.Equal(t, "STIF:StopPoint:Q:473921:", joinville.ID)
	assert.Equal(t, "Joinville-le-Pont", joinville.Name)
	require.Len(t, joinville.Lines, 2, "duplicated line rows collapse")
	assert.Equal(t, models.IndexedLine{LineID: "STIF:Line::C01742:", LineName: "A", TransportType: models.TransportRER}, joinville.Lines[0])
	assert.Equal(t, models.TransportBus, joinville.Lines[1].TransportType)

	ecole := stops[1]
	assert.Equal(t, "École Vétérinaire de Maisons-Alfort", ecole.Name)
	assert.Equal(t, models.TransportMetro, ecole.Lines[0].TransportType)
	assert.Zero(t, ecole.Lat, "empty coordinate columns leave the stop unplaced")
	assert.Zero(t, ecole.Lon)

	tram := stops[2]
	assert.Equal(t, models.TransportTram, tram.Lines[0].TransportType)
	assert.Zero(t, tram.Lat, "a (0, 0) pair means the coordinate is absent")
}

func TestParseCSVConvertsLambertCoordinates(t *testing.T) {
	stops, err := ParseCSV(strings.NewReader(perimeterCSV), discardLogger())
	require.NoError(t, err)

	// (700000, 6600000) is the projection's false origin, 46°30'N 3°E.
	joinville := stops[0]
	assert.InDelta(t, 46.5, joinville.Lat, 1e-6)
	assert.InDelta(t, 3.0, joinville.Lon, 1e-6)
}

func TestParseCSVWithoutCoordinateColumns(t *testing.T) {
	csv := `line;name_line;ns2_stoppointref;ns2_stopname
STIF:Line::C01742:;A;STIF:StopPoint:Q:473921:;Joinville-le-Pont
`
	stops, err := ParseCSV(strings.NewReader(csv), discardLogger())
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.Zero(t, stops[0].Lat)
	assert.Zero(t, stops[0].Lon)
}

func TestParseCSVDecimalCommaCoordinates(t *testing.T) {
	csv := `line;name_line;ns2_stoppointref;ns2_stopname;x;y
STIF:Line::C01742:;A;STIF:StopPoint:Q:1:;Test;"700000,0";"6600000,0"
`
	stops, err := ParseCSV(strings.NewReader(csv), discardLogger())
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.InDelta(t, 46.5, stops[0].Lat, 1e-6)
}

func TestParseCSVMissingRequiredColumn(t *testing.T) {
	csv := `line;name_line;ns2_stopname
STIF:Line::C01742:;A;Joinville-le-Pont
`
	_, err := ParseCSV(strings.NewReader(csv), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ns2_stoppointref")
}

func TestParseCSVHeaderCaseInsensitive(t *testing.T) {
	csv := `Line;Name_Line;NS2_StopPointRef;NS2_StopName
STIF:Line::C01742:;A;STIF:StopPoint:Q:473921:;Joinville-le-Pont
`
	stops, err := ParseCSV(strings.NewReader(csv), discardLogger())
	require.NoError(t, err)
	assert.Len(t, stops, 1)
}

func TestParseCSVEmptyFile(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), discardLogger())
	assert.Error(t, err)
}
