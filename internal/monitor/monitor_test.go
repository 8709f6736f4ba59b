package monitor

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saveleva/disasterai/internal/analysis"
)

func polygonFeature(name, severity, description string, ring [][]float64) analysis.Feature {
	coords, _ := json.Marshal([][][]float64{ring})
	return analysis.Feature{
		Type: "Feature",
		Geometry: analysis.Geometry{
			Type:        "Polygon",
			Coordinates: coords,
		},
		Properties: analysis.Properties{
			Name:        name,
			Severity:    severity,
			Description: description,
			Confidence:  "0.9",
		},
	}
}

func quakeResult(riskScore int) *analysis.Result {
	return &analysis.Result{
		TaskID:    "task_1",
		Summary:   "Major earthquake of magnitude 7.2 struck near Napa Valley",
		RiskScore: riskScore,
		Entities: []analysis.Entity{
			{Text: "Napa Valley earthquake zone", Label: analysis.LabelLocation},
		},
		Geospatial: analysis.FeatureCollection{
			Type: "FeatureCollection",
			Features: []analysis.Feature{
				polygonFeature("Napa Valley earthquake zone", "High", "Severe structural damage reported",
					[][]float64{{-122.4, 38.3}, {-122.2, 38.3}, {-122.2, 38.5}, {-122.4, 38.5}}),
			},
		},
		Timestamp: time.Now().UTC(),
	}
}

func TestMonitor_DetectFromAnalysis(t *testing.T) {
	m := New(slog.Default())

	events := m.DetectFromAnalysis(quakeResult(85))
	require.NotEmpty(t, events)

	var entityEvent *Event
	for _, event := range events {
		if event.DisasterType == TypeEarthquake && event.Magnitude != 0 {
			entityEvent = event
		}
	}
	require.NotNil(t, entityEvent)

	assert.Equal(t, LevelRed, entityEvent.AlertLevel)
	assert.InDelta(t, 7.2, entityEvent.Magnitude, 0.001)
	assert.InDelta(t, -122.3, entityEvent.Coordinates.Lon, 0.001)
	assert.InDelta(t, 38.4, entityEvent.Coordinates.Lat, 0.001)
	assert.Equal(t, StatusActive, entityEvent.Status)

	active := m.ActiveEvents("", "")
	assert.Len(t, active, len(events))
}

func TestMonitor_AlertLevelForScore(t *testing.T) {
	assert.Equal(t, LevelRed, AlertLevelForScore(80))
	assert.Equal(t, LevelOrange, AlertLevelForScore(65))
	assert.Equal(t, LevelYellow, AlertLevelForScore(40))
	assert.Equal(t, LevelGreen, AlertLevelForScore(39))
	assert.Equal(t, LevelGreen, AlertLevelForScore(0))
}

func TestMonitor_EntityWithoutCoordinatesSkipped(t *testing.T) {
	m := New(slog.Default())

	result := quakeResult(85)
	result.Geospatial.Features = nil

	events := m.DetectFromAnalysis(result)
	assert.Empty(t, events)
}

func TestMonitor_ImplausibleMagnitudeRejected(t *testing.T) {
	m := New(slog.Default())

	result := quakeResult(85)
	result.Summary = "Earthquake of magnitude 42 reported"

	for _, event := range m.DetectFromAnalysis(result) {
		assert.Zero(t, event.Magnitude, "event %s should not carry a magnitude outside the Richter scale", event.EventID)
	}
}

func TestMonitor_UpdateEventStatus(t *testing.T) {
	m := New(slog.Default())
	events := m.DetectFromAnalysis(quakeResult(85))
	require.NotEmpty(t, events)
	target := events[0]

	assert.True(t, m.UpdateEventStatus(target.EventID, StatusConcluded))
	assert.False(t, m.UpdateEventStatus(target.EventID, StatusConcluded), "concluded event is no longer active")
	assert.False(t, m.UpdateEventStatus("evt_unknown", StatusConcluded))

	historical := m.HistoricalEvents(30)
	require.Len(t, historical, 1)
	assert.Equal(t, target.EventID, historical[0].EventID)

	for _, event := range m.ActiveEvents("", "") {
		assert.NotEqual(t, target.EventID, event.EventID)
	}
}

func TestMonitor_ActiveEventFilters(t *testing.T) {
	m := New(slog.Default())
	m.DetectFromAnalysis(quakeResult(85))

	quakes := m.ActiveEvents(TypeEarthquake, "")
	assert.NotEmpty(t, quakes)
	for _, event := range quakes {
		assert.Equal(t, TypeEarthquake, event.DisasterType)
	}

	assert.Empty(t, m.ActiveEvents(TypeTsunami, ""))
	assert.Empty(t, m.ActiveEvents("", LevelGreen))
}

func TestMonitor_SummaryStatistics(t *testing.T) {
	m := New(slog.Default())
	events := m.DetectFromAnalysis(quakeResult(85))
	require.NotEmpty(t, events)

	stats := m.SummaryStatistics()
	assert.Equal(t, len(events), stats["total_active_events"])
	assert.Equal(t, 0, stats["total_historical_events"])
	assert.Equal(t, len(events), stats["recent_activity"])

	types, ok := stats["disaster_type_distribution"].(map[string]int)
	require.True(t, ok)
	assert.Greater(t, types[string(TypeEarthquake)], 0)
}

func TestPolygonCenter(t *testing.T) {
	coords, _ := json.Marshal([][][]float64{{{0, 0}, {2, 0}, {2, 2}, {0, 2}}})
	center, ok := polygonCenter(analysis.Geometry{Type: "Polygon", Coordinates: coords})
	require.True(t, ok)
	assert.InDelta(t, 1.0, center.Lon, 0.001)
	assert.InDelta(t, 1.0, center.Lat, 0.001)

	_, ok = polygonCenter(analysis.Geometry{Type: "Point", Coordinates: json.RawMessage(`[1,2]`)})
	assert.False(t, ok)
}
