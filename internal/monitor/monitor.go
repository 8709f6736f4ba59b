package monitor

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saveleva/disasterai/internal/analysis"
)

var magnitudePattern = regexp.MustCompile(`(?:magnitude|mag\.?)\s*(\d+(?:\.\d+)?)`)

// Monitor tracks detected disaster events. Active events live in memory
// keyed by event ID; concluded and false-alarm events move to history.
type Monitor struct {
	mu         sync.Mutex
	active     map[string]*Event
	historical []*Event
	logger     *slog.Logger
}

func New(logger *slog.Logger) *Monitor {
	return &Monitor{
		active: make(map[string]*Event),
		logger: logger,
	}
}

// DetectFromAnalysis scans an analysis result for disaster signals and
// registers every validated event. Entities matching hazard keywords
// produce events when the geospatial data locates them; features whose
// description signals damage or an emergency produce events directly.
func (m *Monitor) DetectFromAnalysis(result *analysis.Result) []*Event {
	events := m.eventsFromEntities(result)
	events = append(events, m.eventsFromFeatures(result)...)

	validated := make([]*Event, 0, len(events))
	for _, event := range events {
		if !validEvent(event) {
			continue
		}
		validated = append(validated, event)
	}

	m.mu.Lock()
	for _, event := range validated {
		m.active[event.EventID] = event
	}
	m.mu.Unlock()

	for _, event := range validated {
		m.logger.Info("detected disaster event",
			"event_id", event.EventID,
			"disaster_type", event.DisasterType,
			"location", event.Location,
			"alert_level", event.AlertLevel)
	}
	return validated
}

func (m *Monitor) eventsFromEntities(result *analysis.Result) []*Event {
	var events []*Event
	for _, entity := range result.Entities {
		disasterType, matched := matchDisasterType(entity.Text)
		if !matched {
			continue
		}
		coords, located := locateEntity(result, entity.Text)
		if !located {
			continue
		}
		events = append(events, &Event{
			EventID:      "evt_" + uuid.New().String(),
			DisasterType: disasterType,
			Location:     entity.Text,
			Coordinates:  coords,
			Timestamp:    result.Timestamp,
			AlertLevel:   AlertLevelForScore(result.RiskScore),
			Description:  "Potential " + string(disasterType) + " detected in " + entity.Text,
			Magnitude:    extractMagnitude(result.Summary),
			Status:       StatusActive,
		})
	}
	return events
}

func (m *Monitor) eventsFromFeatures(result *analysis.Result) []*Event {
	var events []*Event
	for _, feature := range result.Geospatial.Features {
		desc := strings.ToLower(feature.Properties.Description)
		if !strings.Contains(desc, "damage") && !strings.Contains(desc, "emergency") && !strings.Contains(desc, "warning") {
			continue
		}
		coords, ok := polygonCenter(feature.Geometry)
		if !ok {
			continue
		}
		disasterType, _ := matchDisasterType(feature.Properties.Description)

		event := &Event{
			EventID:      "geo_evt_" + uuid.New().String(),
			DisasterType: disasterType,
			Location:     feature.Properties.Name,
			Coordinates:  coords,
			Timestamp:    result.Timestamp,
			AlertLevel:   AlertLevel(strings.ToLower(feature.Properties.Severity)),
			Description:  feature.Properties.Description,
			Status:       StatusActive,
		}
		if area, err := strconv.ParseFloat(feature.Properties.Confidence, 64); err == nil {
			event.AffectedArea = area
		}
		events = append(events, event)
	}
	return events
}

// locateEntity finds coordinates for an entity by matching it against
// feature names, taking the centroid of the first matching polygon.
func locateEntity(result *analysis.Result, name string) (Coordinates, bool) {
	lower := strings.ToLower(name)
	for _, feature := range result.Geospatial.Features {
		if !strings.Contains(strings.ToLower(feature.Properties.Name), lower) {
			continue
		}
		if coords, ok := polygonCenter(feature.Geometry); ok {
			return coords, true
		}
	}
	return Coordinates{}, false
}

func polygonCenter(geom analysis.Geometry) (Coordinates, bool) {
	if geom.Type != "Polygon" || len(geom.Coordinates) == 0 {
		return Coordinates{}, false
	}
	var rings [][][]float64
	if err := json.Unmarshal(geom.Coordinates, &rings); err != nil || len(rings) == 0 || len(rings[0]) == 0 {
		return Coordinates{}, false
	}
	ring := rings[0]
	var lonSum, latSum float64
	for _, point := range ring {
		if len(point) < 2 {
			return Coordinates{}, false
		}
		lonSum += point[0]
		latSum += point[1]
	}
	n := float64(len(ring))
	return Coordinates{Lon: lonSum / n, Lat: latSum / n}, true
}

func extractMagnitude(summary string) float64 {
	match := magnitudePattern.FindStringSubmatch(strings.ToLower(summary))
	if match == nil {
		return 0
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return value
}

func validEvent(event *Event) bool {
	if len(strings.TrimSpace(event.Location)) < 2 {
		return false
	}
	if event.Coordinates.Lon < -180 || event.Coordinates.Lon > 180 ||
		event.Coordinates.Lat < -90 || event.Coordinates.Lat > 90 {
		return false
	}
	// Richter scale bounds.
	if event.DisasterType == TypeEarthquake && event.Magnitude != 0 &&
		(event.Magnitude < 1.0 || event.Magnitude > 10.0) {
		return false
	}
	return true
}

// ActiveEvents returns active events, newest first, optionally filtered
// by disaster type and alert level.
func (m *Monitor) ActiveEvents(disasterType DisasterType, alertLevel AlertLevel) []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]*Event, 0, len(m.active))
	for _, event := range m.active {
		if disasterType != "" && event.DisasterType != disasterType {
			continue
		}
		if alertLevel != "" && event.AlertLevel != alertLevel {
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events
}

// HistoricalEvents returns archived events no older than daysBack days,
// newest first.
func (m *Monitor) HistoricalEvents(daysBack int) []*Event {
	if daysBack <= 0 {
		daysBack = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)

	m.mu.Lock()
	defer m.mu.Unlock()

	var events []*Event
	for _, event := range m.historical {
		if !event.Timestamp.Before(cutoff) {
			events = append(events, event)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	return events
}

// UpdateEventStatus changes an active event's status. Concluded and
// false-alarm events move to history. Returns false for unknown IDs.
func (m *Monitor) UpdateEventStatus(eventID, status string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.active[eventID]
	if !ok {
		return false
	}
	event.Status = status
	if status == StatusConcluded || status == StatusFalseAlarm {
		delete(m.active, eventID)
		m.historical = append(m.historical, event)
	}
	return true
}

// SummaryStatistics aggregates event counts for the stats feed.
func (m *Monitor) SummaryStatistics() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	typeCounts := make(map[string]int)
	for _, event := range m.active {
		typeCounts[string(event.DisasterType)]++
	}
	for _, event := range m.historical {
		typeCounts[string(event.DisasterType)]++
	}

	alertCounts := make(map[string]int)
	recent := 0
	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	for _, event := range m.active {
		alertCounts[string(event.AlertLevel)]++
		if event.Timestamp.After(yesterday) {
			recent++
		}
	}

	return map[string]any{
		"total_active_events":        len(m.active),
		"total_historical_events":    len(m.historical),
		"disaster_type_distribution": typeCounts,
		"current_alert_levels":       alertCounts,
		"recent_activity":            recent,
		"last_updated":               time.Now().UTC().Format(time.RFC3339),
	}
}
