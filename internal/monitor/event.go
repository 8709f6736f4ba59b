package monitor

import (
	"strings"
	"time"
)

// DisasterType classifies a detected hazard.
type DisasterType string

const (
	TypeEarthquake DisasterType = "earthquake"
	TypeFlood      DisasterType = "flood"
	TypeWildfire   DisasterType = "wildfire"
	TypeHurricane  DisasterType = "hurricane"
	TypeTsunami    DisasterType = "tsunami"
	TypeVolcanic   DisasterType = "volcanic"
	TypeDrought    DisasterType = "drought"
	TypeLandslide  DisasterType = "landslide"
	TypeBlizzard   DisasterType = "blizzard"
	TypeHeatWave   DisasterType = "heat_wave"
	TypeAirQuality DisasterType = "air_quality"
	TypeOther      DisasterType = "other"
)

// AlertLevel grades event severity from risk scores.
type AlertLevel string

const (
	LevelGreen  AlertLevel = "green"
	LevelYellow AlertLevel = "yellow"
	LevelOrange AlertLevel = "orange"
	LevelRed    AlertLevel = "red"
	LevelBlack  AlertLevel = "black"
)

// AlertLevelForScore maps a 0..100 risk score to an alert level.
func AlertLevelForScore(score int) AlertLevel {
	switch {
	case score >= 80:
		return LevelRed
	case score >= 60:
		return LevelOrange
	case score >= 40:
		return LevelYellow
	default:
		return LevelGreen
	}
}

// Event statuses. Concluded and false-alarm events are archived.
const (
	StatusActive     = "active"
	StatusConcluded  = "concluded"
	StatusFalseAlarm = "false_alarm"
)

// Coordinates is a lon/lat pair.
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Event is a detected disaster occurrence being tracked.
type Event struct {
	EventID      string       `json:"event_id"`
	DisasterType DisasterType `json:"disaster_type"`
	Location     string       `json:"location"`
	Coordinates  Coordinates  `json:"coordinates"`
	Timestamp    time.Time    `json:"timestamp"`
	AlertLevel   AlertLevel   `json:"alert_level"`
	Description  string       `json:"description"`
	Magnitude    float64      `json:"magnitude,omitempty"`
	AffectedArea float64      `json:"affected_area,omitempty"`
	Status       string       `json:"status"`
	Source       string       `json:"source,omitempty"`
}

// disasterKeywords maps entity text fragments to disaster types. Order
// matters for inference from free text, more specific hazards first.
var disasterKeywords = []struct {
	disasterType DisasterType
	keywords     []string
}{
	{TypeEarthquake, []string{"earthquake", "seismic", "quake", "magnitude", "richter"}},
	{TypeFlood, []string{"flood", "flooding", "inundation", "overflow", "water level"}},
	{TypeWildfire, []string{"wildfire", "fire", "burn", "smoke", "flame", "forest fire"}},
	{TypeHurricane, []string{"hurricane", "cyclone", "typhoon", "storm", "wind"}},
	{TypeTsunami, []string{"tsunami", "wave", "ocean", "coastal", "tidal"}},
	{TypeVolcanic, []string{"volcano", "eruption", "ash", "lava", "magma"}},
	{TypeDrought, []string{"drought", "arid", "water shortage", "desertification"}},
	{TypeLandslide, []string{"landslide", "mudslide", "rockfall", "slope failure"}},
	{TypeBlizzard, []string{"blizzard", "snow", "ice", "winter storm"}},
	{TypeHeatWave, []string{"heat wave", "scorching"}},
	{TypeAirQuality, []string{"pollution", "smog", "air quality", "toxic gas"}},
}

// InferDisasterType classifies free text by the hazard keyword table,
// falling back to TypeOther.
func InferDisasterType(text string) DisasterType {
	disasterType, _ := matchDisasterType(text)
	return disasterType
}

func matchDisasterType(text string) (DisasterType, bool) {
	lower := strings.ToLower(text)
	for _, entry := range disasterKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.disasterType, true
			}
		}
	}
	return TypeOther, false
}
