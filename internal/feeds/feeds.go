// Package feeds pulls live disaster data from public sources: the USGS
// earthquake GeoJSON feeds and the GDACS RSS feed. Responses are cached per
// source so the upstream APIs are hit at most once per cache window.
package feeds

import (
	"context"
	"encoding/xml"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/saveleva/disasterai/internal/monitor"
)

const (
	defaultUSGSURL  = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary"
	defaultGDACSURL = "https://www.gdacs.org/xml/rss.xml"

	cacheTTL = 5 * time.Minute

	maxUSGSEvents  = 50
	maxGDACSEvents = 30
)

// Sources reported on live events.
const (
	SourceUSGS  = "USGS"
	SourceGDACS = "GDACS"
)

// Service fetches and caches live disaster events.
type Service struct {
	usgsURL  string
	gdacsURL string
	client   *http.Client
	logger   *slog.Logger

	mu        sync.Mutex
	cache     map[string][]*monitor.Event
	fetchedAt map[string]time.Time
}

func NewService(logger *slog.Logger) *Service {
	return NewServiceWithEndpoints(defaultUSGSURL, defaultGDACSURL, logger)
}

// NewServiceWithEndpoints builds a Service against alternate feed URLs,
// for mirrors and for tests.
func NewServiceWithEndpoints(usgsURL, gdacsURL string, logger *slog.Logger) *Service {
	return &Service{
		usgsURL:   usgsURL,
		gdacsURL:  gdacsURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger.With("component", "live_feeds"),
		cache:     make(map[string][]*monitor.Event),
		fetchedAt: make(map[string]time.Time),
	}
}

func (s *Service) cached(key string) ([]*monitor.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fetched, ok := s.fetchedAt[key]
	if !ok || time.Since(fetched) >= cacheTTL {
		return nil, false
	}
	return s.cache[key], true
}

func (s *Service) store(key string, events []*monitor.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = events
	s.fetchedAt[key] = time.Now()
}

func (s *Service) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// FetchUSGSEarthquakes returns recent earthquakes from the USGS all-magnitude
// feed for the given timeframe (hour, day, week or month).
func (s *Service) FetchUSGSEarthquakes(ctx context.Context, timeframe string) ([]*monitor.Event, error) {
	cacheKey := "usgs_" + timeframe
	if events, ok := s.cached(cacheKey); ok {
		return events, nil
	}

	url := fmt.Sprintf("%s/all_%s.geojson", s.usgsURL, timeframe)
	s.logger.Info("fetching USGS earthquake data", "url", url)

	body, err := s.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch USGS feed: %w", err)
	}

	var events []*monitor.Event
	features := gjson.GetBytes(body, "features")
	features.ForEach(func(_, feature gjson.Result) bool {
		if len(events) >= maxUSGSEvents {
			return false
		}

		props := feature.Get("properties")
		coords := feature.Get("geometry.coordinates")
		magnitude := props.Get("mag").Float()

		status := monitor.StatusActive
		if props.Get("status").String() == "reviewed" {
			status = "verified"
		}

		events = append(events, &monitor.Event{
			EventID:      "usgs_" + feature.Get("id").String(),
			DisasterType: monitor.TypeEarthquake,
			Location:     props.Get("place").String(),
			Coordinates: monitor.Coordinates{
				Lon: coords.Get("0").Float(),
				Lat: coords.Get("1").Float(),
			},
			Timestamp:  time.UnixMilli(props.Get("time").Int()).UTC(),
			AlertLevel: magnitudeToAlertLevel(magnitude),
			Magnitude:  magnitude,
			Description: fmt.Sprintf("Magnitude %g earthquake. Depth: %.1f km. %s",
				magnitude, coords.Get("2").Float(), props.Get("title").String()),
			Status: status,
			Source: SourceUSGS,
		})
		return true
	})

	s.logger.Info("retrieved USGS earthquakes", "count", len(events))
	s.store(cacheKey, events)
	return events, nil
}

func magnitudeToAlertLevel(magnitude float64) monitor.AlertLevel {
	switch {
	case magnitude >= 7.0:
		return monitor.LevelBlack
	case magnitude >= 6.0:
		return monitor.LevelRed
	case magnitude >= 5.0:
		return monitor.LevelOrange
	case magnitude >= 4.0:
		return monitor.LevelYellow
	default:
		return monitor.LevelGreen
	}
}

type gdacsFeed struct {
	Items []gdacsItem `xml:"channel>item"`
}

type gdacsItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Point       string `xml:"http://www.georss.org/georss point"`
	AlertLevel  string `xml:"http://www.gdacs.org alertlevel"`
}

// FetchGDACSEvents returns current multi-hazard events from the GDACS RSS
// feed. Items that fail to parse are skipped, not fatal.
func (s *Service) FetchGDACSEvents(ctx context.Context) ([]*monitor.Event, error) {
	const cacheKey = "gdacs_all"
	if events, ok := s.cached(cacheKey); ok {
		return events, nil
	}

	s.logger.Info("fetching GDACS disaster data", "url", s.gdacsURL)

	body, err := s.get(ctx, s.gdacsURL)
	if err != nil {
		return nil, fmt.Errorf("fetch GDACS feed: %w", err)
	}

	var feed gdacsFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse GDACS feed: %w", err)
	}

	var events []*monitor.Event
	for _, item := range feed.Items {
		if len(events) >= maxGDACSEvents {
			break
		}
		if item.Title == "" {
			continue
		}

		description := item.Description
		if len(description) > 500 {
			description = description[:500]
		}
		if description == "" {
			description = item.Title
		}

		events = append(events, &monitor.Event{
			EventID:      fmt.Sprintf("gdacs_%d", titleHash(item.Title)),
			DisasterType: monitor.InferDisasterType(item.Title),
			Location:     item.Title,
			Coordinates:  parseGeoRSSPoint(item.Point),
			Timestamp:    parsePubDate(item.PubDate),
			AlertLevel:   gdacsAlertLevel(item.AlertLevel),
			Description:  description,
			Status:       monitor.StatusActive,
			Source:       SourceGDACS,
		})
	}

	s.logger.Info("retrieved GDACS events", "count", len(events))
	s.store(cacheKey, events)
	return events, nil
}

func titleHash(title string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(title))
	return h.Sum32() % 1000000
}

// parseGeoRSSPoint reads a "lat lon" pair; a missing or malformed point
// yields the zero coordinate, matching the feed's own convention.
func parseGeoRSSPoint(point string) monitor.Coordinates {
	parts := strings.Fields(point)
	if len(parts) < 2 {
		return monitor.Coordinates{}
	}
	lat, err1 := strconv.ParseFloat(parts[0], 64)
	lon, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return monitor.Coordinates{}
	}
	return monitor.Coordinates{Lon: lon, Lat: lat}
}

func parsePubDate(raw string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Now().UTC()
}

func gdacsAlertLevel(raw string) monitor.AlertLevel {
	switch raw {
	case "Red":
		return monitor.LevelRed
	case "Orange":
		return monitor.LevelOrange
	case "Green":
		return monitor.LevelGreen
	default:
		return monitor.LevelYellow
	}
}

// FetchAll combines all sources, most recent first. One failing source is
// logged and the rest still served; an empty result with no working source
// is not an error.
func (s *Service) FetchAll(ctx context.Context) []*monitor.Event {
	var all []*monitor.Event

	usgs, err := s.FetchUSGSEarthquakes(ctx, "day")
	if err != nil {
		s.logger.Error("failed to fetch USGS data", "error", err)
	} else {
		all = append(all, usgs...)
	}

	gdacs, err := s.FetchGDACSEvents(ctx)
	if err != nil {
		s.logger.Error("failed to fetch GDACS data", "error", err)
	} else {
		all = append(all, gdacs...)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	return all
}
