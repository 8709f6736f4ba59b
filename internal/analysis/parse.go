package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const systemInstruction = `You are a Senior Geospatial AI Architect specializing in disaster response and infrastructure analysis.
You must perform exhaustive entity extraction and geospatial mapping.
Every city, town, or infrastructure site mentioned in the document must be represented on the map.
Ensure variety in severity levels based on the document's narrative.
Always return valid, parseable JSON. Never include markdown formatting.`

const basePrompt = `Perform an exhaustive multimodal geospatial intelligence analysis.

CORE OBJECTIVE:
Identify and map EVERY SINGLE location, facility, or region mentioned in the document.

REQUIREMENTS:
1. Summary: A professional briefing (3-4 sentences) covering the key findings.
2. Indicators: Extract specific risk or status indicators as actionable insights.
3. Entities: Identify ALL key organizations (ORG), locations (LOC), technical terms (TECH), damage types (DMG), and urgency levels (URG).
4. Risk Score: Overall assessment from 0-100 based on severity of findings.
5. Geospatial: map every mentioned location as a polygon with 8-12 vertices, with severity "High", "Medium" or "Low" and a description of why.

OUTPUT FORMAT: STRICT JSON ONLY. No markdown, no code blocks, just raw JSON:
{
  "summary": "string",
  "riskScore": number,
  "entities": [{"text": "string", "label": "ORG|LOC|TECH|DMG|URG"}],
  "indicators": ["string"],
  "geospatialData": {"type": "FeatureCollection", "features": [...]}
}`

func analysisPrompt(mode string) string {
	switch mode {
	case "quick":
		p := strings.ReplaceAll(basePrompt, "EVERY SINGLE", "key")
		return strings.ReplaceAll(p, "8-12 vertices", "4-6 vertices")
	case "exhaustive":
		return basePrompt + "\n\nADDITIONAL: Include secondary locations, nearby regions, and supply chain connections."
	default:
		return basePrompt
	}
}

var validLabels = map[string]bool{
	LabelLocation: true, LabelOrganization: true, LabelDamage: true,
	LabelUrgency: true, LabelTech: true, LabelPerson: true,
	LabelDate: true, LabelEvent: true,
}

// parseModelResponse turns the model's reply into a Result. The model is
// asked for raw JSON but occasionally wraps it in markdown fences or leading
// prose, so the parser locates the outermost JSON object before decoding.
func parseModelResponse(text string) (*Result, error) {
	clean := stripFences(text)

	if !gjson.Valid(clean) {
		// Last resort: take the widest {...} span.
		start := strings.Index(clean, "{")
		end := strings.LastIndex(clean, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON object in response: %.200s", clean)
		}
		clean = clean[start : end+1]
		if !gjson.Valid(clean) {
			return nil, fmt.Errorf("response is not valid JSON: %.200s", clean)
		}
	}

	doc := gjson.Parse(clean)

	result := &Result{
		Summary:    doc.Get("summary").String(),
		RiskScore:  clampScore(int(doc.Get("riskScore").Int())),
		Entities:   []Entity{},
		Indicators: []string{},
		Geospatial: FeatureCollection{Type: "FeatureCollection", Features: []Feature{}},
	}

	doc.Get("entities").ForEach(func(_, ent gjson.Result) bool {
		label := ent.Get("label").String()
		if !validLabels[label] {
			label = LabelLocation
		}
		if text := ent.Get("text").String(); text != "" {
			result.Entities = append(result.Entities, Entity{Text: text, Label: label})
		}
		return true
	})

	doc.Get("indicators").ForEach(func(_, ind gjson.Result) bool {
		if s := ind.String(); s != "" {
			result.Indicators = append(result.Indicators, s)
		}
		return true
	})

	if geo := doc.Get("geospatialData"); geo.Exists() {
		var fc FeatureCollection
		if err := json.Unmarshal([]byte(geo.Raw), &fc); err == nil && fc.Type == "FeatureCollection" {
			result.Geospatial = fc
		}
	}

	return result, nil
}

func stripFences(text string) string {
	clean := strings.TrimSpace(text)
	if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```json")
		clean = strings.TrimPrefix(clean, "```")
		clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
	}
	return strings.TrimSpace(clean)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// fallbackResult is returned when no API key is configured. It is clearly
// marked so downstream consumers can tell it apart from a real analysis.
func fallbackResult(taskID, documentID string) *Result {
	coords, _ := json.Marshal([][][]float64{{
		{-122.5, 37.7}, {-122.5, 37.8}, {-122.4, 37.8}, {-122.4, 37.7}, {-122.5, 37.7},
	}})

	return &Result{
		TaskID:     taskID,
		DocumentID: documentID,
		Summary:    "Analysis unavailable: no API key configured. Returning baseline assessment.",
		RiskScore:  10,
		Entities:   []Entity{{Text: "San Francisco", Label: LabelLocation}},
		Indicators: []string{"API key missing, using fallback analysis"},
		Geospatial: FeatureCollection{
			Type: "FeatureCollection",
			Features: []Feature{{
				Type:     "Feature",
				Geometry: Geometry{Type: "Polygon", Coordinates: coords},
				Properties: Properties{
					Name:        "San Francisco",
					Confidence:  "0%",
					Severity:    "Low",
					Description: "Standard operational status. No immediate risk detected.",
				},
			}},
		},
		Timestamp: time.Now().UTC(),
		ModelUsed: "fallback",
	}
}
