// Package analysis defines the document-analysis collaborator: the request
// and result shapes and the Analyzer contract the task processor calls.
package analysis

import (
	"context"
	"encoding/json"
	"time"
)

// Request is the caller-supplied description of a document to analyze.
type Request struct {
	DocumentData     string `json:"document_data,omitempty"  validate:"omitempty,base64"`
	DocumentURL      string `json:"document_url,omitempty"   validate:"omitempty,url"`
	MIMEType         string `json:"mime_type"                validate:"required"`
	AnalysisMode     string `json:"analysis_mode,omitempty"  validate:"omitempty,oneof=quick comprehensive exhaustive"`
	IncludeGeocoding bool   `json:"include_geocoding"`
	MaxLocations     int    `json:"max_locations,omitempty"  validate:"omitempty,gte=1,lte=200"`
}

// Marshal serializes the request for storage on the task record.
func (r Request) Marshal() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Entity is a named entity extracted from the document.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Known entity labels. Unknown labels coming back from the model are
// normalized to LabelLocation.
const (
	LabelLocation     = "LOC"
	LabelOrganization = "ORG"
	LabelDamage       = "DMG"
	LabelUrgency      = "URG"
	LabelTech         = "TECH"
	LabelPerson       = "PER"
	LabelDate         = "DATE"
	LabelEvent        = "EVENT"
)

// GeoJSON shapes produced by the analysis.

type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

type Properties struct {
	Name        string `json:"name"`
	Confidence  string `json:"confidence"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Result is the complete outcome of one document analysis.
type Result struct {
	TaskID           string            `json:"taskId"`
	DocumentID       string            `json:"documentId"`
	Summary          string            `json:"summary"`
	RiskScore        int               `json:"riskScore"`
	Entities         []Entity          `json:"entities"`
	Indicators       []string          `json:"indicators"`
	Geospatial       FeatureCollection `json:"geospatialData"`
	Timestamp        time.Time         `json:"timestamp"`
	ProcessingTimeMS int64             `json:"processing_time_ms"`
	ModelUsed        string            `json:"model_used,omitempty"`
}

// Marshal serializes the result for storage on the task record.
func (r *Result) Marshal() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Analyzer performs document analysis. Implementations own their retry
// policy; an error returned here is terminal for the calling task.
type Analyzer interface {
	Analyze(ctx context.Context, req Request, taskID string) (*Result, error)
}
