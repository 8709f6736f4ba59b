package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/saveleva/disasterai/internal/analysis"
	"github.com/saveleva/disasterai/internal/feeds"
	"github.com/saveleva/disasterai/internal/monitor"
	"github.com/saveleva/disasterai/internal/processor"
	"github.com/saveleva/disasterai/internal/realtime"
	"github.com/saveleva/disasterai/internal/store"
	"github.com/saveleva/disasterai/internal/task"
)

const (
	defaultTaskLimit = 50
	maxTaskLimit     = 100
	maxAlertLimit    = 1000

	defaultLiveLimit = 50
	maxLiveLimit     = 200

	maxUploadBytes = 50 << 20
)

// uploadMIMETypes are the document formats the analyzer accepts.
var uploadMIMETypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"image/tiff":      true,
	"application/pdf": true,
}

type Handler struct {
	store     *store.Resilient
	processor *processor.Processor
	analyzer  analysis.Analyzer
	monitor   *monitor.Monitor
	alerts    *monitor.AlertService
	hub       *realtime.Hub
	ws        *realtime.WSHandler
	feeds     *feeds.Service
	validate  *validator.Validate
	logger    *slog.Logger
	startedAt time.Time
}

func NewHandler(
	st *store.Resilient,
	proc *processor.Processor,
	analyzer analysis.Analyzer,
	mon *monitor.Monitor,
	alerts *monitor.AlertService,
	hub *realtime.Hub,
	ws *realtime.WSHandler,
	live *feeds.Service,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		store:     st,
		processor: proc,
		analyzer:  analyzer,
		monitor:   mon,
		alerts:    alerts,
		hub:       hub,
		ws:        ws,
		feeds:     live,
		validate:  validator.New(),
		logger:    logger,
		startedAt: time.Now(),
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// AnalysisResponse is the envelope for synchronous analysis calls.
type AnalysisResponse struct {
	Success bool             `json:"success"`
	Data    *analysis.Result `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// TaskCreateResponse is returned by the async analysis endpoint.
type TaskCreateResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handler) decodeAnalysisRequest(w http.ResponseWriter, r *http.Request) (analysis.Request, bool) {
	var req analysis.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return req, false
	}
	if req.DocumentData == "" && req.DocumentURL == "" {
		respondError(w, http.StatusBadRequest, "either document_data or document_url is required")
		return req, false
	}
	return req, true
}

// Analyze runs the analysis inline and returns the result envelope.
// Long documents should go through AnalyzeAsync instead.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), req, "task_sync_"+strconv.FormatInt(time.Now().UnixNano(), 10))
	if err != nil {
		h.logger.Error("synchronous analysis failed", "error", err)
		respondJSON(w, http.StatusOK, AnalysisResponse{Success: false, Error: "analysis failed: " + err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, AnalysisResponse{Success: true, Data: result})
}

// AnalyzeUpload accepts a multipart document upload and analyzes it inline.
// The file goes into the request as base64, same as the JSON endpoint.
func (h *Handler) AnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !uploadMIMETypes[mimeType] {
		respondError(w, http.StatusBadRequest, "unsupported file type: "+mimeType)
		return
	}

	contents, err := io.ReadAll(file)
	if err != nil || len(contents) > maxUploadBytes {
		respondError(w, http.StatusBadRequest, "file exceeds the 50 MB limit")
		return
	}

	mode := r.FormValue("analysis_mode")
	if mode == "" {
		mode = "comprehensive"
	}
	includeGeocoding := r.FormValue("include_geocoding") != "false"

	req := analysis.Request{
		DocumentData:     base64.StdEncoding.EncodeToString(contents),
		MIMEType:         mimeType,
		AnalysisMode:     mode,
		IncludeGeocoding: includeGeocoding,
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), req, "task_upload_"+strconv.FormatInt(time.Now().UnixNano(), 10))
	if err != nil {
		h.logger.Error("upload analysis failed", "error", err, "filename", header.Filename)
		respondJSON(w, http.StatusOK, AnalysisResponse{Success: false, Error: "analysis failed: " + err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, AnalysisResponse{Success: true, Data: result})
}

// LiveDisasters serves events from the external USGS and GDACS feeds.
func (h *Handler) LiveDisasters(w http.ResponseWriter, r *http.Request) {
	limit := defaultLiveLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxLiveLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	var (
		events []*monitor.Event
		err    error
	)
	source := strings.ToLower(r.URL.Query().Get("source"))
	switch source {
	case "usgs":
		events, err = h.feeds.FetchUSGSEarthquakes(r.Context(), "day")
	case "gdacs":
		events, err = h.feeds.FetchGDACSEvents(r.Context())
	case "":
		events = h.feeds.FetchAll(r.Context())
	default:
		respondError(w, http.StatusBadRequest, "source must be usgs or gdacs")
		return
	}
	if err != nil {
		h.logger.Error("live feed fetch failed", "source", source, "error", err)
		respondError(w, http.StatusBadGateway, "failed to fetch live disaster data")
		return
	}

	if len(events) > limit {
		events = events[:limit]
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// AnalyzeAsync creates a task record and hands it to the processor.
func (h *Handler) AnalyzeAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAnalysisRequest(w, r)
	if !ok {
		return
	}

	requestData, err := req.Marshal()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode request")
		return
	}

	created := h.store.Create(r.Context(), requestData)
	if err := h.processor.Submit(created.TaskID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to start analysis: "+err.Error())
		return
	}

	h.logger.Info("analysis task created", "task_id", created.TaskID)
	respondJSON(w, http.StatusAccepted, TaskCreateResponse{
		TaskID:  created.TaskID,
		Status:  string(created.Status),
		Message: "Analysis task created. Use /api/tasks/{task_id} to check status.",
	})
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found := h.store.Get(r.Context(), id)
	if found == nil {
		respondError(w, http.StatusNotFound, "task not found: "+id)
		return
	}

	respondJSON(w, http.StatusOK, found.Info())
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	limit := defaultTaskLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxTaskLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	tasks := h.store.List(r.Context(), limit)
	infos := make([]task.Info, 0, len(tasks))
	for _, t := range tasks {
		infos = append(infos, t.Info())
	}
	respondJSON(w, http.StatusOK, infos)
}

// DeleteTask cancels a running task, or removes the record when the
// task already finished.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.processor.Cancel(r.Context(), id) {
		respondJSON(w, http.StatusOK, map[string]string{
			"task_id": id,
			"status":  "cancelled",
		})
		return
	}

	if h.store.Delete(r.Context(), id) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondError(w, http.StatusNotFound, "task not found: "+id)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	disasterType := monitor.DisasterType(r.URL.Query().Get("disaster_type"))
	alertLevel := monitor.AlertLevel(r.URL.Query().Get("alert_level"))

	events := h.monitor.ActiveEvents(disasterType, alertLevel)
	respondJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (h *Handler) ListHistoricalEvents(w http.ResponseWriter, r *http.Request) {
	daysBack := 30
	if raw := r.URL.Query().Get("days_back"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			respondError(w, http.StatusBadRequest, "days_back must be between 1 and 365")
			return
		}
		daysBack = parsed
	}

	events := h.monitor.HistoricalEvents(daysBack)
	respondJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

type updateEventStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active concluded false_alarm"`
}

func (h *Handler) UpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateEventStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "status must be one of active, concluded, false_alarm")
		return
	}

	if !h.monitor.UpdateEventStatus(id, req.Status) {
		respondError(w, http.StatusNotFound, "event not found: "+id)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"event_id": id,
		"status":   req.Status,
	})
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultTaskLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxAlertLimit {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	var alerts []*monitor.Alert
	if r.URL.Query().Get("status") == "sent" {
		alerts = h.alerts.SentAlerts(limit)
	} else {
		alerts = h.alerts.ActiveAlerts(limit)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if !h.alerts.Acknowledge(id) {
		respondError(w, http.StatusNotFound, "alert not found: "+id)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"alert_id": id,
		"status":   "acknowledged",
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.monitor.SummaryStatistics()
	stats["websocket"] = map[string]any{
		"connected_clients": h.hub.ClientCount(),
		"topics":            h.hub.TopicCounts(),
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.ws.ServeHTTP(w, r)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"services": map[string]bool{
			"durable_store":  !h.store.UsingFallback(),
			"task_processor": true,
			"websocket":      true,
		},
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
