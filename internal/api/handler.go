package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	apperrors "github.com/rajasatyajit/VesselWatch/internal/errors"
	"github.com/rajasatyajit/VesselWatch/internal/logger"
	"github.com/rajasatyajit/VesselWatch/internal/models"
	"github.com/rajasatyajit/VesselWatch/internal/pipeline"
	"github.com/rajasatyajit/VesselWatch/internal/store"
)

// StatsProvider exposes pipeline counters; *pipeline.Pipeline satisfies it
type StatsProvider interface {
	Stats() pipeline.Stats
}

// Handler handles HTTP requests for the ops API
type Handler struct {
	store     store.Store
	stats     StatsProvider
	version   string
	buildTime string
	gitCommit string
	startTime time.Time
}

// NewHandler creates a new API handler. stats may be nil.
func NewHandler(store store.Store, stats StatsProvider, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		store:     store,
		stats:     stats,
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		r.Get("/version", h.versionHandler)
		r.Get("/stats", h.statsHandler)

		r.Get("/voyages", h.getVoyagesHandler)
		r.Get("/alerts", h.getAlertsHandler)
		r.Post("/subscriptions", h.createSubscriptionHandler)
		r.Get("/vessels/{mmsi}", h.getVesselHandler)
	})

	r.Get("/health", h.healthHandler)
}

func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	})
}

// readinessHandler checks the store and that the pipeline is running
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"store": "ok"}
	statusCode := http.StatusOK

	if err := h.store.Health(r.Context()); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
	}
	if h.stats != nil {
		if h.stats.Stats().Running {
			checks["pipeline"] = "ok"
		} else {
			checks["pipeline"] = "stopped"
			statusCode = http.StatusServiceUnavailable
		}
	}

	status := "ready"
	if statusCode != http.StatusOK {
		status = "not_ready"
	}
	h.writeJSONResponse(w, statusCode, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	})
}

func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	})
}

func (h *Handler) statsHandler(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeErrorResponse(w, r, http.StatusServiceUnavailable, "pipeline not attached")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, h.stats.Stats())
}

// getVoyagesHandler handles GET /v1/voyages?vessel_id=&state=&limit=
func (h *Handler) getVoyagesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := models.VoyageQuery{VesselIDs: r.URL.Query()["vessel_id"]}
	for _, s := range r.URL.Query()["state"] {
		state := models.VoyageState(s)
		if state != models.VoyageActive && state != models.VoyageCompleted {
			h.writeErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("invalid state: %s", s))
			return
		}
		q.States = append(q.States, state)
	}
	limit, err := parseLimit(r)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	q.Limit = limit

	voyages, err := h.store.QueryVoyages(ctx, q)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query voyages", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"data":      voyages,
		"count":     len(voyages),
		"timestamp": time.Now().UTC(),
	})
}

// getAlertsHandler handles GET /v1/alerts
func (h *Handler) getAlertsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseAlertQuery(r)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	alerts, err := h.store.QueryAlerts(ctx, q)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query alerts", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]any{
		"data":      alerts,
		"count":     len(alerts),
		"timestamp": time.Now().UTC(),
	})
}

type subscriptionRequest struct {
	UserID              string             `json:"user_id"`
	VesselID            string             `json:"vessel_id"`
	AlertTypes          []models.AlertType `json:"alert_types"`
	SpeedThresholdKnots *float64           `json:"speed_threshold_knots"`
}

// createSubscriptionHandler handles POST /v1/subscriptions
func (h *Handler) createSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.VesselID == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "user_id and vessel_id are required")
		return
	}
	if len(req.AlertTypes) == 0 {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "at least one alert type is required")
		return
	}
	for _, t := range req.AlertTypes {
		if !t.Valid() {
			h.writeErrorResponse(w, r, http.StatusBadRequest, fmt.Sprintf("unknown alert type: %s", t))
			return
		}
		if t == models.AlertTypeSpeed && req.SpeedThresholdKnots == nil {
			h.writeErrorResponse(w, r, http.StatusBadRequest, "speed alerts need speed_threshold_knots")
			return
		}
	}

	sub := models.Subscription{
		ID:                  uuid.NewString(),
		UserID:              req.UserID,
		VesselID:            req.VesselID,
		AlertTypes:          req.AlertTypes,
		SpeedThresholdKnots: req.SpeedThresholdKnots,
		IsActive:            true,
	}
	if err := h.store.AddSubscription(ctx, sub); err != nil {
		logger.WithContext(ctx).Error("Failed to add subscription", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, sub)
}

// getVesselHandler handles GET /v1/vessels/{mmsi}
func (h *Handler) getVesselHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mmsi := chi.URLParam(r, "mmsi")

	v, err := h.store.LookupVessel(ctx, mmsi)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeErrorResponse(w, r, http.StatusNotFound, "Vessel not found")
			return
		}
		logger.WithContext(ctx).Error("Failed to look up vessel", "error", err, "mmsi", mmsi)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.writeJSONResponse(w, http.StatusOK, v)
}

func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit: %s", limitStr)
	}
	if limit < 0 || limit > 1000 {
		return 0, fmt.Errorf("limit must be between 0 and 1000")
	}
	return limit, nil
}

// parseAlertQuery parses query parameters into AlertQuery
func (h *Handler) parseAlertQuery(r *http.Request) (models.AlertQuery, error) {
	q := models.AlertQuery{}

	limit, err := parseLimit(r)
	if err != nil {
		return q, err
	}
	q.Limit = limit

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return q, fmt.Errorf("invalid offset: %s", offsetStr)
		}
		if offset < 0 {
			return q, fmt.Errorf("offset must be non-negative")
		}
		q.Offset = offset
	}

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			return q, fmt.Errorf("invalid since format: %s", sinceStr)
		}
		q.Since = since
	}

	if untilStr := r.URL.Query().Get("until"); untilStr != "" {
		until, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			return q, fmt.Errorf("invalid until format: %s", untilStr)
		}
		q.Until = until
	}

	q.UserIDs = r.URL.Query()["user_id"]
	q.VesselIDs = r.URL.Query()["vessel_id"]
	for _, t := range r.URL.Query()["type"] {
		at := models.AlertType(t)
		if !at.Valid() {
			return q, fmt.Errorf("unknown alert type: %s", t)
		}
		q.AlertTypes = append(q.AlertTypes, at)
	}

	return q, nil
}

func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Debug("Failed to write response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	h.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	})
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
