/*
handlers.go - HTTP API handlers for the deposit-ladder forecast

PURPOSE:
  Exposes the forecast engine and the scenario catalogue via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  the factory (input), the scheduler (simulation) and the store.

ENDPOINTS:
  Forecast:
    POST   /api/forecast                      Run an ad-hoc scenario (body: JSON, YAML or text)
    GET    /api/forecasts/{id}                Saved forecast run
    GET    /api/forecasts/{id}/instruments    Closed-instrument log of a saved run
    POST   /api/forecasts/refresh             Re-run every stored scenario

  Scenarios:
    GET    /api/scenarios                     List stored scenarios
    POST   /api/scenarios                     Create scenario
    GET    /api/scenarios/{id}                Get scenario
    PUT    /api/scenarios/{id}                Replace scenario (bumps version)
    DELETE /api/scenarios/{id}                Delete scenario and its runs
    POST   /api/scenarios/{id}/forecasts      Run and save a forecast
    GET    /api/scenarios/{id}/forecasts      List saved runs

  Presets:
    GET    /api/presets                       List demo scenarios
    POST   /api/presets/{id}/load             Copy a demo scenario into the catalogue

QUERY PARAMETERS:
  mode=wanted|actual   timeline view, default actual
  steps=true           include scheduler steps in the response
  format=json|yaml|text  body format when Content-Type is not enough

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid scenario or query
  - 404: Scenario or forecast not found
  - 500: Invariant violations and store failures

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Catalogue handlers and demo presets
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/warp/deposit-ladder/deposit"
	"github.com/warp/deposit-ladder/factory"
	"github.com/warp/deposit-ladder/generic"
	"github.com/warp/deposit-ladder/store/sqlite"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Factory   *factory.ScenarioFactory
	Scheduler *deposit.Scheduler
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:     store,
		Factory:   factory.NewScenarioFactory(),
		Scheduler: deposit.NewScheduler(),
	}
}

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// FORECAST HANDLERS
// =============================================================================

// RunForecast runs the scenario in the request body without storing it.
func (h *Handler) RunForecast(w http.ResponseWriter, r *http.Request) {
	opts, err := parseForecastOptions(r)
	if err != nil {
		writeDomainError(w, "Invalid query", err)
		return
	}
	format, err := requestFormat(r)
	if err != nil {
		writeDomainError(w, "Invalid format", err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	sj, err := h.Factory.Decode(body, format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scenario", err)
		return
	}

	dto, _, err := h.forecast(sj, opts)
	if err != nil {
		writeDomainError(w, "Forecast failed", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetForecast returns a saved run exactly as it was rendered.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetForecast(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Forecast not found", err)
		return
	}
	writeJSON(w, http.StatusOK, json.RawMessage(rec.ResultJSON))
}

// GetForecastInstruments returns the closed-instrument log of a saved run.
func (h *Handler) GetForecastInstruments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetForecast(r.Context(), id); err != nil {
		writeDomainError(w, "Forecast not found", err)
		return
	}
	log, err := h.Store.ForecastInstruments(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load instruments", err)
		return
	}

	dtos := make([]InstrumentDTO, len(log))
	for i, inst := range log {
		dtos[i] = NewInstrumentDTO(inst)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

type forecastOptions struct {
	mode  deposit.TimelineMode
	steps bool
}

func parseForecastOptions(r *http.Request) (forecastOptions, error) {
	q := r.URL.Query()
	mode, err := deposit.ParseTimelineMode(q.Get("mode"))
	if err != nil {
		return forecastOptions{}, err
	}
	opts := forecastOptions{mode: mode}
	if s := q.Get("steps"); s != "" {
		if opts.steps, err = strconv.ParseBool(s); err != nil {
			return opts, &generic.ConfigError{Field: "steps", Reason: "must be a boolean"}
		}
	}
	return opts, nil
}

// requestFormat honours ?format= first, then the Content-Type header.
func requestFormat(r *http.Request) (factory.Format, error) {
	if f := r.URL.Query().Get("format"); f != "" {
		return factory.ParseFormat(f)
	}
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(ct, "yaml"):
		return factory.FormatYAML, nil
	case strings.HasPrefix(ct, "text/plain"):
		return factory.FormatText, nil
	default:
		return factory.FormatJSON, nil
	}
}

func (h *Handler) forecast(sj factory.ScenarioJSON, opts forecastOptions) (ForecastDTO, *deposit.Result, error) {
	cfg, err := h.Factory.FromJSON(sj)
	if err != nil {
		return ForecastDTO{}, nil, err
	}
	res, err := h.Scheduler.Run(cfg)
	if err != nil {
		return ForecastDTO{}, nil, fmt.Errorf("run forecast: %w", err)
	}
	return NewForecastDTO(res, opts.mode, opts.steps), res, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine and store errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := ErrorResponse{Error: message, Details: err.Error()}
	status := http.StatusInternalServerError
	switch {
	case generic.IsClientError(err):
		status = http.StatusBadRequest
		resp.Code = "invalid_config"
	case generic.IsNotFound(err):
		status = http.StatusNotFound
		resp.Code = "not_found"
	case generic.IsInvariant(err):
		resp.Code = "invariant_violation"
	}
	writeJSON(w, status, resp)
}
