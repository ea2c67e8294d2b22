/*
scenarios.go - Scenario catalogue handlers and demo presets

PURPOSE:
  Scenarios are stored as serialized factory.ScenarioJSON so they can be
  edited, versioned and re-run. Each run can be saved with its rendered
  result and closed-instrument log for later comparison.

AVAILABLE PRESETS:
  household:  monthly expenses, a rate table and one pre-existing deposit
  salary:     net income swept into a ladder until the term cap
  runway:     expenses only, no deposits, reports when money runs out

USAGE VIA API:
  POST /api/presets/household/load
  POST /api/scenarios/household/forecasts?mode=wanted

ADDING NEW PRESETS:
  Add an entry to the presets slice; the scenario must pass
  factory validation.

SEE ALSO:
  - handlers.go: forecast handlers and error mapping
  - factory/scenario.go: ScenarioJSON definition
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/factory"
	"github.com/warp/deposit-ladder/generic"
	"github.com/warp/deposit-ladder/store/sqlite"
)

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns all stored scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListScenarios(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scenarios", err)
		return
	}

	dtos := make([]ScenarioDTO, 0, len(records))
	for _, rec := range records {
		dto, err := toScenarioDTO(rec)
		if err != nil {
			continue // skip rows that no longer decode
		}
		dtos = append(dtos, dto)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateScenario validates and stores a new scenario.
func (h *Handler) CreateScenario(w http.ResponseWriter, r *http.Request) {
	h.saveScenario(w, r, "", http.StatusCreated)
}

// UpdateScenario replaces a stored scenario.
func (h *Handler) UpdateScenario(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetScenario(r.Context(), id); err != nil {
		writeDomainError(w, "Scenario not found", err)
		return
	}
	h.saveScenario(w, r, id, http.StatusOK)
}

func (h *Handler) saveScenario(w http.ResponseWriter, r *http.Request, id string, status int) {
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
	if _, err := h.Factory.FromJSON(sj); err != nil {
		writeDomainError(w, "Invalid scenario", err)
		return
	}

	if id != "" {
		sj.ID = id
	}
	dto, err := h.storeScenario(r.Context(), sj)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save scenario", err)
		return
	}
	writeJSON(w, status, dto)
}

func (h *Handler) storeScenario(ctx context.Context, sj factory.ScenarioJSON) (ScenarioDTO, error) {
	id := sj.ID
	sj.ID = ""
	config, err := json.Marshal(sj)
	if err != nil {
		return ScenarioDTO{}, err
	}
	rec, err := h.Store.SaveScenario(ctx, sqlite.ScenarioRecord{ID: id, Name: sj.Name, ConfigJSON: string(config)})
	if err != nil {
		return ScenarioDTO{}, err
	}
	return toScenarioDTO(rec)
}

// GetScenario returns a stored scenario.
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Scenario not found", err)
		return
	}
	dto, err := toScenarioDTO(*rec)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored scenario is corrupt", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// ResetCatalogue removes every scenario and saved run.
func (h *Handler) ResetCatalogue(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset catalogue", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteScenario removes a scenario and its saved runs.
func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteScenario(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete scenario", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunScenarioForecast runs a stored scenario and saves the result.
func (h *Handler) RunScenarioForecast(w http.ResponseWriter, r *http.Request) {
	opts, err := parseForecastOptions(r)
	if err != nil {
		writeDomainError(w, "Invalid query", err)
		return
	}
	rec, err := h.Store.GetScenario(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Scenario not found", err)
		return
	}

	saved, err := h.runAndSave(r.Context(), *rec, opts)
	if err != nil {
		writeDomainError(w, "Forecast failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) runAndSave(ctx context.Context, rec sqlite.ScenarioRecord, opts forecastOptions) (ForecastDTO, error) {
	var sj factory.ScenarioJSON
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &sj); err != nil {
		return ForecastDTO{}, fmt.Errorf("decode stored scenario %s: %w", rec.ID, err)
	}
	dto, res, err := h.forecast(sj, opts)
	if err != nil {
		return ForecastDTO{}, err
	}

	forecast := sqlite.ForecastRecord{
		ScenarioID:      rec.ID,
		ScenarioVersion: rec.Version,
		Mode:            string(opts.mode),
		ExhaustedAt:     res.ExhaustedAt,
		FinalDate:       res.FinalDate,
		FinalBalance:    res.FinalBalance,
		GapCount:        len(res.Gaps),
	}
	// the ID is assigned before rendering so the stored JSON carries it
	forecast.ID = uuid.NewString()
	dto.ID = forecast.ID
	dto.ScenarioID = rec.ID
	result, err := json.Marshal(dto)
	if err != nil {
		return ForecastDTO{}, err
	}
	forecast.ResultJSON = string(result)

	if _, err := h.Store.SaveForecast(ctx, forecast, res.Instruments); err != nil {
		return ForecastDTO{}, err
	}
	return dto, nil
}

// ListScenarioForecasts lists the saved runs of a scenario.
func (h *Handler) ListScenarioForecasts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetScenario(r.Context(), id); err != nil {
		writeDomainError(w, "Scenario not found", err)
		return
	}
	records, err := h.Store.ListForecasts(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list forecasts", err)
		return
	}

	dtos := make([]ForecastSummaryDTO, len(records))
	for i, rec := range records {
		dtos[i] = newForecastSummaryDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func toScenarioDTO(rec sqlite.ScenarioRecord) (ScenarioDTO, error) {
	var sj factory.ScenarioJSON
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &sj); err != nil {
		return ScenarioDTO{}, err
	}
	return ScenarioDTO{
		ID:        rec.ID,
		Name:      rec.Name,
		Version:   rec.Version,
		Config:    sj,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// =============================================================================
// DEMO PRESETS
// =============================================================================

type preset struct {
	PresetDTO
	scenario factory.ScenarioJSON
}

func num(s string) factory.Number {
	return factory.NewNumber(decimal.RequireFromString(s))
}

func nums(ss ...string) []factory.Number {
	out := make([]factory.Number, len(ss))
	for i, s := range ss {
		out[i] = num(s)
	}
	return out
}

var presets = []preset{
	{
		PresetDTO: PresetDTO{
			ID:          "household",
			Name:        "Household",
			Description: "1000 a month of expenses, 20000 in cash and a savings deposit maturing in June",
		},
		scenario: factory.ScenarioJSON{
			Name:            "Household",
			Start:           "2025-01-06",
			MonthlyDrift:    num("-1000"),
			StartingBalance: num("20000"),
			MaxTermMonths:   12,
			HorizonYears:    3,
			Rates:           nums("0", "8", "9", "10", "11", "12", "13"),
			Tax:             num("13"),
			Inflation:       num("4"),
			Existing: []factory.ExistingJSON{
				{End: "2025-06-15", Amount: num("5000"), Label: "savings"},
			},
		},
	},
	{
		PresetDTO: PresetDTO{
			ID:          "salary",
			Name:        "Salary",
			Description: "Net income of 200 a month swept into deposits capped at 12 months",
		},
		scenario: factory.ScenarioJSON{
			Name:          "Salary",
			Start:         "2025-01-06",
			MonthlyDrift:  num("200"),
			MaxTermMonths: 12,
			HorizonYears:  2,
			Rates:         nums("0", "5", "6", "7"),
			Tax:           num("13"),
			Inflation:     num("4"),
		},
	},
	{
		PresetDTO: PresetDTO{
			ID:          "runway",
			Name:        "Runway",
			Description: "Expenses only and no rate table: how long the cash lasts",
		},
		scenario: factory.ScenarioJSON{
			Name:            "Runway",
			Start:           "2025-01-06",
			MonthlyDrift:    num("-1500"),
			StartingBalance: num("9000"),
			MaxTermMonths:   6,
			Inflation:       num("6"),
		},
	},
}

// ListPresets returns the built-in demo scenarios.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	dtos := make([]PresetDTO, len(presets))
	for i, p := range presets {
		dtos[i] = p.PresetDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadPreset copies a demo scenario into the catalogue under the preset ID.
func (h *Handler) LoadPreset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, p := range presets {
		if p.ID != id {
			continue
		}
		sj := p.scenario
		sj.ID = p.ID
		dto, err := h.storeScenario(r.Context(), sj)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load preset", err)
			return
		}
		writeJSON(w, http.StatusOK, dto)
		return
	}
	writeDomainError(w, "Preset not found", fmt.Errorf("%w: preset %s", generic.ErrScenarioNotFound, id))
}

// LoadAllPresets copies every demo scenario into the catalogue.
func (h *Handler) LoadAllPresets(ctx context.Context) (int, error) {
	for i, p := range presets {
		sj := p.scenario
		sj.ID = p.ID
		if _, err := h.storeScenario(ctx, sj); err != nil {
			return i, fmt.Errorf("preset %s: %w", p.ID, err)
		}
	}
	return len(presets), nil
}
