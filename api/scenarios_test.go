package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/deposit-ladder/deposit"
)

func TestPresets_ListAndLoad(t *testing.T) {
	_, router := newTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/presets", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]PresetDTO](t, rec)
	require.Len(t, list, len(presets))
	assert.Equal(t, "household", list[0].ID)

	rec = do(t, router, http.MethodPost, "/api/presets/household/load", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[ScenarioDTO](t, rec)
	assert.Equal(t, "household", loaded.ID)
	assert.Equal(t, "Household", loaded.Name)

	rec = do(t, router, http.MethodPost, "/api/presets/household/load", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[ScenarioDTO](t, rec).Version)

	rec = do(t, router, http.MethodPost, "/api/presets/lottery/load", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPresets_AllForecast(t *testing.T) {
	// GIVEN: every demo scenario in the catalogue
	// WHEN:  the whole catalogue is refreshed
	// THEN:  each one produces a saved run without invariant violations

	h, router := newTestServer(t)
	ctx := context.Background()

	n, err := h.LoadAllPresets(ctx)
	require.NoError(t, err)
	require.Equal(t, len(presets), n)

	result, err := NewRefresher(h).RefreshAll(ctx, deposit.TimelineActual)
	require.NoError(t, err)
	assert.Equal(t, len(presets), result.Refreshed)
	assert.Empty(t, result.Failed)

	for _, p := range presets {
		runs, err := h.Store.ListForecasts(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, runs, 1, p.ID)
	}

	rec := do(t, router, http.MethodPost, "/api/forecasts/refresh?mode=wanted", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, len(presets), decode[RefreshResultDTO](t, rec).Refreshed)
}

func TestPresets_Validate(t *testing.T) {
	h, _ := newTestServer(t)
	for _, p := range presets {
		_, err := h.Factory.FromJSON(p.scenario)
		assert.NoError(t, err, p.ID)
	}
}

func TestResetCatalogue(t *testing.T) {
	// GIVEN: a catalogue holding the demo scenarios and a saved run
	// WHEN:  the catalogue is reset
	// THEN:  scenarios and runs are gone

	h, router := newTestServer(t)
	ctx := context.Background()
	_, err := h.LoadAllPresets(ctx)
	require.NoError(t, err)
	rec := do(t, router, http.MethodPost, "/api/scenarios/household/forecasts", "", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[ForecastDTO](t, rec)

	rec = do(t, router, http.MethodPost, "/api/reset", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/scenarios", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]ScenarioDTO](t, rec))

	rec = do(t, router, http.MethodGet, "/api/forecasts/"+run.ID, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
