/*
handlers_test.go - HTTP tests for the forecast and catalogue endpoints

Tests for:
- Ad-hoc forecasts in every input format
- Error mapping to HTTP statuses
- Scenario lifecycle: create, update, run, list runs, delete
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/deposit-ladder/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	return h, NewRouter(h)
}

func do(t *testing.T, router http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const existingOnlyYAML = `
start: 2025-01-06
monthly_drift: 0
starting_balance: 0
max_term_months: 12
existing:
  - end: 2025-04-16
    amount: 1000
    label: old
`

const ladderJSON = `{
  "name": "household",
  "start": "2025-01-06",
  "monthly_drift": -1000,
  "starting_balance": 20000,
  "max_term_months": 12,
  "horizon_years": 3,
  "rates": ["0%", "8%", "9%", "10%", "11%", "12%", "13%"],
  "tax": "13%",
  "inflation": "4%",
  "existing": [{"end": "2025-06-15", "amount": 5000, "label": "savings"}]
}`

// =============================================================================
// FORECAST
// =============================================================================

func TestHealth(t *testing.T) {
	_, router := newTestServer(t)
	rec := do(t, router, http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunForecast_JSON(t *testing.T) {
	// GIVEN: a household scenario with a rate table
	// WHEN:  it is posted as JSON with steps requested
	// THEN:  the ladder, the timeline and the steps come back

	_, router := newTestServer(t)
	rec := do(t, router, http.MethodPost, "/api/forecast?steps=true", "application/json", ladderJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dto := decode[ForecastDTO](t, rec)
	assert.Equal(t, "actual", dto.Mode)
	assert.Equal(t, "2025-01-06", dto.Start)
	assert.Equal(t, "2028-01-06", dto.HorizonEnd)
	assert.Len(t, dto.NetRates, 7)
	assert.NotEmpty(t, dto.Steps)
	assert.NotEmpty(t, dto.ExhaustedAt)

	require.NotEmpty(t, dto.Timeline)
	assert.Equal(t, "open", dto.Timeline[0].Kind)
	assert.Equal(t, "new#1", dto.Timeline[0].Label)

	var savings *InstrumentDTO
	for i := range dto.Instruments {
		if dto.Instruments[i].Label == "savings" {
			savings = &dto.Instruments[i]
		}
	}
	require.NotNil(t, savings)
	assert.Equal(t, "2025-06-16", savings.End)
	assert.Equal(t, "5000.00", savings.Value)
}

func TestRunForecast_YAML(t *testing.T) {
	_, router := newTestServer(t)
	rec := do(t, router, http.MethodPost, "/api/forecast?mode=wanted", "application/yaml", existingOnlyYAML)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dto := decode[ForecastDTO](t, rec)
	assert.Equal(t, "wanted", dto.Mode)
	require.Len(t, dto.Instruments, 1)
	assert.Equal(t, "1000.00", dto.Instruments[0].Value)
	require.Len(t, dto.Timeline, 1)
	assert.Equal(t, "close", dto.Timeline[0].Kind)
	assert.Equal(t, "2025-04-16", dto.Timeline[0].Date)
	assert.Equal(t, "1000.00", dto.Timeline[0].BalanceAfter)
	assert.Empty(t, dto.Gaps)
	assert.Empty(t, dto.Steps)
}

func TestRunForecast_Text(t *testing.T) {
	_, router := newTestServer(t)
	body := "06.01.2025\n-100\n50\n12\n\n0%\n0%\n"
	rec := do(t, router, http.MethodPost, "/api/forecast", "text/plain", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dto := decode[ForecastDTO](t, rec)
	assert.NotEmpty(t, dto.ExhaustedAt)
	assert.Empty(t, dto.Instruments)
}

func TestRunForecast_Errors(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		status      int
		code        string
	}{
		{"invalid config", "/api/forecast", "application/json", `{"start": "2025-01-06", "max_term_months": 0}`, http.StatusBadRequest, "invalid_config"},
		{"malformed json", "/api/forecast", "application/json", `{"start":`, http.StatusBadRequest, ""},
		{"unknown mode", "/api/forecast?mode=both", "application/json", ladderJSON, http.StatusBadRequest, "invalid_config"},
		{"unknown format", "/api/forecast?format=xml", "", ladderJSON, http.StatusBadRequest, "invalid_config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router := newTestServer(t)
			rec := do(t, router, http.MethodPost, tt.path, tt.contentType, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

// =============================================================================
// SCENARIO LIFECYCLE
// =============================================================================

func TestScenarioLifecycle(t *testing.T) {
	// GIVEN: an empty catalogue
	// WHEN:  a scenario is created, updated, forecast and deleted
	// THEN:  every step is reflected in the catalogue and its runs

	_, router := newTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios", "application/json", ladderJSON)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ScenarioDTO](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "household", created.Name)
	assert.Equal(t, 1, created.Version)
	assert.Empty(t, created.Config.ID)

	base := "/api/scenarios/" + created.ID

	rec = do(t, router, http.MethodPut, base, "application/yaml", existingOnlyYAML)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[ScenarioDTO](t, rec)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, 12, updated.Config.MaxTermMonths)

	rec = do(t, router, http.MethodPost, base+"/forecasts?mode=wanted", "", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[ForecastDTO](t, rec)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, created.ID, run.ScenarioID)

	rec = do(t, router, http.MethodGet, base+"/forecasts", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]ForecastSummaryDTO](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, 2, runs[0].ScenarioVersion)
	assert.Equal(t, "wanted", runs[0].Mode)
	assert.Equal(t, "1000.00", runs[0].FinalBalance)

	rec = do(t, router, http.MethodGet, "/api/forecasts/"+run.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[ForecastDTO](t, rec)
	assert.Equal(t, run.ID, stored.ID)
	assert.Equal(t, run.Timeline, stored.Timeline)

	rec = do(t, router, http.MethodGet, "/api/forecasts/"+run.ID+"/instruments", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	log := decode[[]InstrumentDTO](t, rec)
	require.Len(t, log, 1)
	assert.Equal(t, "old", log[0].Label)

	rec = do(t, router, http.MethodDelete, base, "", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, base, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, router, http.MethodGet, "/api/forecasts/"+run.ID, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenario_NotFound(t *testing.T) {
	_, router := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/scenarios/missing"},
		{http.MethodDelete, "/api/scenarios/missing"},
		{http.MethodPost, "/api/scenarios/missing/forecasts"},
		{http.MethodGet, "/api/scenarios/missing/forecasts"},
		{http.MethodGet, "/api/forecasts/missing/instruments"},
	} {
		rec := do(t, router, tc.method, tc.path, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
	}

	rec := do(t, router, http.MethodPut, "/api/scenarios/missing", "application/json", ladderJSON)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateScenario_Invalid(t *testing.T) {
	_, router := newTestServer(t)
	rec := do(t, router, http.MethodPost, "/api/scenarios", "application/json", `{"start": "not a date", "max_term_months": 3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/scenarios", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]ScenarioDTO](t, rec))
}
