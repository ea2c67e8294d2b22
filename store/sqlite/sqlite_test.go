package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/deposit-ladder/generic"
	"github.com/warp/deposit-ladder/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestScenario_SaveGetList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	saved, err := store.SaveScenario(ctx, sqlite.ScenarioRecord{Name: "household", ConfigJSON: `{"start":"2025-01-06"}`})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, 1, saved.Version)

	_, err = store.SaveScenario(ctx, sqlite.ScenarioRecord{Name: "another", ConfigJSON: `{}`})
	require.NoError(t, err)

	got, err := store.GetScenario(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "household", got.Name)
	assert.Equal(t, `{"start":"2025-01-06"}`, got.ConfigJSON)

	list, err := store.ListScenarios(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "another", list[0].Name)
}

func TestScenario_UpdateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.SaveScenario(ctx, sqlite.ScenarioRecord{ID: "s1", Name: "v1", ConfigJSON: `{}`})
	require.NoError(t, err)
	second, err := store.SaveScenario(ctx, sqlite.ScenarioRecord{ID: "s1", Name: "v2", ConfigJSON: `{"a":1}`})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, "v2", second.Name)
}

func TestScenario_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.GetScenario(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrScenarioNotFound)
	assert.True(t, generic.IsNotFound(err))

	err = store.DeleteScenario(ctx, "missing")
	assert.ErrorIs(t, err, generic.ErrScenarioNotFound)
}

func TestForecast_SaveWithInstruments(t *testing.T) {
	// GIVEN: a stored scenario
	// WHEN:  a forecast run is saved with its closed log
	// THEN:  the summary and every instrument read back intact

	ctx := context.Background()
	store := newTestStore(t)
	scenario, err := store.SaveScenario(ctx, sqlite.ScenarioRecord{Name: "household", ConfigJSON: `{}`})
	require.NoError(t, err)

	d0 := generic.NewTimePoint(2025, time.January, 6)
	instruments := []generic.Instrument{
		{Label: "new#1", Origin: generic.OriginCreated, Start: d0, End: d0.AddDays(15), WantedEnd: d0.AddDays(15), Amount: decimal.NewFromInt(500), Value: decimal.NewFromInt(500), HeldAsCash: true},
		{Label: "savings", Origin: generic.OriginExisting, End: d0.AddDays(161), Amount: decimal.NewFromInt(5000), Value: decimal.NewFromInt(5000)},
	}

	rec, err := store.SaveForecast(ctx, sqlite.ForecastRecord{
		ScenarioID:      scenario.ID,
		ScenarioVersion: scenario.Version,
		Mode:            "actual",
		FinalDate:       d0.AddDays(400),
		FinalBalance:    decimal.RequireFromString("123.45"),
		GapCount:        1,
		ResultJSON:      `{"ok":true}`,
	}, instruments)
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)

	got, err := store.GetForecast(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, scenario.ID, got.ScenarioID)
	assert.Equal(t, "actual", got.Mode)
	assert.True(t, got.ExhaustedAt.IsZero())
	assert.True(t, got.FinalDate.Equal(d0.AddDays(400)))
	assert.Equal(t, "123.45", got.FinalBalance.String())
	assert.Equal(t, 1, got.GapCount)
	assert.Equal(t, `{"ok":true}`, got.ResultJSON)

	log, err := store.ForecastInstruments(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "new#1", log[0].Label)
	assert.True(t, log[0].HeldAsCash)
	assert.True(t, log[0].Start.Equal(d0))
	assert.Equal(t, generic.StatusClosed, log[0].Status)
	assert.True(t, log[1].IsExisting())
	assert.True(t, log[1].Start.IsZero())
	assert.True(t, log[1].Value.Equal(decimal.NewFromInt(5000)))

	list, err := store.ListForecasts(ctx, scenario.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestForecast_UnknownScenario(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.SaveForecast(ctx, sqlite.ForecastRecord{ScenarioID: "nope", Mode: "actual", ResultJSON: `{}`}, nil)
	assert.ErrorIs(t, err, generic.ErrScenarioNotFound)

	_, err = store.GetForecast(ctx, "nope")
	assert.ErrorIs(t, err, generic.ErrForecastNotFound)
}

func TestDeleteScenario_CascadesToForecasts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	scenario, err := store.SaveScenario(ctx, sqlite.ScenarioRecord{Name: "tmp", ConfigJSON: `{}`})
	require.NoError(t, err)

	rec, err := store.SaveForecast(ctx, sqlite.ForecastRecord{ScenarioID: scenario.ID, Mode: "wanted", ResultJSON: `{}`},
		[]generic.Instrument{{Label: "x", Origin: generic.OriginExisting, Amount: decimal.NewFromInt(1), Value: decimal.NewFromInt(1)}})
	require.NoError(t, err)

	require.NoError(t, store.DeleteScenario(ctx, scenario.ID))

	_, err = store.GetForecast(ctx, rec.ID)
	assert.ErrorIs(t, err, generic.ErrForecastNotFound)
	log, err := store.ForecastInstruments(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, log)
}
