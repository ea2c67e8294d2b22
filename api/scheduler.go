/*
scheduler.go - Catalogue-wide forecast refresh

PURPOSE:
  Re-runs every stored scenario and saves a fresh forecast for each, e.g.
  after the engine's rules changed or a batch of scenarios was imported.

DESIGN:
  - Scenarios are fanned out to a fixed number of workers
  - Each run is independent; a failing scenario does not stop the others
  - Failures are logged and reported per scenario ID

USAGE:
  refresher := NewRefresher(handler)
  result := refresher.RefreshAll(ctx, deposit.TimelineActual)

SEE ALSO:
  - scenarios.go: runAndSave, shared with the per-scenario endpoint
*/
package api

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/warp/deposit-ladder/deposit"
	"github.com/warp/deposit-ladder/store/sqlite"
)

const defaultRefreshWorkers = 4

// Refresher re-forecasts the whole scenario catalogue.
type Refresher struct {
	Handler *Handler
	Workers int
}

// NewRefresher creates a refresher with the default worker count.
func NewRefresher(handler *Handler) *Refresher {
	return &Refresher{Handler: handler, Workers: defaultRefreshWorkers}
}

// RefreshAll runs and saves a forecast for every stored scenario.
func (rf *Refresher) RefreshAll(ctx context.Context, mode deposit.TimelineMode) (RefreshResultDTO, error) {
	records, err := rf.Handler.Store.ListScenarios(ctx)
	if err != nil {
		return RefreshResultDTO{}, err
	}

	log.Printf("[Refresh] Re-running %d scenarios", len(records))

	jobs := make(chan sqlite.ScenarioRecord)
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result = RefreshResultDTO{Failed: map[string]string{}}
	)

	workers := max(1, rf.Workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				_, err := rf.Handler.runAndSave(ctx, rec, forecastOptions{mode: mode})

				mu.Lock()
				if err != nil {
					log.Printf("[Refresh] Error forecasting %s: %v", rec.ID, err)
					result.Failed[rec.ID] = err.Error()
				} else {
					result.Refreshed++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, rec := range records {
		select {
		case jobs <- rec:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	log.Printf("[Refresh] Completed: %d refreshed, %d failed", result.Refreshed, len(result.Failed))
	return result, ctx.Err()
}

// RefreshForecasts is the HTTP entry point for RefreshAll.
func (h *Handler) RefreshForecasts(w http.ResponseWriter, r *http.Request) {
	opts, err := parseForecastOptions(r)
	if err != nil {
		writeDomainError(w, "Invalid query", err)
		return
	}
	result, err := NewRefresher(h).RefreshAll(r.Context(), opts.mode)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Refresh failed", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
