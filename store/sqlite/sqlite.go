/*
Package sqlite persists scenarios and forecast runs in SQLite.

PURPOSE:
  The forecast itself is a pure in-memory computation. This package keeps
  what outlives a single run: the scenario catalogue edited through the
  API, and saved forecast runs with their closed-instrument log so they
  can be compared later.

KEY TABLES:
  scenarios:            scenario definitions (config_json, versioned)
  forecasts:            one row per saved run, summary columns + result_json
  forecast_instruments: closed instrument log of a run, one row per record

  Deleting a scenario cascades to its forecasts and their instruments.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, like the in-memory instrument store.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  the single writer.

USAGE:
  store, err := sqlite.New("./data/ladder.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  rec, err := store.SaveScenario(ctx, sqlite.ScenarioRecord{Name: "household", ConfigJSON: js})
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/generic"
)

// Store keeps the scenario catalogue and saved forecasts.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scenarios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_scenarios_name
		ON scenarios(name);

	CREATE TABLE IF NOT EXISTS forecasts (
		id TEXT PRIMARY KEY,
		scenario_id TEXT NOT NULL REFERENCES scenarios(id) ON DELETE CASCADE,
		scenario_version INTEGER NOT NULL,
		mode TEXT NOT NULL,
		exhausted_at TEXT,
		final_date TEXT NOT NULL,
		final_balance TEXT NOT NULL,
		gap_count INTEGER NOT NULL DEFAULT 0,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_forecasts_scenario
		ON forecasts(scenario_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS forecast_instruments (
		forecast_id TEXT NOT NULL REFERENCES forecasts(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		label TEXT NOT NULL,
		origin TEXT NOT NULL,
		start_date TEXT,
		end_date TEXT NOT NULL,
		wanted_end_date TEXT,
		amount TEXT NOT NULL,
		value TEXT NOT NULL,
		held_as_cash BOOLEAN DEFAULT FALSE,
		forced_by_cap BOOLEAN DEFAULT FALSE,
		PRIMARY KEY (forecast_id, position)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCENARIO STORE
// =============================================================================

// ScenarioRecord is a stored scenario with its serialized definition.
type ScenarioRecord struct {
	ID         string
	Name       string
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SaveScenario inserts a scenario or replaces an existing one, bumping its
// version. An empty ID gets a fresh UUID.
func (s *Store) SaveScenario(ctx context.Context, rec ScenarioRecord) (ScenarioRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := `
		INSERT INTO scenarios (id, name, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			version = scenarios.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.Name, rec.ConfigJSON, now, now); err != nil {
		return rec, fmt.Errorf("failed to save scenario: %w", err)
	}
	saved, err := s.getScenario(ctx, rec.ID)
	if err != nil {
		return rec, err
	}
	return *saved, nil
}

// GetScenario retrieves a scenario by ID.
func (s *Store) GetScenario(ctx context.Context, id string) (*ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getScenario(ctx, id)
}

func (s *Store) getScenario(ctx context.Context, id string) (*ScenarioRecord, error) {
	var rec ScenarioRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM scenarios WHERE id = ?",
		id,
	).Scan(&rec.ID, &rec.Name, &rec.ConfigJSON, &rec.Version, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrScenarioNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &rec, nil
}

// ListScenarios returns all scenarios ordered by name.
func (s *Store) ListScenarios(ctx context.Context) ([]ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, config_json, version, created_at, updated_at FROM scenarios ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenarios []ScenarioRecord
	for rows.Next() {
		var rec ScenarioRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.ConfigJSON, &rec.Version, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		scenarios = append(scenarios, rec)
	}
	return scenarios, rows.Err()
}

// DeleteScenario removes a scenario and every forecast saved for it.
func (s *Store) DeleteScenario(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM scenarios WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrScenarioNotFound, id)
	}
	return nil
}

// =============================================================================
// FORECAST STORE
// =============================================================================

// ForecastRecord is the summary of a saved forecast run. ResultJSON holds the
// full rendered forecast as returned by the API.
type ForecastRecord struct {
	ID              string
	ScenarioID      string
	ScenarioVersion int
	Mode            string
	ExhaustedAt     generic.TimePoint
	FinalDate       generic.TimePoint
	FinalBalance    decimal.Decimal
	GapCount        int
	ResultJSON      string
	CreatedAt       time.Time
}

// SaveForecast stores a run and its closed-instrument log atomically.
func (s *Store) SaveForecast(ctx context.Context, rec ForecastRecord, instruments []generic.Instrument) (ForecastRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = time.Now().UTC().Truncate(time.Second)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rec, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO forecasts
		(id, scenario_id, scenario_version, mode, exhausted_at, final_date, final_balance, gap_count, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ScenarioID, rec.ScenarioVersion, rec.Mode,
		nullDate(rec.ExhaustedAt), rec.FinalDate.String(), rec.FinalBalance.String(),
		rec.GapCount, rec.ResultJSON, rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return rec, fmt.Errorf("%w: %s", generic.ErrScenarioNotFound, rec.ScenarioID)
		}
		return rec, fmt.Errorf("failed to save forecast: %w", err)
	}

	for i, inst := range instruments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO forecast_instruments
			(forecast_id, position, label, origin, start_date, end_date, wanted_end_date, amount, value, held_as_cash, forced_by_cap)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, i, inst.Label, string(inst.Origin),
			nullDate(inst.Start), inst.End.String(), nullDate(inst.WantedEnd),
			inst.Amount.String(), inst.Value.String(), inst.HeldAsCash, inst.ForcedByDurationCap,
		)
		if err != nil {
			return rec, fmt.Errorf("failed to save instrument %s: %w", inst.Label, err)
		}
	}

	return rec, tx.Commit()
}

const forecastColumns = `id, scenario_id, scenario_version, mode, exhausted_at, final_date, final_balance, gap_count, result_json, created_at`

// GetForecast retrieves a saved run by ID.
func (s *Store) GetForecast(ctx context.Context, id string) (*ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+forecastColumns+" FROM forecasts WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", generic.ErrForecastNotFound, id)
	}
	rec, err := scanForecast(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListForecasts returns the runs saved for a scenario, newest first.
func (s *Store) ListForecasts(ctx context.Context, scenarioID string) ([]ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+forecastColumns+" FROM forecasts WHERE scenario_id = ? ORDER BY created_at DESC, rowid DESC",
		scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query forecasts: %w", err)
	}
	defer rows.Close()

	var out []ForecastRecord
	for rows.Next() {
		rec, err := scanForecast(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ForecastInstruments returns the closed-instrument log of a saved run.
func (s *Store) ForecastInstruments(ctx context.Context, forecastID string) ([]generic.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT label, origin, start_date, end_date, wanted_end_date, amount, value, held_as_cash, forced_by_cap
		FROM forecast_instruments
		WHERE forecast_id = ?
		ORDER BY position`,
		forecastID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var out []generic.Instrument
	for rows.Next() {
		var inst generic.Instrument
		var origin, end, amount, value string
		var start, wanted sql.NullString
		if err := rows.Scan(&inst.Label, &origin, &start, &end, &wanted, &amount, &value, &inst.HeldAsCash, &inst.ForcedByDurationCap); err != nil {
			return nil, err
		}
		inst.Origin = generic.Origin(origin)
		inst.Status = generic.StatusClosed
		inst.Start = parseDate(start.String)
		inst.End = parseDate(end)
		inst.WantedEnd = parseDate(wanted.String)
		inst.Amount = parseDecimal(amount)
		inst.Value = parseDecimal(value)
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanForecast(rows *sql.Rows) (ForecastRecord, error) {
	var rec ForecastRecord
	var exhausted sql.NullString
	var finalDate, finalBalance, createdAt string

	err := rows.Scan(&rec.ID, &rec.ScenarioID, &rec.ScenarioVersion, &rec.Mode,
		&exhausted, &finalDate, &finalBalance, &rec.GapCount, &rec.ResultJSON, &createdAt)
	if err != nil {
		return rec, err
	}
	rec.ExhaustedAt = parseDate(exhausted.String)
	rec.FinalDate = parseDate(finalDate)
	rec.FinalBalance = parseDecimal(finalBalance)
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return rec, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"forecast_instruments", "forecasts", "scenarios"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullDate(tp generic.TimePoint) sql.NullString {
	if tp.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func parseDate(s string) generic.TimePoint {
	if s == "" {
		return generic.TimePoint{}
	}
	tp, _ := generic.ParseTimePoint(s)
	return tp
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
