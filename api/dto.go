/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal ledger model from the external contract. Money is rendered
  as fixed two-decimal strings so clients never see float rounding.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Forecast:
    ForecastDTO, InstrumentDTO, GapDTO, StepDTO, TimelineEventDTO

  Catalogue:
    ScenarioDTO, ForecastSummaryDTO, PresetDTO

The forecast types also carry yaml tags; the CLI prints them as YAML.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/scenario.go: ScenarioJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/deposit"
	"github.com/warp/deposit-ladder/factory"
	"github.com/warp/deposit-ladder/generic"
	"github.com/warp/deposit-ladder/store/sqlite"
)

// =============================================================================
// FORECAST
// =============================================================================

// ForecastDTO is a complete forecast run.
type ForecastDTO struct {
	ID           string             `json:"id,omitempty" yaml:"id,omitempty"`
	ScenarioID   string             `json:"scenario_id,omitempty" yaml:"scenario_id,omitempty"`
	Mode         string             `json:"mode" yaml:"mode"`
	Start        string             `json:"start" yaml:"start"`
	HorizonEnd   string             `json:"horizon_end" yaml:"horizon_end"`
	FinalDate    string             `json:"final_date" yaml:"final_date"`
	FinalBalance string             `json:"final_balance" yaml:"final_balance"`
	ExhaustedAt  string             `json:"exhausted_at,omitempty" yaml:"exhausted_at,omitempty"`
	NetRates     []string           `json:"net_rates" yaml:"net_rates"`
	Instruments  []InstrumentDTO    `json:"instruments" yaml:"instruments"`
	Gaps         []GapDTO           `json:"gaps" yaml:"gaps"`
	Timeline     []TimelineEventDTO `json:"timeline" yaml:"timeline"`
	Steps        []StepDTO          `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// InstrumentDTO is one closed record of the instrument log.
type InstrumentDTO struct {
	Label               string `json:"label" yaml:"label"`
	Origin              string `json:"origin" yaml:"origin"`
	Start               string `json:"start,omitempty" yaml:"start,omitempty"`
	End                 string `json:"end" yaml:"end"`
	WantedEnd           string `json:"wanted_end,omitempty" yaml:"wanted_end,omitempty"`
	Amount              string `json:"amount" yaml:"amount"`
	Value               string `json:"value" yaml:"value"`
	DurationMonths      int    `json:"duration_months,omitempty" yaml:"duration_months,omitempty"`
	HeldAsCash          bool   `json:"held_as_cash,omitempty" yaml:"held_as_cash,omitempty"`
	ForcedByDurationCap bool   `json:"forced_by_duration_cap,omitempty" yaml:"forced_by_duration_cap,omitempty"`
}

// GapDTO is a period the balance is projected negative.
type GapDTO struct {
	From    string `json:"from" yaml:"from"`
	To      string `json:"to" yaml:"to"`
	Deficit string `json:"deficit" yaml:"deficit"`
}

// StepDTO is one iteration of the scheduler.
type StepDTO struct {
	Index         int      `json:"index" yaml:"index"`
	Kind          string   `json:"kind" yaml:"kind"`
	Date          string   `json:"date" yaml:"date"`
	BalanceBefore string   `json:"balance_before" yaml:"balance_before"`
	BalanceAfter  string   `json:"balance_after" yaml:"balance_after"`
	Opened        []string `json:"opened,omitempty" yaml:"opened,omitempty"`
	Closed        []string `json:"closed,omitempty" yaml:"closed,omitempty"`
}

// TimelineEventDTO is one opening or closing with the replayed balance.
type TimelineEventDTO struct {
	Kind                string   `json:"kind" yaml:"kind"`
	Date                string   `json:"date" yaml:"date"`
	Label               string   `json:"label" yaml:"label"`
	Origin              string   `json:"origin" yaml:"origin"`
	Amount              string   `json:"amount" yaml:"amount"`
	End                 string   `json:"end,omitempty" yaml:"end,omitempty"`
	WantedEnd           string   `json:"wanted_end,omitempty" yaml:"wanted_end,omitempty"`
	DurationMonths      int      `json:"duration_months,omitempty" yaml:"duration_months,omitempty"`
	HeldDays            int      `json:"held_days,omitempty" yaml:"held_days,omitempty"`
	HeldAsCash          bool     `json:"held_as_cash,omitempty" yaml:"held_as_cash,omitempty"`
	ForcedByDurationCap bool     `json:"forced_by_duration_cap,omitempty" yaml:"forced_by_duration_cap,omitempty"`
	BalanceBefore       string   `json:"balance_before" yaml:"balance_before"`
	BalanceAfter        string   `json:"balance_after" yaml:"balance_after"`
	Continuation        bool     `json:"continuation,omitempty" yaml:"continuation,omitempty"`
	Continued           bool     `json:"continued,omitempty" yaml:"continued,omitempty"`
	LowBefore           bool     `json:"low_before,omitempty" yaml:"low_before,omitempty"`
	OutOfBand           bool     `json:"out_of_band,omitempty" yaml:"out_of_band,omitempty"`
	Neighbours          []string `json:"neighbours,omitempty" yaml:"neighbours,omitempty"`
}

// NewForecastDTO renders a result. Steps are included only when asked for.
func NewForecastDTO(res *deposit.Result, mode deposit.TimelineMode, withSteps bool) ForecastDTO {
	tiers := deposit.NewTierTable(res.Config.AnnualRates, res.Config.TaxPercent, res.Config.InflationPercent)

	dto := ForecastDTO{
		Mode:         string(mode),
		Start:        res.Config.Start.String(),
		HorizonEnd:   res.Config.Horizon().End.String(),
		FinalDate:    res.FinalDate.String(),
		FinalBalance: money(res.FinalBalance),
		ExhaustedAt:  res.ExhaustedAt.String(),
		NetRates:     make([]string, 0, tiers.Len()),
		Instruments:  make([]InstrumentDTO, 0, len(res.Instruments)),
		Gaps:         make([]GapDTO, 0, len(res.Gaps)),
	}
	for _, r := range tiers.Rates() {
		dto.NetRates = append(dto.NetRates, r.StringFixed(4))
	}
	for _, inst := range res.Instruments {
		dto.Instruments = append(dto.Instruments, NewInstrumentDTO(inst))
	}
	for _, g := range res.Gaps {
		dto.Gaps = append(dto.Gaps, GapDTO{From: g.Period.Start.String(), To: g.Period.End.String(), Deficit: money(g.Deficit)})
	}

	events := deposit.AssembleTimeline(res, mode)
	dto.Timeline = make([]TimelineEventDTO, 0, len(events))
	for _, ev := range events {
		dto.Timeline = append(dto.Timeline, NewTimelineEventDTO(ev))
	}

	if withSteps {
		for _, s := range res.Steps {
			dto.Steps = append(dto.Steps, StepDTO{
				Index:         s.Index,
				Kind:          string(s.Kind),
				Date:          s.Date.String(),
				BalanceBefore: money(s.BalanceBefore),
				BalanceAfter:  money(s.BalanceAfter),
				Opened:        s.Opened,
				Closed:        s.Closed,
			})
		}
	}
	return dto
}

func NewInstrumentDTO(inst generic.Instrument) InstrumentDTO {
	return InstrumentDTO{
		Label:               inst.Label,
		Origin:              string(inst.Origin),
		Start:               inst.Start.String(),
		End:                 inst.End.String(),
		WantedEnd:           inst.WantedEnd.String(),
		Amount:              money(inst.Amount),
		Value:               money(inst.Value),
		DurationMonths:      inst.DurationMonths(),
		HeldAsCash:          inst.HeldAsCash,
		ForcedByDurationCap: inst.ForcedByDurationCap,
	}
}

func NewTimelineEventDTO(ev deposit.TimelineEvent) TimelineEventDTO {
	dto := TimelineEventDTO{
		Kind:                string(ev.Kind),
		Date:                ev.Date.String(),
		Label:               ev.Label,
		Origin:              string(ev.Origin),
		Amount:              money(ev.Amount),
		WantedEnd:           ev.WantedEnd.String(),
		ForcedByDurationCap: ev.ForcedByDurationCap,
		BalanceBefore:       money(ev.BalanceBefore),
		BalanceAfter:        money(ev.BalanceAfter),
		Continuation:        ev.Continuation,
		Continued:           ev.Continued,
		LowBefore:           ev.LowBefore,
		OutOfBand:           ev.OutOfBand,
	}
	if ev.Kind == deposit.EventOpen {
		dto.End = ev.End.String()
	}
	if ev.HeldAsCash {
		dto.HeldAsCash = true
		dto.HeldDays = ev.HeldDays
	} else {
		dto.DurationMonths = ev.DurationMonths
	}
	for _, n := range ev.Neighbours {
		dto.Neighbours = append(dto.Neighbours, n.Label)
	}
	return dto
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// =============================================================================
// CATALOGUE
// =============================================================================

// ScenarioDTO is a stored scenario.
type ScenarioDTO struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Version   int                  `json:"version"`
	Config    factory.ScenarioJSON `json:"config"`
	CreatedAt string               `json:"created_at,omitempty"`
	UpdatedAt string               `json:"updated_at,omitempty"`
}

// ForecastSummaryDTO lists a saved run without its timeline.
type ForecastSummaryDTO struct {
	ID              string `json:"id"`
	ScenarioID      string `json:"scenario_id"`
	ScenarioVersion int    `json:"scenario_version"`
	Mode            string `json:"mode"`
	FinalDate       string `json:"final_date"`
	FinalBalance    string `json:"final_balance"`
	ExhaustedAt     string `json:"exhausted_at,omitempty"`
	GapCount        int    `json:"gap_count"`
	CreatedAt       string `json:"created_at"`
}

func newForecastSummaryDTO(rec sqlite.ForecastRecord) ForecastSummaryDTO {
	return ForecastSummaryDTO{
		ID:              rec.ID,
		ScenarioID:      rec.ScenarioID,
		ScenarioVersion: rec.ScenarioVersion,
		Mode:            rec.Mode,
		FinalDate:       rec.FinalDate.String(),
		FinalBalance:    money(rec.FinalBalance),
		ExhaustedAt:     rec.ExhaustedAt.String(),
		GapCount:        rec.GapCount,
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
	}
}

// PresetDTO describes a built-in demo scenario.
type PresetDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RefreshResultDTO reports a catalogue-wide re-forecast.
type RefreshResultDTO struct {
	Refreshed int               `json:"refreshed"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
