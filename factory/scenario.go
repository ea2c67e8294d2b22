/*
Package factory converts scenario definitions into deposit.Config.

PURPOSE:
  A scenario is everything the forecast needs: the start date, cash on
  hand, the monthly net drift, the bank's rate table and the deposits
  already held. Scenarios live in files or in the API's catalogue, so
  they are described by plain data (ScenarioJSON) and converted here.

FORMATS:
  - JSON:  ScenarioJSON with json tags
  - YAML:  the same struct, yaml tags (gopkg.in/yaml.v3)
  - text:  the line-oriented format of the original tool (see text.go)

JSON SCHEMA:
  {
    "name": "household",
    "start": "2025-01-06",
    "monthly_drift": -1000,
    "starting_balance": 20000,
    "max_term_months": 12,
    "rates": ["0%", "8%", "9%", "10%"],
    "tax": "13%",
    "inflation": "4%",
    "existing": [
      {"end": "2025-06-15", "amount": 5000, "label": "savings"}
    ]
  }

  Numbers may be written as JSON numbers or strings; a trailing "%" is
  accepted and ignored. Dates are yyyy-mm-dd or dd.mm.yyyy.

USAGE:
  f := factory.NewScenarioFactory()
  cfg, err := f.ParseScenario(data, factory.FormatYAML)

  sj, cfg, err := factory.LoadFile("household.txt")
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/deposit-ladder/deposit"
	"github.com/warp/deposit-ladder/generic"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// ScenarioJSON is the serialized form of a scenario.
type ScenarioJSON struct {
	ID              string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name            string         `json:"name,omitempty" yaml:"name,omitempty"`
	Start           string         `json:"start" yaml:"start"`
	MonthlyDrift    Number         `json:"monthly_drift" yaml:"monthly_drift"`
	StartingBalance Number         `json:"starting_balance" yaml:"starting_balance"`
	MaxTermMonths   int            `json:"max_term_months" yaml:"max_term_months"`
	HorizonYears    int            `json:"horizon_years,omitempty" yaml:"horizon_years,omitempty"`
	Rates           []Number       `json:"rates" yaml:"rates"`
	Tax             Number         `json:"tax" yaml:"tax"`
	Inflation       Number         `json:"inflation" yaml:"inflation"`
	Existing        []ExistingJSON `json:"existing,omitempty" yaml:"existing,omitempty"`
}

// ExistingJSON is a deposit already held at the start date.
type ExistingJSON struct {
	End    string `json:"end" yaml:"end"`
	Amount Number `json:"amount" yaml:"amount"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Number is a decimal that accepts numbers, numeric strings and percentages.
type Number struct {
	decimal.Decimal
}

func NewNumber(d decimal.Decimal) Number { return Number{Decimal: d} }

func parseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if s == "" {
		return Number{}, fmt.Errorf("missing number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Number{}, fmt.Errorf("invalid number %q", s)
	}
	return Number{Decimal: d}, nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	v, err := parseNumber(s)
	if err != nil {
		return err
	}
	*n = v
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

func (n *Number) UnmarshalYAML(node *yaml.Node) error {
	if node.ShortTag() == "!!null" {
		*n = Number{}
		return nil
	}
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	v, err := parseNumber(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*n = v
	return nil
}

func (n Number) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: n.Decimal.String()}, nil
}

// =============================================================================
// FORMATS
// =============================================================================

// Format names a scenario encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat accepts json, yaml (or yml) and text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "text", "txt":
		return FormatText, nil
	}
	return "", &generic.ConfigError{Field: "format", Reason: fmt.Sprintf("unknown format %q", s)}
}

// FormatFromPath picks the format from the file extension; anything that is
// not JSON or YAML is read as text.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatText
	}
}

// =============================================================================
// SCENARIO FACTORY
// =============================================================================

// ScenarioFactory converts serialized scenarios to deposit.Config.
type ScenarioFactory struct{}

func NewScenarioFactory() *ScenarioFactory {
	return &ScenarioFactory{}
}

// Decode reads a scenario in the given format without validating it.
func (f *ScenarioFactory) Decode(data []byte, format Format) (ScenarioJSON, error) {
	var sj ScenarioJSON
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &sj); err != nil {
			return sj, fmt.Errorf("failed to parse scenario JSON: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &sj); err != nil {
			return sj, fmt.Errorf("failed to parse scenario YAML: %w", err)
		}
	case FormatText:
		return ParseText(bytes.NewReader(data))
	default:
		return sj, &generic.ConfigError{Field: "format", Reason: fmt.Sprintf("unknown format %q", format)}
	}
	return sj, nil
}

// ParseScenario decodes and converts a scenario in one step.
func (f *ScenarioFactory) ParseScenario(data []byte, format Format) (deposit.Config, error) {
	sj, err := f.Decode(data, format)
	if err != nil {
		return deposit.Config{}, err
	}
	return f.FromJSON(sj)
}

// FromJSON converts ScenarioJSON to a validated deposit.Config.
func (f *ScenarioFactory) FromJSON(sj ScenarioJSON) (deposit.Config, error) {
	start, err := parseDate(sj.Start)
	if err != nil {
		return deposit.Config{}, &generic.ConfigError{Field: "start", Reason: err.Error()}
	}

	cfg := deposit.Config{
		Start:            start,
		MonthlyDrift:     sj.MonthlyDrift.Decimal,
		StartingBalance:  sj.StartingBalance.Decimal,
		MaxTermMonths:    sj.MaxTermMonths,
		TaxPercent:       sj.Tax.Decimal,
		InflationPercent: sj.Inflation.Decimal,
		HorizonYears:     sj.HorizonYears,
	}
	for _, r := range sj.Rates {
		cfg.AnnualRates = append(cfg.AnnualRates, r.Decimal)
	}
	for i, e := range sj.Existing {
		end, err := parseDate(e.End)
		if err != nil {
			return deposit.Config{}, &generic.ConfigError{Field: fmt.Sprintf("existing[%d].end", i), Reason: err.Error()}
		}
		cfg.Existing = append(cfg.Existing, deposit.ExistingInstrument{
			Maturity: end,
			Amount:   e.Amount.Decimal,
			Label:    e.Label,
		})
	}

	if err := cfg.Validate(); err != nil {
		return deposit.Config{}, err
	}
	return cfg, nil
}

// ToJSON converts a deposit.Config back to its serialized form.
func (f *ScenarioFactory) ToJSON(cfg deposit.Config) ScenarioJSON {
	sj := ScenarioJSON{
		Start:           cfg.Start.String(),
		MonthlyDrift:    NewNumber(cfg.MonthlyDrift),
		StartingBalance: NewNumber(cfg.StartingBalance),
		MaxTermMonths:   cfg.MaxTermMonths,
		HorizonYears:    cfg.HorizonYears,
		Tax:             NewNumber(cfg.TaxPercent),
		Inflation:       NewNumber(cfg.InflationPercent),
	}
	for _, r := range cfg.AnnualRates {
		sj.Rates = append(sj.Rates, NewNumber(r))
	}
	for _, e := range cfg.Existing {
		sj.Existing = append(sj.Existing, ExistingJSON{
			End:    e.Maturity.String(),
			Amount: NewNumber(e.Amount),
			Label:  e.Label,
		})
	}
	return sj
}

// Encode writes a scenario as JSON or YAML.
func (f *ScenarioFactory) Encode(sj ScenarioJSON, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(sj, "", "  ")
	case FormatYAML:
		return yaml.Marshal(sj)
	}
	return nil, &generic.ConfigError{Field: "format", Reason: fmt.Sprintf("cannot encode %q", format)}
}

// LoadFile reads a scenario file, choosing the format by extension.
func LoadFile(path string) (ScenarioJSON, deposit.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScenarioJSON{}, deposit.Config{}, fmt.Errorf("read scenario: %w", err)
	}

	f := NewScenarioFactory()
	sj, err := f.Decode(data, FormatFromPath(path))
	if err != nil {
		return ScenarioJSON{}, deposit.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if sj.Name == "" {
		sj.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	cfg, err := f.FromJSON(sj)
	if err != nil {
		return sj, deposit.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return sj, cfg, nil
}
