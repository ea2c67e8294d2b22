package factory

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/warp/deposit-ladder/generic"
)

// =============================================================================
// LINE-ORIENTED TEXT FORMAT
// =============================================================================
//
// One value per line, in this order:
//
//	06.01.2025           -- start date
//	-1000                -- monthly drift
//	20000                -- starting balance
//	12                   -- maximum deposit term, months
//	0% 8% 9% 10% 11%     -- gross annual rate per deposit month
//	13%                  -- tax on interest
//	4%                   -- annual inflation
//	                     -- must be blank
//	15.06.2025 5000 savings
//
// Everything after " --" is a comment, and a line starting with "--" is
// blank. Rows after the blank line are existing deposits: end date, amount
// and an optional free-text label.

const headerLines = 7

// ParseText reads a scenario in the line-oriented format.
func ParseText(r io.Reader) (ScenarioJSON, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, stripComment(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return ScenarioJSON{}, fmt.Errorf("read scenario: %w", err)
	}
	if len(lines) < headerLines {
		return ScenarioJSON{}, &generic.ConfigError{Field: "text", Reason: fmt.Sprintf("expected at least %d lines, got %d", headerLines, len(lines))}
	}

	var sj ScenarioJSON
	var err error

	sj.Start = lines[0]
	if _, err := parseDate(lines[0]); err != nil {
		return sj, lineError(1, err)
	}
	if sj.MonthlyDrift, err = parseNumber(lines[1]); err != nil {
		return sj, lineError(2, err)
	}
	if sj.StartingBalance, err = parseNumber(lines[2]); err != nil {
		return sj, lineError(3, err)
	}
	if sj.MaxTermMonths, err = strconv.Atoi(lines[3]); err != nil {
		return sj, lineError(4, fmt.Errorf("invalid month count %q", lines[3]))
	}
	for _, field := range strings.Fields(lines[4]) {
		rate, err := parsePercent(field)
		if err != nil {
			return sj, lineError(5, err)
		}
		sj.Rates = append(sj.Rates, rate)
	}
	if sj.Tax, err = parsePercent(lines[5]); err != nil {
		return sj, lineError(6, err)
	}
	if sj.Inflation, err = parsePercent(lines[6]); err != nil {
		return sj, lineError(7, err)
	}

	if len(lines) == headerLines {
		return sj, nil
	}
	if lines[headerLines] != "" {
		return sj, lineError(headerLines+1, fmt.Errorf("expected a blank line before existing deposits"))
	}

	for i := headerLines + 1; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}
		date, rest, _ := strings.Cut(line, " ")
		amount, label, _ := strings.Cut(strings.TrimSpace(rest), " ")
		if amount == "" {
			return sj, lineError(i+1, fmt.Errorf("expected: date amount [label]"))
		}
		if _, err := parseDate(date); err != nil {
			return sj, lineError(i+1, err)
		}
		n, err := parseNumber(amount)
		if err != nil {
			return sj, lineError(i+1, err)
		}
		sj.Existing = append(sj.Existing, ExistingJSON{End: date, Amount: n, Label: strings.TrimSpace(label)})
	}
	return sj, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, " --"); i >= 0 {
		line = line[:i]
	} else if strings.HasPrefix(line, "--") {
		line = ""
	}
	return strings.TrimSpace(line)
}

func parsePercent(s string) (Number, error) {
	if !strings.HasSuffix(strings.TrimSpace(s), "%") {
		return Number{}, fmt.Errorf("expected a percentage, got %q", s)
	}
	return parseNumber(s)
}

var dateLayouts = []string{generic.DateFormat, "2.1.2006"}

// parseDate accepts ISO dates and the day-first dotted form.
func parseDate(s string) (generic.TimePoint, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return generic.FromTime(t), nil
		}
	}
	return generic.TimePoint{}, fmt.Errorf("invalid date %q", s)
}

func lineError(n int, err error) error {
	return &generic.ConfigError{Field: fmt.Sprintf("line %d", n), Reason: err.Error()}
}
