package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/subcommands"
	"github.com/warp/deposit-ladder/api"
	"github.com/warp/deposit-ladder/deposit"
	"github.com/warp/deposit-ladder/factory"
	"gopkg.in/yaml.v3"
)

var commands = []subcommands.Command{
	&runCmd{},
	&timelineCmd{},
	&validateCmd{},
	&convertCmd{},
}

// scenarioArg returns the single positional scenario path.
func scenarioArg(f *flag.FlagSet) (string, bool) {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "expected exactly one scenario file")
		return "", false
	}
	return f.Arg(0), true
}

func encode(w io.Writer, output string, v any) error {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", output)
}

// forecast loads and runs a scenario. With verbose set every step is logged.
func forecast(file string, verbose bool) (*deposit.Result, error) {
	_, cfg, err := factory.LoadFile(file)
	if err != nil {
		return nil, err
	}
	scheduler := deposit.NewScheduler()
	if verbose {
		scheduler.Observer = func(s deposit.Step) {
			log.Printf("[Step %d] %s %s balance %s -> %s opened=%v closed=%v",
				s.Index, s.Date, s.Kind, s.BalanceBefore.StringFixed(2), s.BalanceAfter.StringFixed(2), s.Opened, s.Closed)
		}
	}
	return scheduler.Run(cfg)
}

// =============================================================================
// RUN
// =============================================================================

type runCmd struct {
	mode    string
	output  string
	steps   bool
	verbose bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "forecast a scenario and print the deposit ladder" }
func (*runCmd) Usage() string {
	return `ladder run [-mode actual|wanted] [-o json|yaml] [-steps] [-v] <scenario>

  Simulates the scenario to its horizon and prints every deposit, the
  funding gaps, the exhaustion date if any, and the timeline.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.mode, "mode", "actual", "Timeline mode: actual or wanted liquidation dates.")
	f.StringVar(&c.output, "o", "json", "Output format (json, yaml).")
	f.BoolVar(&c.steps, "steps", false, "Include the simulation steps in the output.")
	f.BoolVar(&c.verbose, "v", false, "Log every simulation step to stderr.")
}

func (c *runCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	file, ok := scenarioArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	mode, err := deposit.ParseTimelineMode(c.mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	res, err := forecast(file, c.verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := encode(os.Stdout, c.output, api.NewForecastDTO(res, mode, c.steps)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// =============================================================================
// TIMELINE
// =============================================================================

type timelineCmd struct {
	mode   string
	output string
}

func (*timelineCmd) Name() string     { return "timeline" }
func (*timelineCmd) Synopsis() string { return "print the deposit opening and closing timeline" }
func (*timelineCmd) Usage() string {
	return `ladder timeline [-mode actual|wanted] [-o yaml|json] <scenario>
`
}

func (c *timelineCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.mode, "mode", "actual", "Timeline mode: actual or wanted liquidation dates.")
	f.StringVar(&c.output, "o", "yaml", "Output format (yaml, json).")
}

func (c *timelineCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	file, ok := scenarioArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	mode, err := deposit.ParseTimelineMode(c.mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	res, err := forecast(file, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	events := deposit.AssembleTimeline(res, mode)
	dtos := make([]api.TimelineEventDTO, len(events))
	for i, ev := range events {
		dtos[i] = api.NewTimelineEventDTO(ev)
	}
	if err := encode(os.Stdout, c.output, dtos); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// =============================================================================
// VALIDATE / CONVERT
// =============================================================================

type validateCmd struct{}

func (*validateCmd) Name() string     { return "validate" }
func (*validateCmd) Synopsis() string { return "check that a scenario file is well formed" }
func (*validateCmd) Usage() string {
	return `ladder validate <scenario>...
`
}
func (*validateCmd) SetFlags(*flag.FlagSet) {}

func (*validateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "expected at least one scenario file")
		return subcommands.ExitUsageError
	}
	status := subcommands.ExitSuccess
	for _, file := range f.Args() {
		sj, cfg, err := factory.LoadFile(file)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Printf("%s: ok (%s, %d existing deposits, horizon %s)\n", file, sj.Name, len(cfg.Existing), cfg.Horizon().End)
	}
	return status
}

type convertCmd struct {
	to string
}

func (*convertCmd) Name() string     { return "convert" }
func (*convertCmd) Synopsis() string { return "rewrite a scenario file as JSON or YAML" }
func (*convertCmd) Usage() string {
	return `ladder convert [-to yaml|json] <scenario>
`
}

func (c *convertCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.to, "to", "yaml", "Target format (yaml, json).")
}

func (c *convertCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	file, ok := scenarioArg(f)
	if !ok {
		return subcommands.ExitUsageError
	}
	format, err := factory.ParseFormat(c.to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	sj, _, err := factory.LoadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	data, err := factory.NewScenarioFactory().Encode(sj, format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	os.Stdout.Write(data)
	return subcommands.ExitSuccess
}
