/*
main.go - Command-line forecast runner

PURPOSE:
  Runs a scenario file through the ladder engine without the HTTP server.
  The file format follows the extension: .json, .yaml/.yml, anything else
  is read as the line-oriented text format.

COMMANDS:
  run       forecast a scenario and print the ladder
  timeline  print only the open/close timeline
  validate  check a scenario file
  convert   rewrite a scenario as JSON or YAML

EXAMPLES:
  ladder run -mode wanted household.yaml
  ladder timeline -o yaml household.txt
  ladder convert -to json household.txt
*/
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
