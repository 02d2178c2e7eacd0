// Package cmd provides the brrr CLI commands: worker, server, schedule,
// monitor, and reset.
package cmd

import "github.com/urfave/cli/v2"

// ConfigFlag names the brrr.yaml config file read by every command to
// select and configure the store/queue backends.
var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to brrr.yaml config file",
	Value:   "brrr.yaml",
}

// NoTUIFlag forces the monitor command's plain polling-print fallback,
// mirroring original_source/brrr_demo.py's monitor command when stdout
// is not a terminal.
var NoTUIFlag = &cli.BoolFlag{
	Name:  "no-tui",
	Usage: "Disable the interactive dashboard and print counters as plain text",
}

// SharedFlags returns the flags every command accepts.
func SharedFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag}
}
