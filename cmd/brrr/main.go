// Package main provides the brrr CLI entrypoint.
//
// Usage:
//
//	brrr <command> [options]
//
// Commands: worker, server, schedule, monitor, reset, version.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/cohelm/brrr"
	"github.com/cohelm/brrr/cli/cmd"
)

// Version is the CLI's release version.
const Version = "0.1.0"

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	b := brrr.New()
	registerDemoTasks(b)

	app := &cli.App{
		Name:           "brrr",
		Usage:          "A durable, distributed task orchestration runtime",
		Version:        fmt.Sprintf("%s (commit: %s)", Version, commit),
		Flags:          cmd.SharedFlags(),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.WorkerCommand(b),
			cmd.ServerCommand(b),
			cmd.ScheduleCommand(b),
			cmd.MonitorCommand(b),
			cmd.ResetCommand(b),
			cmd.VersionCommand(Version, commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes carried by cli.Exit errors, the
// same idiom quarry's CLI entrypoint used.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
