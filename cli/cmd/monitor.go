package cmd

import (
	"os"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/cohelm/brrr"
	"github.com/cohelm/brrr/cli/tui"
)

// MonitorCommand launches the bubbletea dashboard polling the configured
// queue, falling back to a plain polling-print loop under --no-tui or a
// non-terminal stdout, mirroring brrr_demo.py's monitor command.
func MonitorCommand(b *brrr.Brrr) *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "Watch queue depth and worker counters",
		Flags: append(SharedFlags(), NoTUIFlag),
		Action: func(ctx *cli.Context) error {
			backends, err := LoadBackends(ctx, "monitor-"+uuid.NewString())
			if err != nil {
				return err
			}
			defer backends.Queue.Close()

			// monitor only ever observes; it never runs an in-process
			// worker, so Worker-derived counters stay at zero.
			if ctx.Bool(NoTUIFlag.Name) || !isatty.IsTerminal(os.Stdout.Fd()) {
				return tui.RunMonitorPlain(ctx.Context, backends.Queue, nil)
			}
			return tui.RunMonitorTUI(backends.Queue, nil)
		},
	}
}
