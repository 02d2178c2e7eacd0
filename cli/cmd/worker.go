package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/cohelm/brrr"
	"github.com/cohelm/brrr/metrics"
)

// WorkerCommand runs Wrrrk against b until the configured queue closes
// or a handler fault propagates, mirroring brrr_demo.py's worker command.
func WorkerCommand(b *brrr.Brrr) *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run the wrrrk loop until the queue closes",
		Flags: SharedFlags(),
		Action: func(ctx *cli.Context) error {
			workerID := "worker-" + uuid.NewString()
			backends, err := LoadBackends(ctx, workerID)
			if err != nil {
				return err
			}
			defer backends.Close(context.Background())

			b.Setup(backends.Queue, backends.Store,
				brrr.WithLogger(backends.Logger),
				brrr.WithAudit(backends.Recorder),
				brrr.WithMetrics(metrics.NewCollector(backends.Config.Store.Backend, backends.Config.Queue.Backend, workerID)),
				brrr.WithMaxSpawns(backends.Config.MaxSpawns),
				brrr.WithPollInterval(backends.Config.PollInterval.Duration),
			)

			if backends.Recorder != nil {
				backends.Recorder.Start(ctx.Context)
			}

			return b.Wrrrk(ctx.Context)
		},
	}
}
