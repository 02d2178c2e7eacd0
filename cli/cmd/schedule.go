package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/cohelm/brrr"
)

// ScheduleCommand puts a single job onto the queue, mirroring
// brrr_demo.py's schedule command. SkipFlagParsing lets arbitrary
// "--k v" pairs pass through untouched, the way args2dict expects them.
func ScheduleCommand(b *brrr.Brrr) *cli.Command {
	return &cli.Command{
		Name:            "schedule",
		Usage:           "Put a single job onto the queue",
		ArgsUsage:       "<task> [--k v]...",
		SkipFlagParsing: true,
		Action: func(ctx *cli.Context) error {
			rest := ctx.Args().Slice()
			if len(rest) == 0 {
				return fmt.Errorf("cmd: schedule requires a task name")
			}
			taskName, kwargs := rest[0], rest[1:]

			if !b.HasTask(taskName) {
				return fmt.Errorf("cmd: no such task %q", taskName)
			}

			backends, err := LoadBackends(ctx, "schedule-"+uuid.NewString())
			if err != nil {
				return err
			}
			defer backends.Close(context.Background())

			b.Setup(backends.Queue, backends.Store, brrr.WithLogger(backends.Logger))

			call, err := b.Schedule(ctx.Context, taskName, args2dict(kwargs))
			if err != nil {
				return fmt.Errorf("cmd: schedule %s: %w", taskName, err)
			}
			fmt.Printf("scheduled %s (memo_key=%s)\n", taskName, call.MemoKey)
			return nil
		},
	}
}

// args2dict is a rudimentary arbitrary flag parser, matching
// brrr_demo.py's args2dict: ["--foo", "bar", "--zim", "zom"] becomes
// {"foo": "bar", "zim": "zom"}. Values stay strings; a task that wants a
// number parses it itself, the same way fib_and_print(n: str) does.
func args2dict(args []string) map[string]string {
	out := make(map[string]string, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key := strings.TrimLeft(args[i], "-")
		out[key] = args[i+1]
	}
	return out
}
