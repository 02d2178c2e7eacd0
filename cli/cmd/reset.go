package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/cohelm/brrr"
	"github.com/cohelm/brrr/queue"
	"github.com/cohelm/brrr/store"
)

// resettable is satisfied by backends that support a bulk clear:
// redisqueue.Queue, s3store.Store. memqueue.Queue and memstore.Store do
// not implement it — an in-memory backend is already empty the moment
// the next process starts, so there is nothing to reset.
type resettable interface {
	Reset(ctx context.Context) error
}

// ResetCommand clears the configured store/queue backends, mirroring
// brrr_demo.py's reset command (delete_table + flushall).
func ResetCommand(_ *brrr.Brrr) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Clear the configured backends",
		Flags: SharedFlags(),
		Action: func(ctx *cli.Context) error {
			backends, err := LoadBackends(ctx, "reset-"+uuid.NewString())
			if err != nil {
				return err
			}
			defer backends.Queue.Close()

			if err := resetQueue(ctx.Context, backends.Queue); err != nil {
				return fmt.Errorf("cmd: reset queue: %w", err)
			}
			if err := resetStore(ctx.Context, backends.Store); err != nil {
				return fmt.Errorf("cmd: reset store: %w", err)
			}
			fmt.Println("reset complete")
			return nil
		},
	}
}

func resetQueue(ctx context.Context, q queue.Queue) error {
	r, ok := q.(resettable)
	if !ok {
		return nil
	}
	return r.Reset(ctx)
}

func resetStore(ctx context.Context, s store.Store) error {
	r, ok := s.(resettable)
	if !ok {
		return nil
	}
	return r.Reset(ctx)
}
