package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/cohelm/brrr"
	"github.com/cohelm/brrr/httpapi"
)

// AddrFlag selects the server command's listen address.
var AddrFlag = &cli.StringFlag{
	Name:  "addr",
	Usage: "Address the HTTP demo front-end listens on",
	Value: "localhost:8080",
}

// ServerCommand starts the httpapi HTTP demo front-end over b, mirroring
// brrr_demo.py's server command (aiohttp routes, no worker loop of its
// own — schedule/read only).
func ServerCommand(b *brrr.Brrr) *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Start the HTTP demo front-end",
		Flags: append(SharedFlags(), AddrFlag),
		Action: func(ctx *cli.Context) error {
			workerID := "server-" + uuid.NewString()
			backends, err := LoadBackends(ctx, workerID)
			if err != nil {
				return err
			}
			defer backends.Close(context.Background())

			b.Setup(backends.Queue, backends.Store,
				brrr.WithLogger(backends.Logger),
				brrr.WithAudit(backends.Recorder),
			)
			if backends.Recorder != nil {
				backends.Recorder.Start(ctx.Context)
			}

			addr := ctx.String(AddrFlag.Name)
			handler := httpapi.New(b).WithLogger(backends.Logger)
			srv := &http.Server{Addr: addr, Handler: handler}

			go func() {
				<-ctx.Context.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			fmt.Printf("Listening on http://%s\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
}
