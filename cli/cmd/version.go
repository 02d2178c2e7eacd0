package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// VersionCommand prints the CLI's version and build commit.
func VersionCommand(version, commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx *cli.Context) error {
			fmt.Printf("brrr %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
