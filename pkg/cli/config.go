package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

const redacted = "********"

var configCmd = &cli.Command{
	Name:            "config",
	HideHelpCommand: true,
	Usage:           "Print the effective configuration",
	Action:          cmdConfig,
}

func cmdConfig(_ context.Context, cmd *cli.Command) error {
	c := *getConfig(cmd).Config
	if c.Storage.DSN != "" {
		c.Storage.DSN = redacted
	}
	return encode(cmd, c)
}
