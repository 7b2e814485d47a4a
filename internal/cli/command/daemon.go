package command

import (
	"context"
	"encoding/json"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sfsb-go/internal/server/localserver"
)

// DaemonCommand returns the daemon command, which controls a running
// sfsbd through its local socket.
func DaemonCommand() *cli.Command {
	socket := &cli.StringFlag{
		Name:     "socket",
		Aliases:  []string{"s"},
		Usage:    "Path of the sfsbd local socket",
		EnvVars:  []string{"SFSB_SOCKET"},
		Required: true,
	}
	timeout := &cli.DurationFlag{
		Name:  "timeout",
		Usage: "How long to wait for a reply",
		Value: 30 * time.Second,
	}
	sub := func(name, usage, args string) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			ArgsUsage: args,
			Action: func(c *cli.Context) error {
				return callDaemon(c, name, c.Args().Slice()...)
			},
		}
	}
	return &cli.Command{
		Name:  "daemon",
		Usage: "Control a running sfsbd",
		Flags: []cli.Flag{socket, timeout},
		Subcommands: []*cli.Command{
			sub("status", "Show container statistics", ""),
			sub("gc", "Run a collection pass now", ""),
			sub("flush", "Write every changed session", ""),
			sub("level", "Show or change the log level", "[LEVEL]"),
			sub("shutdown", "Stop the daemon gracefully", ""),
		},
	}
}

func callDaemon(c *cli.Context, cmd string, args ...string) error {
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	reply, err := localserver.Call(ctx, c.String("socket"), cmd, args...)
	if err != nil {
		return err
	}
	var data map[string]any
	if len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, &data); err != nil {
			return err
		}
	}
	return render(c, data)
}
