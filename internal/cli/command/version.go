package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/sfsb-go/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			info := buildinfo.Get()
			return render(c, map[string]any{
				"version":    info.Version,
				"commit":     info.Commit,
				"build_time": info.BuildTime,
				"go_version": info.GoVersion,
				"modified":   info.Modified,
			})
		},
	}
}
