package command

import (
	"slices"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sfsb-go/internal/cli/output"
)

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List stored sessions",
		Flags: []cli.Flag{
			maxAgeFlag(),
			&cli.StringFlag{
				Name:  "state",
				Usage: "Only show entries in this state: ok, expired, corrupt, unreadable",
			},
		},
		Action: listAction,
	}
}

type listResult []inspection

func (r listResult) Table() *output.Table {
	t := output.NewTable("ID", "STATE", "SIZE", "MODIFIED", "CREATED", "EXPIRES", "COMPRESSION", "ENCRYPTED")
	for _, in := range r {
		t.AddRow(in.ID, in.State, strconv.FormatInt(in.Size, 10),
			output.Cell(in.Modified), output.Cell(in.CreatedAt), output.Cell(in.ExpiresAt),
			output.Cell(in.Compression), strconv.FormatBool(in.Encrypted))
	}
	return t
}

func listAction(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	maxAge := c.Duration("max-age")
	state := c.String("state")
	now := ws.clock.Now()

	result := listResult{}
	for ent, err := range ws.store.Entries() {
		if err != nil {
			ws.logger.Warn("failed to list entry", "session_id", ent.ID, "error", err)
			continue
		}
		in := ws.inspect(ent, maxAge, now)
		if state != "" && in.State != state {
			continue
		}
		result = append(result, in)
	}
	slices.SortFunc(result, func(a, b inspection) int { return strings.Compare(a.ID, b.ID) })
	return render(c, result)
}
