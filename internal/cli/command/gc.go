package command

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sfsb-go/internal/cli/output"
	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/service"
)

// GCCommand returns the gc command.
func GCCommand() *cli.Command {
	return &cli.Command{
		Name:  "gc",
		Usage: "Remove expired and corrupt sessions",
		Flags: []cli.Flag{
			maxAgeFlag(),
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Report what would be removed without removing it",
			},
		},
		Action: gcAction,
	}
}

type gcResult struct {
	DryRun  bool     `json:"dry_run" yaml:"dry_run"`
	Stored  int      `json:"stored" yaml:"stored"`
	Expired int      `json:"expired" yaml:"expired"`
	Corrupt int      `json:"corrupt" yaml:"corrupt"`
	Failed  int      `json:"failed" yaml:"failed"`
	Removed []string `json:"removed" yaml:"removed"`
}

func (r *gcResult) Table() *output.Table {
	t := output.NewTable("KEY", "VALUE")
	t.AddRow("dry_run", strconv.FormatBool(r.DryRun))
	t.AddRow("stored", strconv.Itoa(r.Stored))
	t.AddRow("expired", strconv.Itoa(r.Expired))
	t.AddRow("corrupt", strconv.Itoa(r.Corrupt))
	t.AddRow("failed", strconv.Itoa(r.Failed))
	for _, id := range r.Removed {
		t.AddRow("removed", id)
	}
	return t
}

func gcAction(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	maxAge := c.Duration("max-age")
	if c.Bool("dry-run") {
		return render(c, ws.plan(maxAge))
	}

	// An empty registry makes every stored entry a collection candidate.
	var removed []string
	s := service.NewSessions(ws.store, ws.codec, bean.NewTypes())
	gc := service.NewGarbageCollector(s, service.GCConfig{
		MaximumAge:  maxAge,
		Probability: 1,
		Destroyer: service.DestroyerFunc(func(_ context.Context, id string) error {
			removed = append(removed, id)
			return nil
		}),
		Clock:  ws.clock,
		Logger: ws.logger,
	})
	st := gc.Collect(c.Context)
	slices.Sort(removed)

	result := &gcResult{
		Stored:  st.Stored,
		Expired: st.Expired,
		Corrupt: st.Corrupt,
		Failed:  st.Failed,
		Removed: removed,
	}
	if result.Removed == nil {
		result.Removed = []string{}
	}
	if err := render(c, result); err != nil {
		return err
	}
	if st.Failed > 0 {
		return fmt.Errorf("%d sessions could not be removed", st.Failed)
	}
	return nil
}

// plan reports what a collection pass would remove.
func (ws *workspace) plan(maxAge time.Duration) *gcResult {
	now := ws.clock.Now()
	result := &gcResult{DryRun: true, Removed: []string{}}
	for ent, err := range ws.store.Entries() {
		if err != nil {
			continue
		}
		result.Stored++
		switch ws.inspect(ent, maxAge, now).State {
		case StateExpired:
			result.Expired++
			result.Removed = append(result.Removed, ent.ID)
		case StateCorrupt:
			result.Corrupt++
			result.Removed = append(result.Removed, ent.ID)
		case StateUnreadable:
			result.Failed++
		}
	}
	slices.Sort(result.Removed)
	return result
}
