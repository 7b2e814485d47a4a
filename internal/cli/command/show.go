package command

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sfsb-go/internal/cli/output"
	"github.com/yndnr/sfsb-go/internal/storage"
)

// ShowCommand returns the show command.
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Decode one stored session",
		ArgsUsage: "SESSION_ID",
		Action:    showAction,
	}
}

type showResult struct {
	ID        string         `json:"id" yaml:"id"`
	Type      string         `json:"type" yaml:"type"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	ExpiresAt time.Time      `json:"expires_at" yaml:"expires_at"`
	Fields    map[string]any `json:"fields" yaml:"fields"`
}

func (r *showResult) Table() *output.Table {
	t := output.NewTable("KEY", "VALUE")
	t.AddRow("id", r.ID)
	t.AddRow("type", r.Type)
	t.AddRow("created_at", output.Cell(r.CreatedAt))
	t.AddRow("expires_at", output.Cell(r.ExpiresAt))
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		t.AddRow("field."+name, output.Cell(r.Fields[name]))
	}
	return t
}

func showAction(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("session ID is required")
	}
	if err := storage.ValidateID(id); err != nil {
		return err
	}

	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	blob, err := ws.store.Read(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("session %s not found", id)
		}
		return err
	}
	w, err := ws.codec.Decode(blob)
	if err != nil {
		return fmt.Errorf("decode session %s: %w", id, err)
	}
	return render(c, &showResult{
		ID:        w.ID,
		Type:      w.Type,
		CreatedAt: w.CreatedAt,
		ExpiresAt: w.ExpiresAt,
		Fields:    w.Decoded(),
	})
}
