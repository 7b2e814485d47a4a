package command

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/sfsb-go/internal/beans/cart"
	"github.com/yndnr/sfsb-go/internal/cli/output"
	"github.com/yndnr/sfsb-go/internal/core/bean"
	"github.com/yndnr/sfsb-go/internal/core/domain"
)

// VerifyCommand returns the verify command.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:   "verify",
		Usage:  "Fully decode every stored session and report failures",
		Action: verifyAction,
	}
}

// Verification outcomes beyond the entry states of list.
const (
	StateKeyError = "key-error"
)

type verifyRow struct {
	ID    string `json:"id" yaml:"id"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	State string `json:"state" yaml:"state"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

type verifyResult struct {
	Checked int         `json:"checked" yaml:"checked"`
	Failed  int         `json:"failed" yaml:"failed"`
	Entries []verifyRow `json:"entries" yaml:"entries"`
}

func (r *verifyResult) Table() *output.Table {
	t := output.NewTable("ID", "TYPE", "STATE", "ERROR")
	for _, row := range r.Entries {
		t.AddRow(row.ID, output.Cell(row.Type), row.State, output.Cell(row.Error))
	}
	return t
}

var errVerifyFailed = errors.New("verification failed")

// knownTypes are rebuilt as a deeper check; other tags are only decoded.
func knownTypes() *bean.Types {
	types := bean.NewTypes()
	cart.Register(types)
	return types
}

func verifyAction(c *cli.Context) error {
	ws, err := openWorkspace(c)
	if err != nil {
		return err
	}
	defer ws.Close()

	types := knownTypes()
	result := &verifyResult{Entries: []verifyRow{}}
	for ent, err := range ws.store.Entries() {
		if err != nil {
			ws.logger.Warn("failed to list entry", "session_id", ent.ID, "error", err)
			continue
		}
		row := ws.verify(ent.ID, types)
		result.Checked++
		if row.State != StateOK {
			result.Failed++
		}
		result.Entries = append(result.Entries, row)
	}
	slices.SortFunc(result.Entries, func(a, b verifyRow) int { return strings.Compare(a.ID, b.ID) })

	if err := render(c, result); err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%w: %d of %d sessions", errVerifyFailed, result.Failed, result.Checked)
	}
	return nil
}

func (ws *workspace) verify(id string, types *bean.Types) verifyRow {
	row := verifyRow{ID: id}
	blob, err := ws.store.Read(id)
	if err != nil {
		row.State, row.Error = StateUnreadable, err.Error()
		return row
	}
	w, err := ws.codec.Decode(blob)
	switch {
	case errors.Is(err, domain.ErrCipherRequired), errors.Is(err, domain.ErrCipherMismatch):
		row.State, row.Error = StateKeyError, err.Error()
		return row
	case err != nil:
		row.State, row.Error = StateCorrupt, err.Error()
		return row
	}
	row.Type = w.Type
	if w.ID != id {
		row.State, row.Error = StateCorrupt, fmt.Sprintf("entry holds session %s", w.ID)
		return row
	}
	if slices.Contains(types.Tags(), w.Type) {
		if _, err := bean.Reconstruct(types, w); err != nil {
			row.State, row.Error = StateCorrupt, err.Error()
			return row
		}
	}
	row.State = StateOK
	return row
}
