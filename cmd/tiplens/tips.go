package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tiplens/internal/engine"
)

type tipState string

const (
	stateVisible   tipState = "visible"
	stateDismissed tipState = "dismissed"
	stateHidden    tipState = "hidden"
	stateLocked    tipState = "locked"
)

type tipRow struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Difficulty string   `json:"difficulty"`
	Deps       []string `json:"deps,omitempty"`
	State      tipState `json:"state"`
}

func newTipsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:          "tips",
		Short:        "List the catalog with each tip's state",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			if format != "text" && format != "json" {
				return fmt.Errorf("unsupported format %q (must be text or json)", format)
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			eng, err := a.newEngine(nil, nil, nil)
			if err != nil {
				return err
			}
			rows := tipRows(eng)
			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			renderTipsText(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format (text|json)")
	return cmd
}

// tipRows classifies every catalog tip. Dismissal wins over the other
// states; a tip whose prerequisites are still shown is locked.
func tipRows(eng *engine.Engine) []tipRow {
	cat := eng.Catalog()
	pol := eng.Policy()
	resolver := eng.Resolver()
	dismissed := pol.Dismissed()

	rows := make([]tipRow, 0, cat.Len())
	for _, id := range cat.IDs() {
		meta := cat.MetaByID(id)
		row := tipRow{ID: id, Name: meta.Name, Difficulty: string(meta.Difficulty), Deps: meta.Deps}
		switch {
		case slices.Contains(dismissed, id):
			row.State = stateDismissed
		case pol.IsSuppressed(id):
			row.State = stateHidden
		case !resolver.IsEligible(id):
			row.State = stateLocked
		default:
			row.State = stateVisible
		}
		rows = append(rows, row)
	}
	return rows
}

// renderTipsText keeps the coloured STATE column last: tabwriter counts
// escape bytes as width.
func renderTipsText(out io.Writer, rows []tipRow) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIP\tDIFFICULTY\tREQUIRES\tSTATE")
	for _, row := range rows {
		requires := strings.Join(row.Deps, ", ")
		if requires == "" {
			requires = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.ID, row.Difficulty, requires, stateColor(row.State).Sprint(row.State))
	}
	tw.Flush()
}

func stateColor(s tipState) *color.Color {
	switch s {
	case stateVisible:
		return color.New(color.FgGreen)
	case stateLocked:
		return color.New(color.FgYellow)
	default:
		return color.New(color.Faint)
	}
}
