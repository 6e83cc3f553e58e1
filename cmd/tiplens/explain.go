package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tiplens/internal/annotate"
	"tiplens/internal/ui"
)

// parseLocation reads "line:col" with a 1-based line and 0-based column,
// the coordinates extractors report.
func parseLocation(s string) (annotate.Point, error) {
	lineStr, colStr, ok := strings.Cut(s, ":")
	if !ok {
		return annotate.Point{}, fmt.Errorf("invalid location %q (expected line:col)", s)
	}
	line, err := strconv.Atoi(lineStr)
	if err != nil || line < 1 {
		return annotate.Point{}, fmt.Errorf("invalid line in %q", s)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil || col < 0 {
		return annotate.Point{}, fmt.Errorf("invalid column in %q", s)
	}
	return annotate.RegionFromLocation(annotate.SourceLocation{
		Start: annotate.Position{Line: line, Column: col},
	}).Start, nil
}

func newExplainCmd() *cobra.Command {
	var (
		ext      extractorFlags
		markdown bool
	)
	cmd := &cobra.Command{
		Use:          "explain <file> <line:col>",
		Short:        "Show the tip cards at a position, as an editor hover would",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			pt, err := parseLocation(args[1])
			if err != nil {
				return err
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			extractor, err := ext.resolve(true)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			eng, err := a.newEngine(extractor, nil, nil)
			if err != nil {
				return err
			}
			eng.Annotate(cmd.Context(), path, string(data))

			out := cmd.OutOrStdout()
			content := eng.Hover(path, pt)
			if content.Empty() {
				if !a.quiet {
					fmt.Fprintf(out, "no tips at %s\n", args[1])
				}
				return nil
			}
			if markdown {
				fmt.Fprintln(out, content.Markdown())
				return nil
			}
			fmt.Fprintln(out, ui.RenderBlocks(content.Blocks, terminalWidth(os.Stdout, 80)))
			return nil
		},
	}
	ext.register(cmd)
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print the raw hover markdown")
	return cmd
}
