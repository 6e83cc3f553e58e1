package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tiplens/internal/hover"
)

func newDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "dismiss <tip>",
		Short:        "Mark a tip as learned so it is no longer shown",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			if _, ok := a.catalog.Lookup(id); !ok {
				return fmt.Errorf("unknown tip %q", id)
			}
			eng, err := a.newEngine(nil, nil, nil)
			if err != nil {
				return err
			}
			if err := eng.ExecuteCommand(cmd.Context(), hover.CommandID(id)); err != nil {
				return err
			}
			if !a.quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "dismissed %s (%s)\n", id, a.store.Path())
			}
			return nil
		},
	}
}
