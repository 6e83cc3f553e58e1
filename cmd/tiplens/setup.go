package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"tiplens/internal/engine"
	"tiplens/internal/ui"
)

func newSetupCmd() *cobra.Command {
	var beginner bool
	cmd := &cobra.Command{
		Use:          "setup",
		Short:        "Answer the first-run question",
		Long:         "setup records whether you are new to TypeScript. Answering no hides the basic tips.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			eng, err := a.newEngine(nil, nil, nil)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("beginner") {
				if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
					return errors.New("setup needs a terminal; pass --beginner=true or --beginner=false")
				}
				var answered bool
				beginner, answered, err = askInteractively()
				if err != nil {
					return err
				}
				if !answered {
					if !a.quiet {
						fmt.Fprintln(cmd.OutOrStdout(), "no answer recorded; you will be asked again")
					}
					return nil
				}
			}

			if err := eng.Policy().AnswerBeginner(beginner); err != nil {
				return err
			}
			if !a.quiet {
				if beginner {
					fmt.Fprintln(cmd.OutOrStdout(), "basic tips will be shown")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "basic tips will be hidden")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&beginner, "beginner", true, "answer without prompting")
	return cmd
}

func askInteractively() (beginner, answered bool, err error) {
	prompt := ui.NewBeginnerPrompt(engine.BeginnerQuestion)
	if _, err := tea.NewProgram(prompt).Run(); err != nil {
		return false, false, err
	}
	beginner, answered = prompt.Result()
	return beginner, answered, nil
}
