package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "message <code> [items...]",
		Short:        "Render a message template",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := strconv.Atoi(args[0])
			if err != nil || code <= 0 {
				return fmt.Errorf("invalid template code %q", args[0])
			}
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			msg := a.messages.Render(code, args[1:])
			if msg == nil {
				return fmt.Errorf("template %d is unavailable", code)
			}
			out := cmd.OutOrStdout()
			if msg.Excerpt != "" {
				fmt.Fprintln(out, color.New(color.Bold).Sprint(msg.Excerpt))
			}
			if body := strings.TrimSpace(msg.Body); body != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, body)
			}
			return nil
		},
	}
}
