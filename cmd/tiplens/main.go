package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tiplens/internal/prof"
	"tiplens/internal/version"
)

// profiling is the session started for the running command.
var profiling *prof.Session

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tiplens",
		Short:         "Contextual TypeScript tips for editors and terminals",
		Long:          `tiplens shows short explanations of the TypeScript features found in your code and hides them once you have learned them`,
		Version:       version.Version,
		SilenceErrors: true,
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		session, err := startProfiling(cmd)
		if err != nil {
			return err
		}
		profiling = session
		return nil
	}

	root.AddCommand(newLSPCmd())
	root.AddCommand(newAnnotateCmd())
	root.AddCommand(newExplainCmd())
	root.AddCommand(newMessageCmd())
	root.AddCommand(newDismissCmd())
	root.AddCommand(newTipsCmd())
	root.AddCommand(newSetupCmd())
	root.AddCommand(newVersionCmd())

	flags := root.PersistentFlags()
	flags.String("settings", "", "settings file (default $"+envSettings+" or the user config dir)")
	flags.String("catalog", "", "tip catalog TOML file (default: built-in)")
	flags.String("templates", "", "directory of message templates (default: built-in)")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("log-level", "warn", "log level (debug|info|warn|error)")
	flags.Bool("quiet", false, "suppress non-essential output")
	flags.String("cpu-profile", "", "write a CPU profile to this file")
	flags.String("mem-profile", "", "write a heap profile to this file on exit")
	flags.String("runtime-trace", "", "write a runtime trace to this file")
	return root
}

// main executes the root command and exits with status 1 on error.
func main() {
	root := newRootCmd()
	err := root.Execute()
	if stopErr := profiling.Stop(); stopErr != nil {
		root.PrintErrln("error: write profiles:", stopErr)
	}
	if err != nil {
		root.PrintErrln("error:", err)
		os.Exit(1)
	}
}

func startProfiling(cmd *cobra.Command) (*prof.Session, error) {
	flags := cmd.Root().PersistentFlags()
	var opts prof.Options
	var err error
	if opts.CPU, err = flags.GetString("cpu-profile"); err != nil {
		return nil, err
	}
	if opts.Mem, err = flags.GetString("mem-profile"); err != nil {
		return nil, err
	}
	if opts.Trace, err = flags.GetString("runtime-trace"); err != nil {
		return nil, err
	}
	session, err := prof.Start(opts)
	if err != nil {
		return nil, fmt.Errorf("start profiling: %w", err)
	}
	return session, nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func terminalWidth(f *os.File, fallback int) int {
	if !isTerminal(f) {
		return fallback
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
