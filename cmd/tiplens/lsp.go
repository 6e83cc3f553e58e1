package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tiplens/internal/annotate"
	"tiplens/internal/engine"
	"tiplens/internal/lsp"
	"tiplens/internal/settings"
	"tiplens/internal/version"
)

func newLSPCmd() *cobra.Command {
	var (
		ext      extractorFlags
		debounce time.Duration
		watch    bool
	)
	cmd := &cobra.Command{
		Use:          "lsp",
		Short:        "Run the tiplens language server over stdio",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			extractor, err := ext.resolve(false)
			if err != nil {
				return err
			}
			if extractor == nil {
				a.logger.Warn("no extractor configured; documents will have no tips")
				extractor = annotate.ExtractorFunc(noOccurrences)
			}
			opts := lsp.ServerOptions{
				Engine: engine.Options{
					Catalog:   a.catalog,
					Settings:  a.store,
					Extractor: extractor,
					Messages:  a.messages,
					Logger:    a.logger,
				},
				Debounce: debounce,
				Version:  version.Version,
				Logger:   a.logger,
			}
			if watch {
				opts.Watcher = settings.NewWatcher(a.settingsPath, 0)
			}
			server, err := lsp.NewServer(os.Stdin, os.Stdout, opts)
			if err != nil {
				return err
			}
			if err := server.Run(cmd.Context()); err != nil {
				if errors.Is(err, lsp.ErrExit) {
					return nil
				}
				if errors.Is(err, lsp.ErrExitWithoutShutdown) {
					return fmt.Errorf("lsp exit without shutdown")
				}
				return err
			}
			return nil
		},
	}
	ext.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "delay before re-annotating an edited document")
	cmd.Flags().BoolVar(&watch, "watch-settings", true, "reload when the settings file changes on disk")
	return cmd
}
