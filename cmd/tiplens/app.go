package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tiplens/internal/annotate"
	"tiplens/internal/catalog"
	"tiplens/internal/engine"
	"tiplens/internal/logging"
	"tiplens/internal/message"
	"tiplens/internal/settings"
)

const (
	envSettings  = settings.EnvPath
	envExtractor = "TIPLENS_EXTRACTOR"
)

// app holds what every subcommand needs, resolved from the global flags.
type app struct {
	logger       *slog.Logger
	catalog      *catalog.Catalog
	store        *settings.FileStore
	settingsPath string
	messages     *message.Store
	quiet        bool
}

func newApp(cmd *cobra.Command) (*app, error) {
	flags := cmd.Root().PersistentFlags()

	levelFlag, err := flags.GetString("log-level")
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(levelFlag)
	if err != nil {
		return nil, err
	}
	quiet, err := flags.GetBool("quiet")
	if err != nil {
		return nil, err
	}
	if quiet && level < slog.LevelError {
		level = slog.LevelError
	}
	logger := logging.New(cmd.ErrOrStderr(), level)

	colorFlag, err := flags.GetString("color")
	if err != nil {
		return nil, err
	}
	colorMode, err := readMode("color", colorFlag)
	if err != nil {
		return nil, err
	}
	color.NoColor = !colorMode.resolve(os.Stdout)

	cat := catalog.Default()
	if path, _ := flags.GetString("catalog"); path != "" {
		if cat, err = catalog.Load(path); err != nil {
			return nil, err
		}
	}

	settingsPath, _ := flags.GetString("settings")
	if settingsPath == "" {
		if settingsPath, err = settings.DefaultPath(); err != nil {
			return nil, fmt.Errorf("locate settings: %w", err)
		}
	}

	opts := []message.Option{message.WithLogger(logging.Component(logger, "message"))}
	if cache, err := message.OpenDiskCache("tiplens"); err != nil {
		logger.Debug("template cache disabled", "err", err)
	} else {
		opts = append(opts, message.WithDiskCache(cache))
	}
	messages := message.Builtin(opts...)
	if dir, _ := flags.GetString("templates"); dir != "" {
		messages = message.OpenDir(dir, opts...)
	}

	return &app{
		logger:       logger,
		catalog:      cat,
		store:        settings.NewFileStore(settingsPath),
		settingsPath: settingsPath,
		messages:     messages,
		quiet:        quiet,
	}, nil
}

// newEngine builds an engine around extractor. publisher and prompter may
// be nil.
func (a *app) newEngine(extractor annotate.Extractor, publisher annotate.Publisher, prompter engine.Prompter) (*engine.Engine, error) {
	if extractor == nil {
		extractor = annotate.ExtractorFunc(noOccurrences)
	}
	return engine.New(engine.Options{
		Catalog:   a.catalog,
		Settings:  a.store,
		Extractor: extractor,
		Publisher: publisher,
		Messages:  a.messages,
		Prompter:  prompter,
		Logger:    a.logger,
	})
}
