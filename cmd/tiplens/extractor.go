package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tiplens/internal/annotate"
	"tiplens/internal/extract"
)

func noOccurrences(context.Context, string) ([]annotate.Occurrence, error) {
	return nil, nil
}

type extractorFlags struct {
	command     string
	occurrences string
	timeout     time.Duration
}

func (f *extractorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.command, "extractor", os.Getenv(envExtractor), "detector command; reads text on stdin, prints JSON occurrences (default $"+envExtractor+")")
	cmd.Flags().StringVar(&f.occurrences, "occurrences", "", "JSON occurrence file used for every document instead of a detector")
	cmd.Flags().DurationVar(&f.timeout, "extractor-timeout", extract.DefaultTimeout, "time limit for one detector run")
}

// resolve returns the configured extractor. required controls whether
// having none is an error.
func (f *extractorFlags) resolve(required bool) (annotate.Extractor, error) {
	switch {
	case f.occurrences != "":
		return extract.ReadFile(f.occurrences)
	case f.command != "":
		c, err := extract.ParseCommand(f.command)
		if err != nil {
			return nil, err
		}
		c.Timeout = f.timeout
		return c, nil
	case required:
		return nil, errors.New("no extractor configured: pass --extractor or --occurrences")
	default:
		return nil, nil
	}
}
