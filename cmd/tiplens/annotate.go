package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tiplens/internal/annotate"
	"tiplens/internal/catalog"
	"tiplens/internal/engine"
	"tiplens/internal/observ"
	"tiplens/internal/ui"
)

type fileResult struct {
	path  string
	items []annotate.Annotation
	err   error
}

type jsonTip struct {
	File   string `json:"file"`
	Tip    string `json:"tip"`
	Name   string `json:"name"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func newAnnotateCmd() *cobra.Command {
	var (
		ext     extractorFlags
		jobs    int
		uiFlag  string
		format  string
		timings bool
	)
	cmd := &cobra.Command{
		Use:          "annotate <files...>",
		Short:        "Print the tips visible in files",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, files []string) error {
			files = uniquePaths(files)
			progressMode, err := readMode("ui", uiFlag)
			if err != nil {
				return err
			}
			format = strings.ToLower(format)
			if format != "text" && format != "json" {
				return fmt.Errorf("unsupported format %q (must be text or json)", format)
			}
			var timer *observ.Timer
			if timings {
				timer = observ.NewTimer()
				defer func() { fmt.Fprint(cmd.ErrOrStderr(), timer.Summary()) }()
			}

			endSetup := timer.Track("setup")
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			extractor, err := ext.resolve(true)
			if err != nil {
				return err
			}
			eng, err := a.newEngine(extractor, nil, nil)
			if err != nil {
				return err
			}
			endSetup(fmt.Sprintf("%d tips in catalog", a.catalog.Len()))

			var results []fileResult
			if format == "text" && shouldUseTUI(progressMode) {
				results, err = annotateWithUI(cmd.Context(), eng, files, jobs, timer)
				if err != nil {
					return err
				}
			} else {
				results = annotateFiles(cmd.Context(), eng, files, jobs, nil, timer)
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				if err := renderResultsJSON(out, a.catalog, results); err != nil {
					return err
				}
			} else {
				renderResultsText(out, a.catalog, results, a.quiet)
			}
			var errs []error
			for _, r := range results {
				if r.err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", r.path, r.err))
				}
			}
			return errors.Join(errs...)
		},
	}
	ext.register(cmd)
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "files annotated in parallel (default GOMAXPROCS)")
	cmd.Flags().StringVar(&uiFlag, "ui", "auto", "progress view (auto|on|off)")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text|json)")
	cmd.Flags().BoolVar(&timings, "timings", false, "print per-file timings to stderr")
	return cmd
}

// annotateFiles runs one pass per file. Read failures are recorded per
// file; the batch continues.
func annotateFiles(ctx context.Context, eng *engine.Engine, files []string, jobs int, events chan<- ui.Event, timer *observ.Timer) []fileResult {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	notify := func(ev ui.Event) {
		if events != nil {
			events <- ev
		}
	}
	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))
	for i, path := range files {
		g.Go(func() error {
			results[i].path = path
			end := timer.Track(path)
			defer func() { end(fmt.Sprintf("%d visible", len(results[i].items))) }()
			data, err := os.ReadFile(path)
			if err != nil {
				results[i].err = err
				notify(ui.Event{File: path, Status: ui.StatusError})
				return nil
			}
			notify(ui.Event{File: path, Status: ui.StatusExtracting})
			if err := gctx.Err(); err != nil {
				results[i].err = err
				notify(ui.Event{File: path, Status: ui.StatusError})
				return nil
			}
			results[i].items = eng.Annotate(gctx, path, string(data))
			notify(ui.Event{File: path, Status: ui.StatusDone, Visible: len(results[i].items)})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func annotateWithUI(ctx context.Context, eng *engine.Engine, files []string, jobs int, timer *observ.Timer) ([]fileResult, error) {
	events := make(chan ui.Event, 256)
	resultsCh := make(chan []fileResult, 1)
	go func() {
		resultsCh <- annotateFiles(ctx, eng, files, jobs, events, timer)
		close(events)
	}()
	program := tea.NewProgram(ui.NewProgressModel("annotating", files, events), tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	// The model stops reading once it quits; drain so workers can finish.
	go func() {
		for range events {
		}
	}()
	results := <-resultsCh
	return results, uiErr
}

func displayName(cat *catalog.Catalog, id string) string {
	if meta := cat.MetaByID(id); meta != nil {
		return meta.Name
	}
	return id
}

func renderResultsText(out io.Writer, cat *catalog.Catalog, results []fileResult, quiet bool) {
	pathColor := color.New(color.Bold)
	tipColor := color.New(color.FgCyan)
	nameColor := color.New(color.Faint)
	total, files := 0, 0
	for _, r := range results {
		if r.err != nil {
			continue
		}
		files++
		for _, item := range r.items {
			total++
			start := item.Loc.Start
			fmt.Fprintf(out, "%s:%d:%d: %s %s\n",
				pathColor.Sprint(r.path), start.Line, start.Column,
				tipColor.Sprint(item.Type), nameColor.Sprintf("(%s)", displayName(cat, item.Type)))
		}
	}
	if !quiet {
		fmt.Fprintf(out, "%d %s in %d %s\n", total, plural(total, "tip", "tips"), files, plural(files, "file", "files"))
	}
}

func renderResultsJSON(out io.Writer, cat *catalog.Catalog, results []fileResult) error {
	tips := []jsonTip{}
	for _, r := range results {
		for _, item := range r.items {
			tips = append(tips, jsonTip{
				File:   r.path,
				Tip:    item.Type,
				Name:   displayName(cat, item.Type),
				Line:   item.Loc.Start.Line,
				Column: item.Loc.Start.Column,
			})
		}
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(tips)
}

// uniquePaths drops repeated files, keeping first occurrences in order. Two
// passes over one document would let the later one supersede the earlier.
func uniquePaths(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, path := range files {
		key := filepath.Clean(path)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, path)
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
