package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"sfcls/internal/checker"
	"sfcls/internal/diag"
	"sfcls/internal/diagfmt"
	"sfcls/internal/diskcache"
	"sfcls/internal/observ"
	"sfcls/internal/project"
	"sfcls/internal/source"
	"sfcls/internal/ui"
)

var (
	checkJobs    int
	checkNoCache bool
	checkFormat  string
)

var checkCmd = &cobra.Command{
	Use:          "check [dir]",
	Short:        "Run diagnostics over every component file in a directory",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runCheck,
}

func init() {
	checkCmd.Flags().IntVar(&checkJobs, "jobs", 0, "parallel workers (0 uses all CPUs)")
	checkCmd.Flags().BoolVar(&checkNoCache, "no-cache", false, "ignore and do not update the result cache")
	checkCmd.Flags().StringVar(&checkFormat, "format", "pretty", "output format (pretty|json)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	switch checkFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("unknown format: %s", checkFormat)
	}

	cfg, err := project.LoadConfigFor(dir)
	if err != nil {
		return err
	}

	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}
	if maxDiagnostics <= 0 {
		maxDiagnostics = cfg.Diagnostics.Max
	}
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	timings, _ := cmd.Root().PersistentFlags().GetBool("timings")

	jobs := checkJobs
	if jobs <= 0 {
		jobs = cfg.Check.Jobs
	}

	var cache *diskcache.Cache
	if cfg.Check.Cache && !checkNoCache {
		cache, err = diskcache.Open("sfcls")
		if err != nil {
			fmt.Fprintf(os.Stderr, "cache disabled: %v\n", err)
		}
	}

	var tm *observ.Timer
	if timings {
		tm = observ.NewTimer()
	}

	opts := checker.Options{
		Jobs:           jobs,
		MaxDiagnostics: maxDiagnostics,
		Cache:          cache,
		Config:         cfg,
		Timer:          tm,
	}

	var (
		docs    *source.DocSet
		results []checker.FileResult
	)
	run := func() error {
		ctx := cmd.Context()
		if checkFormat == "pretty" && !quiet && isTerminal(os.Stdout) {
			docs, results, err = checkWithUI(cmd, dir, opts)
		} else {
			docs, results, err = checker.CheckDir(ctx, dir, opts)
		}
		return err
	}
	elapsed := observ.Measure(func() { err = run() })
	if err != nil {
		return err
	}

	bag := diag.NewBag(maxDiagnostics)
	cached := 0
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", res.Path, res.Err)
			continue
		}
		if res.FromCache {
			cached++
		}
		for _, d := range res.Diags {
			bag.Add(d)
		}
	}
	bag.Sort()

	switch checkFormat {
	case "json":
		if err := diagfmt.JSON(os.Stdout, bag, docs, diagfmt.JSONOpts{
			IncludePositions: true,
			IncludeNotes:     true,
			IncludeFixes:     true,
		}); err != nil {
			return err
		}
	default:
		diagfmt.Pretty(os.Stdout, bag, docs, diagfmt.PrettyOpts{
			Color:     useColor(cmd, os.Stdout),
			Context:   2,
			ShowNotes: true,
			ShowFixes: true,
		})
	}

	if timings && !quiet {
		fmt.Fprint(os.Stderr, tm.Summary())
		fmt.Fprintf(os.Stderr, "checked %d files in %.1f ms (%d from cache)\n", len(results), elapsed, cached)
	}
	if failed > 0 {
		return fmt.Errorf("%d files failed to check", failed)
	}
	if bag.HasErrors() {
		return fmt.Errorf("found errors in %d diagnostics", bag.Len())
	}
	return nil
}

// checkWithUI runs the directory check behind a progress display. The model
// exits when the event channel closes.
func checkWithUI(cmd *cobra.Command, dir string, opts checker.Options) (*source.DocSet, []checker.FileResult, error) {
	files, err := checker.ListFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return source.NewDocSet(), nil, nil
	}

	type outcome struct {
		docs    *source.DocSet
		results []checker.FileResult
		err     error
	}
	events := make(chan checker.Event, len(files))
	outcomeCh := make(chan outcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Progress = func(ev checker.Event) { events <- ev }
		docs, results, err := checker.CheckDir(cmd.Context(), dir, optsCopy)
		close(events)
		outcomeCh <- outcome{docs: docs, results: results, err: err}
	}()

	model := ui.NewProgressModel("checking "+dir, files, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	out := <-outcomeCh
	if uiErr != nil {
		return out.docs, out.results, uiErr
	}
	return out.docs, out.results, out.err
}
