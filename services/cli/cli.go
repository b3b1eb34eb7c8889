// Package cli implements the flowctl command set: local suite runs
// against the in-process sandbox, directory watching, evidence bundles,
// and suite scaffolding.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"flowcheck/pkg/render"
	"flowcheck/services/runner"
	"flowcheck/services/sandbox"
	"flowcheck/services/suites"
)

// ErrRunFailed is returned by flowctl run when any suite finishes FAIL,
// so the process exits non-zero.
var ErrRunFailed = errors.New("one or more runs failed")

// NewRootCommand assembles the flowctl command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "flowctl",
		Short:         "Run and inspect workflow test suites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newWatchCommand())
	cmd.AddCommand(newBundleCommand())
	cmd.AddCommand(newKeygenCommand())
	cmd.AddCommand(newSuitesCommand())
	return cmd
}

func newRunCommand() *cobra.Command {
	var (
		suitePath  string
		outPath    string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate a suite file or directory against the sandbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			loaded, err := loadSuites(suitePath)
			if err != nil {
				return err
			}
			return runSuites(ctx, loaded, outPath, jsonOutput, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&suitePath, "suite", "", "Suite file or directory of suite files")
	cmd.Flags().StringVar(&outPath, "out", "", "Write JUnit report(s); a file path for one suite, a directory otherwise")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print run results as JSON")
	_ = cmd.MarkFlagRequired("suite")
	return cmd
}

func newWatchCommand() *cobra.Command {
	var (
		suiteDir string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run every suite in a directory when its content changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()

			watcher := suites.NewWatcher(nil, suiteDir, interval, func(snapshot suites.Snapshot) {
				fmt.Fprintf(out, "suites changed (version %s, %d files)\n", snapshot.Version, len(snapshot.Files))
				loaded, err := suites.LoadDir(suiteDir)
				if err != nil {
					fmt.Fprintf(out, "load suites: %v\n", err)
					return
				}
				if err := runSuites(ctx, loaded, "", false, out); err != nil && !errors.Is(err, ErrRunFailed) {
					fmt.Fprintf(out, "run suites: %v\n", err)
				}
			})

			err := watcher.Start(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&suiteDir, "suite-dir", "", "Directory of suite files to watch")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Poll interval")
	_ = cmd.MarkFlagRequired("suite-dir")
	return cmd
}

func loadSuites(path string) ([]*suites.Suite, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat suite path: %w", err)
	}
	if info.IsDir() {
		return suites.LoadDir(path)
	}
	suite, err := suites.Load(path)
	if err != nil {
		return nil, err
	}
	return []*suites.Suite{suite}, nil
}

// runSuites drives every suite through the lifecycle locally and prints a
// summary per suite. Returns ErrRunFailed if any verdict is FAIL.
func runSuites(ctx context.Context, loaded []*suites.Suite, outPath string, jsonOutput bool, out io.Writer) error {
	sink, err := sinkFor(outPath, len(loaded))
	if err != nil {
		return err
	}

	lifecycle, err := runner.NewLifecycle(runner.LifecycleConfig{
		Executor: sandbox.New(),
		Sink:     sink,
	})
	if err != nil {
		return err
	}

	engine, err := render.New()
	if err != nil {
		return err
	}

	failed := false
	for _, suite := range loaded {
		run := lifecycle.Run(ctx, runner.Job{
			Contract:   suite.Contract,
			Fixture:    suite.Fixtures[0],
			Assertions: suite.Assertions,
		})
		if run.Status == runner.StatusFail {
			failed = true
		}

		if jsonOutput {
			data, err := json.MarshalIndent(run, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			continue
		}

		summary, err := engine.Render("run_summary.tmpl", summaryData(suite, run))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, strings.TrimRight(summary, "\n"))
	}

	if failed {
		return ErrRunFailed
	}
	return nil
}

// sinkFor picks where reports go: nothing, an exact file path for a
// single suite, or a directory of <run id>.xml files.
func sinkFor(outPath string, suiteCount int) (runner.ReportSink, error) {
	if outPath == "" {
		return nil, nil
	}
	if info, err := os.Stat(outPath); err == nil && info.IsDir() {
		return runner.FileSink{Dir: outPath}, nil
	}
	if suiteCount == 1 {
		return fixedPathSink{path: outPath}, nil
	}
	return runner.FileSink{Dir: outPath}, nil
}

// fixedPathSink writes a single run's report to an exact file path.
type fixedPathSink struct {
	path string
}

func (s fixedPathSink) Store(ctx context.Context, runID uuid.UUID, report []byte) (string, error) {
	return s.path, os.WriteFile(s.path, report, 0o644)
}

func summaryData(suite *suites.Suite, run *runner.Run) map[string]any {
	passed := 0
	for _, result := range run.Results {
		if result.Passed {
			passed++
		}
	}
	return map[string]any{
		"Suite":      suite.Name,
		"Status":     string(run.Status),
		"Passed":     passed,
		"Total":      len(run.Results),
		"Results":    run.Results,
		"ReportPath": run.ReportKey,
	}
}
