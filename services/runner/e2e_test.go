package runner_test

import (
	"context"
	"encoding/xml"
	"io"
	"log"
	"os"
	"testing"

	"flowcheck/infra/seed"
	"flowcheck/pkg/junit"
	"flowcheck/services/runner"
	"flowcheck/services/sandbox"
)

// Drives the embedded example suite through the sandbox executor and the
// full lifecycle, ending with a parseable report on disk.
func TestUppercaseEchoEndToEnd(t *testing.T) {
	suite, err := seed.Suite()
	if err != nil {
		t.Fatalf("load seed suite: %v", err)
	}

	sb := sandbox.New()
	lifecycle, err := runner.NewLifecycle(runner.LifecycleConfig{
		Executor: sb,
		Sink:     runner.FileSink{Dir: t.TempDir()},
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("NewLifecycle() error = %v", err)
	}

	run := lifecycle.Run(context.Background(), runner.Job{
		Contract:   suite.Contract,
		Fixture:    suite.Fixtures[0],
		Assertions: suite.Assertions,
	})

	if run.Status != runner.StatusPass {
		t.Fatalf("status = %s, want PASS (results: %+v, note: %s)", run.Status, run.Results, run.Note)
	}
	if len(run.Results) != 3 {
		t.Fatalf("results = %d, want 3", len(run.Results))
	}
	if sb.Active() != 0 {
		t.Fatalf("sandbox still holds %d instances after run", sb.Active())
	}

	data, err := os.ReadFile(run.ReportKey)
	if err != nil {
		t.Fatalf("read report %s: %v", run.ReportKey, err)
	}
	var report junit.Testsuite
	if err := xml.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Tests != 3 || report.Failures != 0 {
		t.Fatalf("report tests/failures = %d/%d, want 3/0", report.Tests, report.Failures)
	}
}
