// Package runner owns the run lifecycle: it sequences a single test run
// through provisioning, execution, assertion, and report generation, and
// hosts the NATS worker that drives runs requested through the API.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"flowcheck/pkg/assert"
	"flowcheck/pkg/junit"
	"flowcheck/pkg/redact"
	"flowcheck/pkg/trace"
	"flowcheck/services/suites"
)

// Executor produces a trace from one fixture request against a
// provisioned execution target. Implementations may fail or panic; the
// lifecycle converts both into a FAIL verdict.
type Executor interface {
	Provision(ctx context.Context, contract suites.Contract) (Target, error)
	Execute(ctx context.Context, target Target, fixture suites.Fixture) (*trace.Trace, error)
}

// Target is a transient execution resource owned by exactly one run.
// Release is called exactly once on every exit path.
type Target interface {
	Release(ctx context.Context) error
}

// ReportSink stores a serialized report and returns a retrievable key.
type ReportSink interface {
	Store(ctx context.Context, runID uuid.UUID, report []byte) (string, error)
}

// Run is the mutable state of one execution-and-verification attempt. It
// is owned by the Lifecycle for the duration of the run and becomes
// immutable once a terminal status is reached.
type Run struct {
	ID         uuid.UUID       `json:"id"`
	ContractID uuid.UUID       `json:"contract_id"`
	Status     Status          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Results    []assert.Result `json:"results"`
	ReportKey  string          `json:"report_key,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// Job is everything the lifecycle needs to evaluate one run.
type Job struct {
	RunID      uuid.UUID
	Contract   suites.Contract
	Fixture    suites.Fixture
	Assertions []assert.Assertion
}

// LifecycleConfig wires the lifecycle's collaborators. Executor is
// required; everything else is optional.
type LifecycleConfig struct {
	Executor Executor
	Sink     ReportSink
	Logger   *log.Logger
	// OnTransition observes every status change, including entry into
	// QUEUED, so callers can persist or publish transitions as they
	// happen.
	OnTransition func(ctx context.Context, run *Run)
}

// Lifecycle evaluates runs. It is safe for concurrent use; each call to
// Run owns its own Run value.
type Lifecycle struct {
	exec   Executor
	sink   ReportSink
	logger *log.Logger
	hook   func(ctx context.Context, run *Run)
}

// NewLifecycle validates the configuration and returns a Lifecycle.
func NewLifecycle(cfg LifecycleConfig) (*Lifecycle, error) {
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Lifecycle{
		exec:   cfg.Executor,
		sink:   cfg.Sink,
		logger: cfg.Logger,
		hook:   cfg.OnTransition,
	}, nil
}

// Run drives one run to a terminal status. It never returns an error and
// never panics: every failure mode degrades to status FAIL with a
// redacted note.
func (l *Lifecycle) Run(ctx context.Context, job Job) *Run {
	run := &Run{
		ID:         job.RunID,
		ContractID: job.Contract.ID,
		Status:     StatusQueued,
		StartedAt:  time.Now().UTC(),
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	l.observe(ctx, run)

	l.transition(ctx, run, StatusProvisioning)
	target, err := l.provision(ctx, job.Contract)
	if err != nil {
		l.fail(ctx, run, fmt.Sprintf("provision: %v", err))
		return run
	}
	if target != nil {
		defer func() {
			if err := target.Release(ctx); err != nil {
				l.logger.Printf("WARN run %s: release target: %v", run.ID, redact.Mask(err.Error()))
			}
		}()
	}

	l.transition(ctx, run, StatusExecuting)
	tr, err := l.execute(ctx, target, job.Fixture)
	if err != nil {
		l.fail(ctx, run, fmt.Sprintf("execute: %v", err))
		return run
	}

	l.transition(ctx, run, StatusAsserting)
	run.Results = assert.EvaluateAll(job.Assertions, tr)

	l.report(ctx, run)

	if assert.AllPassed(run.Results) {
		l.transition(ctx, run, StatusPass)
	} else {
		l.transition(ctx, run, StatusFail)
	}
	return run
}

// provision calls the executor's Provision, converting panics to errors.
func (l *Lifecycle) provision(ctx context.Context, contract suites.Contract) (target Target, err error) {
	defer func() {
		if r := recover(); r != nil {
			target = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.exec.Provision(ctx, contract)
}

// execute calls the executor's Execute, converting panics to errors.
func (l *Lifecycle) execute(ctx context.Context, target Target, fixture suites.Fixture) (tr *trace.Trace, err error) {
	defer func() {
		if r := recover(); r != nil {
			tr = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return l.exec.Execute(ctx, target, fixture)
}

// report serializes the collected results and hands them to the sink.
// Sink failures keep the verdict; the run simply carries no report key.
func (l *Lifecycle) report(ctx context.Context, run *Run) {
	data, err := junit.Build(run.Results).Bytes()
	if err != nil {
		l.logger.Printf("ERROR run %s: build report: %v", run.ID, err)
		return
	}
	if l.sink == nil {
		return
	}
	key, err := l.sink.Store(ctx, run.ID, data)
	if err != nil {
		l.logger.Printf("ERROR run %s: store report: %v", run.ID, redact.Mask(err.Error()))
		return
	}
	run.ReportKey = key
}

func (l *Lifecycle) fail(ctx context.Context, run *Run, note string) {
	run.Note = redact.Mask(note)
	l.transition(ctx, run, StatusFail)
}

func (l *Lifecycle) transition(ctx context.Context, run *Run, to Status) {
	if !CanTransition(run.Status, to) {
		l.logger.Printf("ERROR run %s: illegal transition %s -> %s", run.ID, run.Status, to)
		return
	}
	run.Status = to
	if to.Terminal() {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	l.observe(ctx, run)
}

func (l *Lifecycle) observe(ctx context.Context, run *Run) {
	if l.hook != nil {
		l.hook(ctx, run)
	}
}
