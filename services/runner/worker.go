package runner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"flowcheck/pkg/assert"
	"flowcheck/pkg/bus"
	"flowcheck/pkg/db"
	"flowcheck/pkg/redact"
	"flowcheck/services/suites"
)

const (
	runsRequestedSubject = "flowcheck.runs.requested"
	runsStartedSubject   = "flowcheck.runs.started"
	runsFinishedSubject  = "flowcheck.runs.finished"

	auditActor  = "runner"
	auditAction = "run_finished"
)

type runRequestedEvent struct {
	RunID      uuid.UUID `json:"run_id"`
	ContractID uuid.UUID `json:"contract_id"`
}

// WorkerConfig wires the worker's collaborators.
type WorkerConfig struct {
	ORM      *gorm.DB
	Pool     *pgxpool.Pool
	Bus      *bus.Bus
	Executor Executor
	Sink     ReportSink
	Logger   *log.Logger
}

// Worker consumes run requests from NATS and drives each through the
// lifecycle, persisting every transition as it happens.
type Worker struct {
	orm    *gorm.DB
	pool   *pgxpool.Pool
	bus    *bus.Bus
	exec   Executor
	sink   ReportSink
	logger *log.Logger

	subMu sync.Mutex
	sub   io.Closer
}

// NewWorker validates dependencies and builds a Worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.ORM == nil {
		return nil, errors.New("orm is required")
	}
	if cfg.Pool == nil {
		return nil, errors.New("database pool is required")
	}
	if cfg.Bus == nil {
		return nil, errors.New("bus is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Worker{
		orm:    cfg.ORM,
		pool:   cfg.Pool,
		bus:    cfg.Bus,
		exec:   cfg.Executor,
		sink:   cfg.Sink,
		logger: cfg.Logger,
	}, nil
}

// Start subscribes to run requests and processes them until ctx is
// cancelled.
func (w *Worker) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("nil worker")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	sub, err := w.bus.Subscribe(ctx, runsRequestedSubject, "runner-runs", w.handleRunRequested)
	if err != nil {
		return err
	}

	w.subMu.Lock()
	w.sub = sub
	w.subMu.Unlock()
	return nil
}

// Close stops the underlying subscription if it was created.
func (w *Worker) Close() error {
	if w == nil {
		return nil
	}

	w.subMu.Lock()
	defer w.subMu.Unlock()

	if w.sub == nil {
		return nil
	}
	err := w.sub.Close()
	w.sub = nil
	return err
}

func (w *Worker) handleRunRequested(ctx context.Context, data []byte) error {
	var evt runRequestedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return err
	}
	if evt.RunID == uuid.Nil {
		return errors.New("run_id missing from event")
	}

	var model runModel
	err := w.orm.WithContext(ctx).First(&model, "id = ?", evt.RunID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		w.logger.Printf("WARN run %s requested but not found", evt.RunID)
		return nil
	case err != nil:
		return err
	}
	if Status(model.Status) != StatusQueued {
		// Redelivery of an already-processed request.
		return nil
	}
	if model.ContractID == nil {
		return errors.New("run has no contract")
	}

	job, err := w.loadJob(ctx, model.ID, *model.ContractID)
	if err != nil {
		return err
	}

	lifecycle, err := NewLifecycle(LifecycleConfig{
		Executor:     w.exec,
		Sink:         w.sink,
		Logger:       w.logger,
		OnTransition: w.persistTransition,
	})
	if err != nil {
		return err
	}

	run := lifecycle.Run(ctx, job)

	if err := w.saveRun(ctx, run); err != nil {
		return err
	}
	return w.insertAudit(ctx, run)
}

// loadJob assembles the lifecycle input from the stored contract, its
// latest fixture pack, and its latest assertion pack.
func (w *Worker) loadJob(ctx context.Context, runID, contractID uuid.UUID) (Job, error) {
	var contractRow struct {
		Name        string `db:"name"`
		Description string `db:"description"`
		Data        []byte `db:"data"`
	}
	err := db.Get(ctx, w.pool, &contractRow, `
SELECT name, description, data
FROM contracts
WHERE id = $1
`, contractID)
	if err != nil {
		return Job{}, err
	}

	var contract suites.Contract
	if len(contractRow.Data) > 0 {
		if err := json.Unmarshal(contractRow.Data, &contract); err != nil {
			return Job{}, err
		}
	}
	contract.ID = contractID
	contract.Name = contractRow.Name
	contract.Description = contractRow.Description

	var fixturesRaw []byte
	err = db.Get(ctx, w.pool, &fixturesRaw, `
SELECT fixtures
FROM fixture_packs
WHERE contract_id = $1
ORDER BY created_at DESC
LIMIT 1
`, contractID)
	if err != nil {
		return Job{}, err
	}
	var fixtures []suites.Fixture
	if len(fixturesRaw) > 0 {
		if err := json.Unmarshal(fixturesRaw, &fixtures); err != nil {
			return Job{}, err
		}
	}
	if len(fixtures) == 0 {
		return Job{}, errors.New("fixture pack is empty")
	}

	var assertionsRaw []byte
	err = db.Get(ctx, w.pool, &assertionsRaw, `
SELECT assertions
FROM assertion_packs
WHERE contract_id = $1
ORDER BY created_at DESC
LIMIT 1
`, contractID)
	if err != nil {
		return Job{}, err
	}
	var assertions []assert.Assertion
	if len(assertionsRaw) > 0 {
		if err := json.Unmarshal(assertionsRaw, &assertions); err != nil {
			return Job{}, err
		}
	}

	return Job{
		RunID:      runID,
		Contract:   contract,
		Fixture:    fixtures[0],
		Assertions: assertions,
	}, nil
}

// persistTransition records one status change: the run row is updated,
// a run_events row is appended, and started/finished events go out on
// the bus.
func (w *Worker) persistTransition(ctx context.Context, run *Run) {
	if err := w.saveRun(ctx, run); err != nil {
		w.logger.Printf("ERROR run %s: persist status %s: %v", run.ID, run.Status, err)
	}
	if err := w.insertRunEvent(ctx, run); err != nil {
		w.logger.Printf("ERROR run %s: record event %s: %v", run.ID, run.Status, err)
	}

	switch {
	case run.Status == StatusProvisioning:
		w.publish(ctx, runsStartedSubject, map[string]any{
			"run_id":      run.ID,
			"contract_id": run.ContractID,
			"status":      run.Status,
			"started_at":  run.StartedAt,
		})
	case run.Status.Terminal():
		w.publish(ctx, runsFinishedSubject, map[string]any{
			"run_id":      run.ID,
			"contract_id": run.ContractID,
			"status":      run.Status,
			"finished_at": run.FinishedAt,
		})
	}
}

func (w *Worker) saveRun(ctx context.Context, run *Run) error {
	updates, err := updatesFor(run)
	if err != nil {
		return err
	}
	return w.orm.WithContext(ctx).
		Model(&runModel{}).
		Where("id = ?", run.ID).
		Updates(updates).Error
}

func (w *Worker) insertRunEvent(ctx context.Context, run *Run) error {
	details := map[string]any{}
	if run.Note != "" {
		details["note"] = run.Note
	}
	if run.Status.Terminal() {
		details["passed"] = run.Status == StatusPass
		details["results"] = len(run.Results)
	}
	detailsBytes, err := json.Marshal(details)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, w.pool, `
INSERT INTO run_events (run_id, status, details)
VALUES ($1, $2, $3::jsonb)
`, run.ID, string(run.Status), detailsBytes)
	return err
}

func (w *Worker) insertAudit(ctx context.Context, run *Run) error {
	details := map[string]any{
		"run_id":      run.ID.String(),
		"contract_id": run.ContractID.String(),
		"status":      string(run.Status),
		"results":     len(run.Results),
	}
	if run.Note != "" {
		details["note"] = run.Note
	}
	detailsBytes, err := json.Marshal(details)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, w.pool, `
INSERT INTO audit (actor, action, obj, details)
VALUES ($1, $2, $3, $4::jsonb)
`, auditActor, auditAction, run.ID.String(), detailsBytes)
	return err
}

func (w *Worker) publish(ctx context.Context, subject string, payload map[string]any) {
	if err := w.bus.Publish(ctx, subject, payload); err != nil {
		w.logger.Printf("WARN publish %s: %v", subject, redact.Mask(err.Error()))
	}
}
