package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"flowcheck/pkg/db"
)

func (a *API) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContractID uuid.UUID `json:"contract_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.ContractID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("contract_id is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)

	var contract contractModel
	switch err := orm.First(&contract, "id = ?", req.ContractID).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, errors.New("contract not found"))
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	now := time.Now().UTC()
	contractID := req.ContractID
	model := runModel{
		ID:         uuid.New(),
		ContractID: &contractID,
		Status:     "QUEUED",
		StartedAt:  &now,
	}
	if err := orm.Create(&model).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	run, err := model.toAPI()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	a.publishJSON(r.Context(), runsRequestedSubject, map[string]any{
		"run_id":      run.ID,
		"contract_id": run.ContractID,
	})

	respondJSON(w, http.StatusAccepted, map[string]any{"run": run})
}

func (a *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "runID")))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid run id"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var model runModel
	switch err := a.store.ORM.WithContext(ctx).First(&model, "id = ?", id).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, errors.New("run not found"))
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	run, err := model.toAPI()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"run": run})
}

type runListRow struct {
	ID         uuid.UUID  `db:"id"`
	ContractID *uuid.UUID `db:"contract_id"`
	Status     string     `db:"status"`
	StartedAt  *time.Time `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	ReportKey  string     `db:"report_key"`
	Note       string     `db:"note"`
}

func (a *API) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if a.store.DB == nil {
		respondError(w, http.StatusFailedDependency, errors.New("database pool not configured"))
		return
	}

	var (
		rows []runListRow
		err  error
	)
	if raw := strings.TrimSpace(r.URL.Query().Get("contract_id")); raw != "" {
		contractID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			respondError(w, http.StatusBadRequest, errors.New("invalid contract_id"))
			return
		}
		err = db.Select(r.Context(), a.store.DB, &rows, `
SELECT id, contract_id, status, started_at, finished_at, report_key, note
FROM runs
WHERE contract_id = $1
ORDER BY started_at DESC
LIMIT 100
`, contractID)
	} else {
		err = db.Select(r.Context(), a.store.DB, &rows, `
SELECT id, contract_id, status, started_at, finished_at, report_key, note
FROM runs
ORDER BY started_at DESC
LIMIT 100
`)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	items := make([]Run, 0, len(rows))
	for _, row := range rows {
		items = append(items, Run{
			ID:         row.ID,
			ContractID: valueOrZero(row.ContractID),
			Status:     row.Status,
			StartedAt:  row.StartedAt,
			FinishedAt: row.FinishedAt,
			ReportKey:  row.ReportKey,
			Note:       row.Note,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{"runs": items})
}

type runEventRow struct {
	ID        int64     `db:"id"`
	RunID     uuid.UUID `db:"run_id"`
	Status    string    `db:"status"`
	Details   []byte    `db:"details"`
	CreatedAt time.Time `db:"created_at"`
}

func (a *API) handleListRunEvents(w http.ResponseWriter, r *http.Request) {
	if a.store.DB == nil {
		respondError(w, http.StatusFailedDependency, errors.New("database pool not configured"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "runID")))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid run id"))
		return
	}

	var rows []runEventRow
	err = db.Select(r.Context(), a.store.DB, &rows, `
SELECT id, run_id, status, details, created_at
FROM run_events
WHERE run_id = $1
ORDER BY id ASC
`, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	events := make([]RunEvent, 0, len(rows))
	for _, row := range rows {
		details := map[string]any{}
		if len(row.Details) > 0 {
			_ = json.Unmarshal(row.Details, &details)
		}
		events = append(events, RunEvent{
			ID:        row.ID,
			RunID:     row.RunID,
			Status:    row.Status,
			Details:   details,
			CreatedAt: row.CreatedAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (a *API) handleRunReport(w http.ResponseWriter, r *http.Request) {
	if a.store.S3 == nil {
		respondError(w, http.StatusFailedDependency, errors.New("s3 client not configured"))
		return
	}
	if a.config.ArtifactBucket == "" {
		respondError(w, http.StatusFailedDependency, errors.New("artifact bucket not configured"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "runID")))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid run id"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var model runModel
	switch err := a.store.ORM.WithContext(ctx).First(&model, "id = ?", id).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, errors.New("run not found"))
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	if model.ReportKey == "" {
		respondError(w, http.StatusNotFound, errors.New("run has no report"))
		return
	}

	url, err := a.store.S3.PresignGet(ctx, a.config.ArtifactBucket, model.ReportKey, presignURLExpiry)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"url": url})
}
