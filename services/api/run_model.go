package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"flowcheck/pkg/assert"
)

// Run is the API view of one execution-and-verification attempt.
type Run struct {
	ID         uuid.UUID       `json:"id"`
	ContractID uuid.UUID       `json:"contract_id"`
	Status     string          `json:"status"`
	StartedAt  *time.Time      `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at"`
	Results    []assert.Result `json:"results"`
	ReportKey  string          `json:"report_key,omitempty"`
	Note       string          `json:"note,omitempty"`
}

// RunEvent is one recorded lifecycle transition.
type RunEvent struct {
	ID        int64          `json:"id"`
	RunID     uuid.UUID      `json:"run_id"`
	Status    string         `json:"status"`
	Details   map[string]any `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}

type runModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ContractID *uuid.UUID     `gorm:"type:uuid"`
	Status     string         `gorm:"type:text"`
	StartedAt  *time.Time     `gorm:"type:timestamptz"`
	FinishedAt *time.Time     `gorm:"type:timestamptz"`
	Results    datatypes.JSON `gorm:"type:jsonb"`
	ReportKey  string         `gorm:"type:text"`
	Note       string         `gorm:"type:text"`
}

func (runModel) TableName() string { return "runs" }

func (m runModel) toAPI() (Run, error) {
	var results []assert.Result
	if len(m.Results) > 0 {
		if err := json.Unmarshal(m.Results, &results); err != nil {
			return Run{}, err
		}
	}
	return Run{
		ID:         m.ID,
		ContractID: valueOrZero(m.ContractID),
		Status:     m.Status,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		Results:    results,
		ReportKey:  m.ReportKey,
		Note:       m.Note,
	}, nil
}

func valueOrZero(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
