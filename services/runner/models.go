package runner

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

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

type artifactModel struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey"`
	RunID     *uuid.UUID        `gorm:"type:uuid"`
	Kind      string            `gorm:"type:text;not null"`
	SHA256    string            `gorm:"type:text;not null"`
	URL       string            `gorm:"type:text;not null"`
	Meta      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (artifactModel) TableName() string { return "artifacts" }

// updatesFor renders the run's current state as a gorm updates map. The
// row itself is created by the API when the run is requested.
func updatesFor(run *Run) (map[string]any, error) {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return nil, err
	}
	startedAt := run.StartedAt
	return map[string]any{
		"status":      string(run.Status),
		"started_at":  &startedAt,
		"finished_at": run.FinishedAt,
		"results":     datatypes.JSON(results),
		"report_key":  run.ReportKey,
		"note":        run.Note,
	}, nil
}
