package api

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Artifact tracks files the runner stored for later retrieval.
type Artifact struct {
	ID        uuid.UUID      `json:"id"`
	RunID     uuid.UUID      `json:"run_id"`
	Kind      string         `json:"kind"`
	SHA256    string         `json:"sha256"`
	URL       string         `json:"url"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}

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

func (m artifactModel) toAPI() Artifact {
	return Artifact{
		ID:        m.ID,
		RunID:     valueOrZero(m.RunID),
		Kind:      m.Kind,
		SHA256:    m.SHA256,
		URL:       m.URL,
		Meta:      mapFromJSONMap(m.Meta),
		CreatedAt: m.CreatedAt,
	}
}
