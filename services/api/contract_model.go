package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"flowcheck/pkg/assert"
	"flowcheck/services/suites"
)

type contractModel struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Name        string            `gorm:"type:text;not null"`
	Description string            `gorm:"type:text"`
	Data        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt   time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (contractModel) TableName() string { return "contracts" }

// contractData renders the structural part of a contract (nodes, edges,
// webhook paths) as the jsonb payload column. Name and description live
// in their own columns.
func contractData(c suites.Contract) (datatypes.JSONMap, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	delete(data, "id")
	delete(data, "name")
	delete(data, "description")
	return toJSONMap(data), nil
}

func (m contractModel) toAPI() (Contract, error) {
	raw, err := json.Marshal(mapFromJSONMap(m.Data))
	if err != nil {
		return Contract{}, err
	}
	var c suites.Contract
	if err := json.Unmarshal(raw, &c); err != nil {
		return Contract{}, err
	}

	return Contract{
		ID:              m.ID,
		Name:            m.Name,
		Description:     m.Description,
		Nodes:           c.Nodes,
		Edges:           c.Edges,
		TestWebhookPath: c.TestWebhookPath,
		ProdWebhookPath: c.ProdWebhookPath,
		CreatedAt:       m.CreatedAt,
	}, nil
}

type fixturePackModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ContractID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Fixtures   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (fixturePackModel) TableName() string { return "fixture_packs" }

func (m fixturePackModel) toAPI() (FixturePack, error) {
	var fixtures []suites.Fixture
	if len(m.Fixtures) > 0 {
		if err := json.Unmarshal(m.Fixtures, &fixtures); err != nil {
			return FixturePack{}, err
		}
	}
	return FixturePack{
		ID:         m.ID,
		ContractID: m.ContractID,
		Fixtures:   fixtures,
		CreatedAt:  m.CreatedAt,
	}, nil
}

type assertionPackModel struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ContractID uuid.UUID      `gorm:"type:uuid;not null;index"`
	Assertions datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (assertionPackModel) TableName() string { return "assertion_packs" }

func (m assertionPackModel) toAPI() (AssertionPack, error) {
	var assertions []assert.Assertion
	if len(m.Assertions) > 0 {
		if err := json.Unmarshal(m.Assertions, &assertions); err != nil {
			return AssertionPack{}, err
		}
	}
	return AssertionPack{
		ID:         m.ID,
		ContractID: m.ContractID,
		Assertions: assertions,
		CreatedAt:  m.CreatedAt,
	}, nil
}
