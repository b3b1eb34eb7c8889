package api

import (
	"time"

	"github.com/google/uuid"

	"flowcheck/pkg/assert"
	"flowcheck/services/suites"
)

// Contract is the API view of a stored workflow contract.
type Contract struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Nodes           []suites.Node `json:"nodes"`
	Edges           []suites.Edge `json:"edges"`
	TestWebhookPath string        `json:"test_webhook_path"`
	ProdWebhookPath string        `json:"prod_webhook_path"`
	CreatedAt       time.Time     `json:"created_at"`
}

// FixturePack is the API view of a contract's canned requests.
type FixturePack struct {
	ID         uuid.UUID        `json:"id"`
	ContractID uuid.UUID        `json:"contract_id"`
	Fixtures   []suites.Fixture `json:"fixtures"`
	CreatedAt  time.Time        `json:"created_at"`
}

// AssertionPack is the API view of a contract's declarative checks.
type AssertionPack struct {
	ID         uuid.UUID          `json:"id"`
	ContractID uuid.UUID          `json:"contract_id"`
	Assertions []assert.Assertion `json:"assertions"`
	CreatedAt  time.Time          `json:"created_at"`
}
