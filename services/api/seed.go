package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"flowcheck/infra/seed"
)

// SeedDefaults inserts the bundled example suite so a fresh deployment has
// something to run. Idempotent: a contract with the same name short-circuits.
func SeedDefaults(ctx context.Context, orm *gorm.DB) error {
	if orm == nil {
		return errors.New("orm is required")
	}

	suite, err := seed.Suite()
	if err != nil {
		return fmt.Errorf("parse seed suite: %w", err)
	}

	var count int64
	if err := orm.WithContext(ctx).Model(&contractModel{}).Where("name = ?", suite.Name).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	data, err := contractData(suite.Contract)
	if err != nil {
		return err
	}
	fixturesJSON, err := json.Marshal(suite.Fixtures)
	if err != nil {
		return err
	}
	assertionsJSON, err := json.Marshal(suite.Assertions)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	contract := contractModel{
		ID:          uuid.New(),
		Name:        suite.Name,
		Description: suite.Description,
		Data:        data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	fixturePack := fixturePackModel{
		ID:         uuid.New(),
		ContractID: contract.ID,
		Fixtures:   fixturesJSON,
		CreatedAt:  now,
	}
	assertionPack := assertionPackModel{
		ID:         uuid.New(),
		ContractID: contract.ID,
		Assertions: assertionsJSON,
		CreatedAt:  now,
	}

	return orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&contract).Error; err != nil {
			return err
		}
		if err := tx.Create(&fixturePack).Error; err != nil {
			return err
		}
		return tx.Create(&assertionPack).Error
	})
}
