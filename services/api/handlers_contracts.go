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

	"flowcheck/pkg/assert"
	"flowcheck/services/suites"
)

func (a *API) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string             `json:"name"`
		Description string             `json:"description"`
		Contract    suites.Contract    `json:"contract"`
		Fixtures    []suites.Fixture   `json:"fixtures"`
		Assertions  []assert.Assertion `json:"assertions"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	suite := suites.Suite{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Contract:    req.Contract,
		Fixtures:    req.Fixtures,
		Assertions:  req.Assertions,
	}
	if suite.Contract.Name == "" {
		suite.Contract.Name = suite.Name
	}
	if err := suite.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	for i := range suite.Assertions {
		if suite.Assertions[i].ID == uuid.Nil {
			suite.Assertions[i].ID = uuid.New()
		}
	}

	data, err := contractData(suite.Contract)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	fixturesJSON, err := json.Marshal(suite.Fixtures)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	assertionsJSON, err := json.Marshal(suite.Assertions)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

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

	err = a.store.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&contract).Error; err != nil {
			return err
		}
		if err := tx.Create(&fixturePack).Error; err != nil {
			return err
		}
		return tx.Create(&assertionPack).Error
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	apiContract, err := contract.toAPI()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	apiFixtures, err := fixturePack.toAPI()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	apiAssertions, err := assertionPack.toAPI()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"contract":       apiContract,
		"fixture_pack":   apiFixtures,
		"assertion_pack": apiAssertions,
	})
}

func (a *API) handleListContracts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var models []contractModel
	if err := a.store.ORM.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	items := make([]Contract, 0, len(models))
	for _, model := range models {
		contract, err := model.toAPI()
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		items = append(items, contract)
	}

	respondJSON(w, http.StatusOK, map[string]any{"contracts": items})
}

func (a *API) handleGetContract(w http.ResponseWriter, r *http.Request) {
	idParam := strings.TrimSpace(chi.URLParam(r, "contractID"))
	id, err := uuid.Parse(idParam)
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid contract id"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)

	var model contractModel
	switch err := orm.First(&model, "id = ?", id).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, errors.New("contract not found"))
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	contract, err := model.toAPI()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	response := map[string]any{"contract": contract}

	var fixturePack fixturePackModel
	if err := orm.Where("contract_id = ?", id).Order("created_at DESC").First(&fixturePack).Error; err == nil {
		if pack, err := fixturePack.toAPI(); err == nil {
			response["fixture_pack"] = pack
		}
	}
	var assertionPack assertionPackModel
	if err := orm.Where("contract_id = ?", id).Order("created_at DESC").First(&assertionPack).Error; err == nil {
		if pack, err := assertionPack.toAPI(); err == nil {
			response["assertion_pack"] = pack
		}
	}

	respondJSON(w, http.StatusOK, response)
}
