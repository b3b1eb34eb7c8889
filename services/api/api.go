// Package api is the HTTP control plane: contract upload, run creation,
// run inspection, and artifact presigning. Run evaluation itself happens
// in the runner service; the API only persists rows and publishes run
// requests on the bus.
package api

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	defaultTokenTTL  = 24 * time.Hour
	presignURLExpiry = 15 * time.Minute

	runsRequestedSubject = "flowcheck.runs.requested"
)

// Config controls runtime behaviour for the API handlers.
type Config struct {
	TokenTTL       time.Duration
	ArtifactBucket string
	// AdminToken guards token issuance and, when set, enables bearer
	// auth on mutating routes. Empty disables auth entirely.
	AdminToken string
}

// API wires dependencies and configuration for the HTTP handlers.
type API struct {
	store  *Store
	config Config
	tokens *tokenStore
}

// New initialises the API layer with defaults applied to the provided
// configuration.
func New(store *Store, cfg Config) (*API, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if store.ORM == nil {
		return nil, errors.New("store ORM is required")
	}

	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.ArtifactBucket == "" {
		cfg.ArtifactBucket = os.Getenv("S3_BUCKET")
	}

	tokens, err := newTokenStore(store.ORM, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	return &API{
		store:  store,
		config: cfg,
		tokens: tokens,
	}, nil
}

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/contracts", a.handleListContracts)
		r.Get("/contracts/{contractID}", a.handleGetContract)
		r.Get("/runs", a.handleListRuns)
		r.Get("/runs/{runID}", a.handleGetRun)
		r.Get("/runs/{runID}/events", a.handleListRunEvents)
		r.Get("/runs/{runID}/report", a.handleRunReport)
		r.Get("/artifacts/{artifactID}/url", a.handleArtifactURL)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)
			r.Post("/contracts", a.handleCreateContract)
			r.Post("/runs", a.handleCreateRun)
		})

		r.Post("/tokens", a.handleIssueToken)
	})

	return r, nil
}
