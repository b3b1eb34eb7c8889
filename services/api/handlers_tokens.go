package api

import (
	"errors"
	"net/http"
	"time"
)

type issueTokenRequest struct {
	Name       string `json:"name"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// handleIssueToken mints a bearer token for automation clients. Only the
// configured admin token may issue new ones.
func (a *API) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if a.config.AdminToken == "" {
		respondError(w, http.StatusNotImplemented, errors.New("token issuance disabled: no admin token configured"))
		return
	}
	if !a.isAdmin(bearerToken(r)) {
		respondError(w, http.StatusUnauthorized, errors.New("admin token required"))
		return
	}

	var req issueTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	token, err := a.tokens.Issue(ctx, req.Name, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, token)
}
