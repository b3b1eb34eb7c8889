package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (a *API) handleArtifactURL(w http.ResponseWriter, r *http.Request) {
	if a.store.S3 == nil {
		respondError(w, http.StatusFailedDependency, errors.New("s3 client not configured"))
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "artifactID")))
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("invalid artifact id"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var model artifactModel
	switch err := a.store.ORM.WithContext(ctx).First(&model, "id = ?", id).Error; {
	case errors.Is(err, gorm.ErrRecordNotFound):
		respondError(w, http.StatusNotFound, errors.New("artifact not found"))
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	bucket, key, err := parseS3URL(model.URL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	url, err := a.store.S3.PresignGet(ctx, bucket, key, presignURLExpiry)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"artifact": model.toAPI(),
		"url":      url,
	})
}

func parseS3URL(url string) (string, string, error) {
	if !strings.HasPrefix(url, "s3://") {
		return "", "", fmt.Errorf("unsupported artifact url %q", url)
	}
	trimmed := strings.TrimPrefix(url, "s3://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid s3 url %q", url)
	}
	return parts[0], parts[1], nil
}
