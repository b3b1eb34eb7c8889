package runner

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	gos3 "flowcheck/pkg/s3"
)

// S3Sink stores serialized reports in S3 under reports/<run id>.xml and,
// when an ORM is supplied, registers a junit artifact row for the run.
type S3Sink struct {
	client *gos3.Client
	bucket string
	orm    *gorm.DB
}

// NewS3Sink builds an S3Sink. The ORM is optional; without it the sink
// only uploads.
func NewS3Sink(client *gos3.Client, bucket string, orm *gorm.DB) (*S3Sink, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &S3Sink{client: client, bucket: bucket, orm: orm}, nil
}

// Store uploads the report and returns its object key.
func (s *S3Sink) Store(ctx context.Context, runID uuid.UUID, report []byte) (string, error) {
	key := fmt.Sprintf("reports/%s.xml", runID)
	digest := sha256.Sum256(report)
	sha := hex.EncodeToString(digest[:])

	if err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(report), int64(len(report)), sha); err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}

	if s.orm != nil {
		id := runID
		model := artifactModel{
			ID:     uuid.New(),
			RunID:  &id,
			Kind:   "junit",
			SHA256: sha,
			URL:    fmt.Sprintf("s3://%s/%s", s.bucket, key),
			Meta: datatypes.JSONMap{
				"size": len(report),
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := s.orm.WithContext(ctx).Create(&model).Error; err != nil {
			return "", fmt.Errorf("register artifact: %w", err)
		}
	}

	return key, nil
}

// FileSink writes reports to a local directory. flowctl uses it when
// running suites without any backing services.
type FileSink struct {
	Dir string
}

// Store writes <run id>.xml under Dir and returns the file path.
func (s FileSink) Store(ctx context.Context, runID uuid.UUID, report []byte) (string, error) {
	if s.Dir == "" {
		return "", errors.New("sink directory is required")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(s.Dir, runID.String()+".xml")
	if err := os.WriteFile(path, report, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
