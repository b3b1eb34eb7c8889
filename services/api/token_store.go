package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrTokenNotFound is returned for unknown token values.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired is returned for known but expired tokens.
	ErrTokenExpired = errors.New("token expired")
)

// Token is an issued bearer token.
type Token struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type tokenModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"type:text;not null"`
	Token     string    `gorm:"type:text;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (tokenModel) TableName() string { return "tokens" }

type tokenStore struct {
	orm *gorm.DB
	ttl time.Duration
}

func newTokenStore(orm *gorm.DB, ttl time.Duration) (*tokenStore, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &tokenStore{orm: orm, ttl: ttl}, nil
}

// Issue mints a token for the named consumer. A non-positive ttl uses
// the store default.
func (ts *tokenStore) Issue(ctx context.Context, name string, ttl time.Duration) (Token, error) {
	if ttl <= 0 {
		ttl = ts.ttl
	}

	now := time.Now().UTC()
	model := tokenModel{
		ID:        uuid.New(),
		Name:      name,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := ts.orm.WithContext(ctx).Create(&model).Error; err != nil {
		return Token{}, err
	}

	return Token{
		ID:        model.ID,
		Name:      model.Name,
		Value:     model.Token,
		ExpiresAt: model.ExpiresAt,
	}, nil
}

// Validate checks a presented token value.
func (ts *tokenStore) Validate(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ErrTokenNotFound
	}

	var model tokenModel
	err := ts.orm.WithContext(ctx).Where("token = ?", value).First(&model).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrTokenNotFound
	case err != nil:
		return err
	}

	if time.Now().UTC().After(model.ExpiresAt) {
		return ErrTokenExpired
	}
	return nil
}
