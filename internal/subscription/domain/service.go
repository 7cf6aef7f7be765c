package domain

import (
	"context"
	"errors"
)

type Service interface {
	// GetLevel resolves a user's tier. Users without a subscription row
	// are on the base tier.
	GetLevel(ctx context.Context, userID string) (Level, error)
	SetLevel(ctx context.Context, userID string, level Level) error
}

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrInvalidLevel = errors.New("invalid_level")
)
