package domain

import (
	"context"
	"errors"
)

type CreateContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company"`
	Title   string `json:"title"`
	Notes   string `json:"notes"`
}

// SaveReport summarizes a batch of group writes. Per-group failures are
// tolerated; Failed carries the names that did not persist.
type SaveReport struct {
	SavedCount int      `json:"saved_count"`
	Failed     []string `json:"failed,omitempty"`
}

type Service interface {
	Create(ctx context.Context, userID string, req CreateContactRequest) (*Contact, error)
	GetContacts(ctx context.Context, userID string) ([]Contact, error)
	SaveGeneratedGroups(ctx context.Context, userID string, groups []Group) (SaveReport, error)
	ListGroups(ctx context.Context, userID string) ([]Group, error)
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrInvalidName = errors.New("invalid_name")
)
