package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contact *Contact) error
	ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]Contact, error)
	CountByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	InsertGroup(ctx context.Context, db *gorm.DB, group *Group) error
	ListGroupsByUser(ctx context.Context, db *gorm.DB, userID string) ([]Group, error)
}
