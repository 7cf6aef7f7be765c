package repository

import (
	"context"

	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() contactdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, contact *contactdomain.Contact) error {
	return db.WithContext(ctx).Create(contact).Error
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID string) ([]contactdomain.Contact, error) {
	var contacts []contactdomain.Contact
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}

func (r *repo) CountByUser(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&contactdomain.Contact{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (r *repo) InsertGroup(ctx context.Context, db *gorm.DB, group *contactdomain.Group) error {
	return db.WithContext(ctx).Create(group).Error
}

func (r *repo) ListGroupsByUser(ctx context.Context, db *gorm.DB, userID string) ([]contactdomain.Group, error) {
	var groups []contactdomain.Group
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}
