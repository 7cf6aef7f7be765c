package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
	"github.com/heylinko/linko/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
}

func New(p Params) subscriptiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription.service"),
		genID: p.GenID,
	}
}

func (s *Service) GetLevel(ctx context.Context, userID string) (subscriptiondomain.Level, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", subscriptiondomain.ErrInvalidUser
	}

	var sub subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return subscriptiondomain.LevelBase, nil
		}
		return "", err
	}

	level := subscriptiondomain.Level(sub.Level)
	if !level.Valid() {
		return subscriptiondomain.LevelBase, nil
	}
	return level, nil
}

func (s *Service) SetLevel(ctx context.Context, userID string, level subscriptiondomain.Level) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return subscriptiondomain.ErrInvalidUser
	}
	if !level.Valid() {
		return subscriptiondomain.ErrInvalidLevel
	}

	now := time.Now().UTC()
	sub := subscriptiondomain.Subscription{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Level:     string(level),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Create(&sub).Error
	if err == nil {
		return nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&subscriptiondomain.Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"level": string(level), "updated_at": now}).Error
}
