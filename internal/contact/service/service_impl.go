package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  contactdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  contactdomain.Repository
	genID *snowflake.Node
}

func New(p Params) contactdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("contact.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, userID string, req contactdomain.CreateContactRequest) (*contactdomain.Contact, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, contactdomain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, contactdomain.ErrInvalidName
	}

	now := time.Now().UTC()
	contact := &contactdomain.Contact{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Name:      name,
		Email:     strings.TrimSpace(req.Email),
		Company:   strings.TrimSpace(req.Company),
		Title:     strings.TrimSpace(req.Title),
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (s *Service) GetContacts(ctx context.Context, userID string) ([]contactdomain.Contact, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, contactdomain.ErrInvalidUser
	}
	return s.repo.ListByUser(ctx, s.db, userID)
}

// SaveGeneratedGroups persists a batch of AI-generated groups. A single
// failed insert does not abort the batch; the report carries what stuck.
func (s *Service) SaveGeneratedGroups(ctx context.Context, userID string, groups []contactdomain.Group) (contactdomain.SaveReport, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return contactdomain.SaveReport{}, contactdomain.ErrInvalidUser
	}

	report := contactdomain.SaveReport{}
	now := time.Now().UTC()
	for i := range groups {
		group := groups[i]
		group.ID = s.genID.Generate()
		group.UserID = userID
		group.CreatedAt = now
		group.UpdatedAt = now

		if err := s.repo.InsertGroup(ctx, s.db, &group); err != nil {
			s.log.Warn("group save failed",
				zap.String("user_id", userID),
				zap.String("group", group.Name),
				zap.Error(err),
			)
			report.Failed = append(report.Failed, group.Name)
			continue
		}
		report.SavedCount++
	}
	return report, nil
}

func (s *Service) ListGroups(ctx context.Context, userID string) ([]contactdomain.Group, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, contactdomain.ErrInvalidUser
	}
	return s.repo.ListGroupsByUser(ctx, s.db, userID)
}
