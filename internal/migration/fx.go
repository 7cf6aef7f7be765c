// Package migration applies the schema on startup.
package migration

import (
	"context"

	contactdomain "github.com/heylinko/linko/internal/contact/domain"
	costdomain "github.com/heylinko/linko/internal/costtracking/domain"
	jobdomain "github.com/heylinko/linko/internal/job/domain"
	subscriptiondomain "github.com/heylinko/linko/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migration",
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, db *gorm.DB, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Named("migration").Info("running schema migration")
			return db.WithContext(ctx).AutoMigrate(
				&contactdomain.Contact{},
				&contactdomain.Group{},
				&subscriptiondomain.Subscription{},
				&costdomain.Ledger{},
				&costdomain.Operation{},
				&jobdomain.Job{},
			)
		},
	})
}
