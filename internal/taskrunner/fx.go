package taskrunner

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("taskrunner",
	fx.Provide(provideRunner),
)

func provideRunner(lc fx.Lifecycle, log *zap.Logger) *Runner {
	r := New(log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.Shutdown(ctx)
		},
	})
	return r
}
