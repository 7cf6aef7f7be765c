package grouping

import (
	"github.com/heylinko/linko/internal/grouping/engine"
	"go.uber.org/fx"
)

var Module = fx.Module("grouping",
	fx.Provide(engine.New),
)
