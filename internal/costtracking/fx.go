package costtracking

import (
	"github.com/heylinko/linko/internal/costtracking/repository"
	"github.com/heylinko/linko/internal/costtracking/service"
	"go.uber.org/fx"
)

var Module = fx.Module("costtracking.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(registerRetention),
)
