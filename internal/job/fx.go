package job

import (
	"github.com/heylinko/linko/internal/job/repository"
	"github.com/heylinko/linko/internal/job/service"
	"go.uber.org/fx"
)

var Module = fx.Module("job.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
