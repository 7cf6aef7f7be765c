package contact

import (
	"github.com/heylinko/linko/internal/contact/repository"
	"github.com/heylinko/linko/internal/contact/service"
	"go.uber.org/fx"
)

var Module = fx.Module("contact.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
