package llm

import (
	"github.com/heylinko/linko/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("llm",
	fx.Provide(provideClient),
)

func provideClient(cfg config.Config) (Client, error) {
	return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
}
