package payment

import (
	"github.com/tokengate/tokengate/internal/config"
	"go.uber.org/fx"
)

func provideRegistry(cfg config.Config, stripeAdapter *StripeAdapter) *Registry {
	adapters := []Adapter{stripeAdapter}
	if cfg.DevMockPay {
		adapters = append(adapters, NewMockAdapter())
	}
	return NewRegistry(adapters...)
}

var Module = fx.Module("payment",
	fx.Provide(
		NewStripeAdapter,
		provideRegistry,
	),
)
