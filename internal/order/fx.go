package order

import (
	"github.com/tokengate/tokengate/internal/order/repository"
	"github.com/tokengate/tokengate/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
