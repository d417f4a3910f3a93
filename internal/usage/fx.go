package usage

import (
	"github.com/tokengate/tokengate/internal/usage/repository"
	"github.com/tokengate/tokengate/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
