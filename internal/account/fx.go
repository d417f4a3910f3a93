package account

import (
	"github.com/tokengate/tokengate/internal/account/repository"
	"github.com/tokengate/tokengate/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
