package auth

import (
	"github.com/tokengate/tokengate/internal/auth/service"
	"github.com/tokengate/tokengate/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(
		token.NewIssuer,
		service.New,
	),
)
