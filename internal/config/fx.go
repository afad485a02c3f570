package config

import (
	"github.com/smallbiznis/footprint/internal/emission/factor"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(
		Load,
		fx.Annotate(
			NewFactorTableHolder,
			fx.As(fx.Self()),
			fx.As(new(factor.Source)),
		),
	),
)
