package usage

import (
	"github.com/smallbiznis/footprint/internal/aggregate"
	"github.com/smallbiznis/footprint/internal/emission/calculator"
	"github.com/smallbiznis/footprint/internal/emission/recommendation"
	"github.com/smallbiznis/footprint/internal/identity"
	"github.com/smallbiznis/footprint/internal/usage/repository"
	"github.com/smallbiznis/footprint/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(
		calculator.Default,
		recommendation.NewEngine,
		aggregate.NewAggregator,
		identity.NewResolver,
		repository.Provide,
		service.NewService,
	),
)
