package factor

import "go.uber.org/fx"

var Module = fx.Module("emission.factor",
	fx.Provide(NewRegistry),
)
