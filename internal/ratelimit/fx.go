package ratelimit

import (
	"context"

	"github.com/smallbiznis/footprint/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ratelimit.usage",
	fx.Provide(provideUsageIngestLimiter),
)

// provideUsageIngestLimiter ties the limiter's redis connection to the app
// lifecycle. A disabled limiter is provided as nil.
func provideUsageIngestLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*UsageIngestLimiter, error) {
	limiter, err := NewUsageIngestLimiter(cfg, log.Named("ratelimit"))
	if err != nil || limiter == nil {
		return limiter, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return limiter.Ping(ctx)
		},
		OnStop: func(context.Context) error {
			return limiter.Close()
		},
	})
	return limiter, nil
}
