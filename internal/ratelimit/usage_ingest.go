package ratelimit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/footprint/internal/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const (
	keyUsageIngestOwner    = "footprint:usage:ingest:owner:%s"
	keyUsageIngestEndpoint = "footprint:usage:ingest:endpoint:%s"
)

// Bucket is the token bucket the limiter draws from.
type Bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*RateLimitResult, error)
}

// UsageIngestLimiter throttles ingestion per owner and per endpoint. A nil
// limiter allows everything.
type UsageIngestLimiter struct {
	enabled bool
	bucket  Bucket
	client  *redis.Client

	ownerRate     float64
	ownerBurst    int
	endpointRate  float64
	endpointBurst int
}

func NewUsageIngestLimiter(cfg config.Config, log *zap.Logger) (*UsageIngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		log.Info("usage ingest rate limiting disabled")
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	limiter, err := NewUsageIngestLimiterWithBucket(limitCfg, NewTokenBucket(client))
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	limiter.client = client
	log.Info("usage ingest rate limiting enabled",
		zap.String("redis_addr", addr),
		zap.Float64("owner_rate", limitCfg.UsageIngestOwnerRate),
		zap.Int("owner_burst", limitCfg.UsageIngestOwnerBurst),
		zap.Float64("endpoint_rate", limitCfg.UsageIngestEndpointRate),
		zap.Int("endpoint_burst", limitCfg.UsageIngestEndpointBurst),
	)
	return limiter, nil
}

// Ping checks the redis connection behind the limiter, if it owns one.
func (l *UsageIngestLimiter) Ping(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("rate limit redis ping: %w", err)
	}
	return nil
}

// Close releases the redis connection behind the limiter, if it owns one.
func (l *UsageIngestLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

// NewUsageIngestLimiterWithBucket builds an enabled limiter over bucket.
func NewUsageIngestLimiterWithBucket(cfg config.RateLimitConfig, bucket Bucket) (*UsageIngestLimiter, error) {
	if bucket == nil {
		return nil, ErrNotConfigured
	}
	if cfg.UsageIngestOwnerRate <= 0 || cfg.UsageIngestOwnerBurst <= 0 {
		return nil, errors.New("usage ingest owner rate limit must be positive")
	}
	if cfg.UsageIngestEndpointRate <= 0 || cfg.UsageIngestEndpointBurst <= 0 {
		return nil, errors.New("usage ingest endpoint rate limit must be positive")
	}

	return &UsageIngestLimiter{
		enabled:       true,
		bucket:        bucket,
		ownerRate:     cfg.UsageIngestOwnerRate,
		ownerBurst:    cfg.UsageIngestOwnerBurst,
		endpointRate:  cfg.UsageIngestEndpointRate,
		endpointBurst: cfg.UsageIngestEndpointBurst,
	}, nil
}

func (l *UsageIngestLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowOwner draws from the bucket of one owner identity.
func (l *UsageIngestLimiter) AllowOwner(ctx context.Context, owner string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, OwnerKey(owner), l.ownerRate, l.ownerBurst)
}

// AllowEndpoint draws from the bucket shared by every caller of endpoint.
func (l *UsageIngestLimiter) AllowEndpoint(ctx context.Context, endpoint string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUsageIngestEndpoint, strings.TrimSpace(endpoint)), l.endpointRate, l.endpointBurst)
}

// OwnerKey hashes the owner so email addresses never land in redis.
func OwnerKey(owner string) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(owner))))
	return fmt.Sprintf(keyUsageIngestOwner, hex.EncodeToString(sum[:16]))
}
