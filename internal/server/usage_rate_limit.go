package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/footprint/internal/identity"
	"github.com/smallbiznis/footprint/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/footprint/internal/observability/metrics"
	"github.com/smallbiznis/footprint/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitScopeOwner    = "owner"
	rateLimitScopeEndpoint = "endpoint"

	rateLimitReasonOwnerRate    = "owner-rate"
	rateLimitReasonEndpointRate = "endpoint-rate"
)

type usageIngestRateLimitKey struct {
	Email string `json:"email"`
}

// UsageIngestRateLimit draws one token from the caller's bucket and one
// from the endpoint bucket before ingestion.
func (s *Server) UsageIngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.usageLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)

		owner, err := rateLimitOwner(c)
		if err != nil {
			logger.FromContext(ctx).Warn("usage ingest rate limit read body failed", zap.Error(err))
			AbortWithError(c, invalidRequestError())
			return
		}

		if owner != "" {
			res, err := s.usageLimiter.AllowOwner(ctx, owner)
			if err != nil {
				logger.FromContext(ctx).Warn("usage ingest owner rate limit check failed", zap.Error(err))
				AbortWithError(c, ErrServiceUnavailable)
				return
			}
			if !res.Allowed {
				denyUsageIngestRateLimit(c, endpoint, rateLimitScopeOwner, rateLimitReasonOwnerRate, res, s.obsMetrics)
				return
			}
			recordRateLimitAllowed(ctx, rateLimitScopeOwner, endpoint, s.obsMetrics)
		}

		res, err := s.usageLimiter.AllowEndpoint(ctx, endpoint)
		if err != nil {
			logger.FromContext(ctx).Warn("usage ingest endpoint rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !res.Allowed {
			denyUsageIngestRateLimit(c, endpoint, rateLimitScopeEndpoint, rateLimitReasonEndpointRate, res, s.obsMetrics)
			return
		}
		recordRateLimitAllowed(ctx, rateLimitScopeEndpoint, endpoint, s.obsMetrics)

		c.Next()
	}
}

func denyUsageIngestRateLimit(c *gin.Context, endpoint, scope, reason string, res *ratelimit.RateLimitResult, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("usage ingest rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, scope, endpoint, reason, metrics)

	retryAfter := 1
	if res != nil && res.RetryAfter > 0 {
		retryAfter = int(res.RetryAfter.Seconds() + 0.999)
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, scope, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, scope, endpoint)
}

func recordRateLimitDenied(ctx context.Context, scope, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, scope, endpoint, reason)
}

// rateLimitOwner picks the identity the owner bucket is keyed on: the
// verified id, then the principal email, then the body's email hint.
func rateLimitOwner(c *gin.Context) (string, error) {
	if p, ok := identity.PrincipalFromContext(c.Request.Context()); ok {
		if id, ok := identity.ParseOwnerID(p.ID); ok {
			return "id:" + id.String(), nil
		}
		if email, ok := identity.NormalizeEmail(p.Email); ok {
			return "email:" + email, nil
		}
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload usageIngestRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}
	if email, ok := identity.NormalizeEmail(payload.Email); ok {
		return "email:" + email, nil
	}
	return "", nil
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
