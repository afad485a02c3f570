package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/footprint/internal/aggregate"
	"github.com/smallbiznis/footprint/internal/config"
	emissiondomain "github.com/smallbiznis/footprint/internal/emission/domain"
	"github.com/smallbiznis/footprint/internal/emission/factor"
	"github.com/smallbiznis/footprint/internal/identity"
	"github.com/smallbiznis/footprint/internal/ratelimit"
	usagedomain "github.com/smallbiznis/footprint/internal/usage/domain"
	"github.com/smallbiznis/footprint/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUsageService struct {
	mock.Mock
}

func (m *mockUsageService) Ingest(ctx context.Context, req usagedomain.CreateRequest) (*usagedomain.UsageEvent, error) {
	args := m.Called(ctx, req)
	event, _ := args.Get(0).(*usagedomain.UsageEvent)
	return event, args.Error(1)
}

func (m *mockUsageService) Query(ctx context.Context, req usagedomain.QueryRequest) (usagedomain.QueryResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(usagedomain.QueryResponse), args.Error(1)
}

func (m *mockUsageService) History(ctx context.Context, req usagedomain.HistoryRequest) (usagedomain.HistoryResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(usagedomain.HistoryResponse), args.Error(1)
}

func (m *mockUsageService) Stats(ctx context.Context, req usagedomain.StatsRequest) (usagedomain.StatsResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(usagedomain.StatsResponse), args.Error(1)
}

func (m *mockUsageService) Get(ctx context.Context, req usagedomain.GetRequest) (*usagedomain.UsageEvent, error) {
	args := m.Called(ctx, req)
	event, _ := args.Get(0).(*usagedomain.UsageEvent)
	return event, args.Error(1)
}

func (m *mockUsageService) Delete(ctx context.Context, req usagedomain.GetRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockUsageService) UpdateMetrics(ctx context.Context, req usagedomain.UpdateMetricsRequest) (*usagedomain.UsageEvent, error) {
	args := m.Called(ctx, req)
	event, _ := args.Get(0).(*usagedomain.UsageEvent)
	return event, args.Error(1)
}

type denyBucket struct {
	retryAfter time.Duration
}

func (b denyBucket) Allow(context.Context, string, float64, int) (*ratelimit.RateLimitResult, error) {
	return &ratelimit.RateLimitResult{Allowed: false, RetryAfter: b.retryAfter}, nil
}

func newTestServer(t *testing.T, svc usagedomain.Service, limiter *ratelimit.UsageIngestLimiter) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := factor.NewStaticRegistry(factor.DefaultTable())
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	return NewServer(ServerParams{
		Engine:       engine,
		Cfg:          config.Config{HTTPAddr: ":0"},
		UsageSvc:     svc,
		Factors:      registry,
		UsageLimiter: limiter,
	})
}

func doRequest(s *Server, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func hasPrincipal(id string) any {
	return mock.MatchedBy(func(ctx context.Context) bool {
		p, ok := identity.PrincipalFromContext(ctx)
		return ok && p.ID == id
	})
}

func TestIngestUsageCreated(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)

	body := map[string]any{
		"domain":  "travel",
		"metrics": map[string]any{"mode": "car", "distanceKm": 10, "co2Emissions": 1.5},
	}
	svc.On("Ingest", hasPrincipal("1001"), mock.MatchedBy(func(req usagedomain.CreateRequest) bool {
		return req.Domain == "travel" && req.Metrics["mode"] == "car"
	})).Return(&usagedomain.UsageEvent{ID: 42, Domain: "travel", TotalEmission: 1.5}, nil)

	rec := doRequest(s, http.MethodPost, "/api/usage", body, map[string]string{HeaderUserID: "1001"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var event map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &event))
	assert.Equal(t, "42", event["id"])
	assert.Equal(t, 1.5, event["total_emission"])
	svc.AssertExpectations(t)
}

func TestIngestUsageErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{
			name:   "invalid metrics",
			err:    &emissiondomain.MetricsError{Issues: []emissiondomain.FieldIssue{{Field: "distanceKm", Reason: "required"}}},
			status: http.StatusBadRequest,
			typ:    "validation_error",
		},
		{name: "unknown domain", err: emissiondomain.ErrUnknownDomain, status: http.StatusBadRequest, typ: "validation_error"},
		{name: "identity", err: usagedomain.ErrIdentityUnresolved, status: http.StatusUnauthorized, typ: "unauthorized"},
		{
			name:   "store",
			err:    fmt.Errorf("%w: insert: %w", usagedomain.ErrStoreUnavailable, context.DeadlineExceeded),
			status: http.StatusServiceUnavailable,
			typ:    "service_unavailable",
		},
		{name: "unexpected", err: fmt.Errorf("boom"), status: http.StatusInternalServerError, typ: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUsageService{}
			s := newTestServer(t, svc, nil)
			svc.On("Ingest", mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := doRequest(s, http.MethodPost, "/api/usage", map[string]any{"domain": "travel"}, nil)
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.typ, decodeError(t, rec).Type)
		})
	}
}

func TestIngestUsageMetricsErrorListsFields(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)
	svc.On("Ingest", mock.Anything, mock.Anything).Return(nil, &emissiondomain.MetricsError{Issues: []emissiondomain.FieldIssue{
		{Field: "distanceKm", Reason: "required"},
		{Field: "co2Emissions", Reason: "must be a number"},
	}})

	rec := doRequest(s, http.MethodPost, "/api/usage", map[string]any{"domain": "travel"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 2)
	assert.Equal(t, "distanceKm", payload.Errors[0].Field)
	assert.Equal(t, "invalid_metrics", payload.Errors[0].Code)
	assert.Equal(t, "co2Emissions", payload.Errors[1].Field)
}

func TestIngestUsageRejectsMalformedBody(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/usage", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}

func TestIngestUsageRateLimited(t *testing.T) {
	svc := &mockUsageService{}
	limiter, err := ratelimit.NewUsageIngestLimiterWithBucket(config.RateLimitConfig{
		Enabled:                  true,
		UsageIngestOwnerRate:     1,
		UsageIngestOwnerBurst:    1,
		UsageIngestEndpointRate:  1,
		UsageIngestEndpointBurst: 1,
	}, denyBucket{retryAfter: 1500 * time.Millisecond})
	require.NoError(t, err)
	s := newTestServer(t, svc, limiter)

	rec := doRequest(s, http.MethodPost, "/api/usage", map[string]any{"domain": "travel", "email": "a@example.com"}, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, rateLimitReasonOwnerRate, rec.Header().Get("X-Rate-Limited-Reason"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
	svc.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
}

func TestQueryUsage(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Query", mock.Anything, mock.MatchedBy(func(req usagedomain.QueryRequest) bool {
		return req.Timeframe == "weekly" &&
			req.Email == "a@example.com" &&
			req.Source == "aws" &&
			req.StartDate != nil && req.StartDate.Equal(start) &&
			req.EndDate != nil && req.EndDate.Day() == 31 && req.EndDate.Hour() == 23
	})).Return(usagedomain.QueryResponse{
		Series: []aggregate.Bucket{{Key: "2024-W9", Total: 10}, {Key: "2024-W10", Total: 15}},
		Trend:  aggregate.TrendDelta{aggregate.TotalKey: 50},
	}, nil)

	rec := doRequest(s, http.MethodGet, "/api/usage?timeframe=weekly&email=a@example.com&source=aws&startDate=2024-03-01&end_date=2024-03-31", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Series []map[string]any   `json:"series"`
		Trend  map[string]float64 `json:"trend"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Series, 2)
	assert.Equal(t, 50.0, resp.Trend["total"])
	svc.AssertExpectations(t)
}

func TestQueryUsageEmptyResponseShape(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)
	svc.On("Query", mock.Anything, mock.Anything).Return(usagedomain.QueryResponse{Series: []aggregate.Bucket{}}, nil)

	rec := doRequest(s, http.MethodGet, "/api/usage", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"series":[],"trend":null}`, rec.Body.String())
}

func TestQueryUsageRejectsBadDates(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)

	rec := doRequest(s, http.MethodGet, "/api/usage?start_date=yesterday", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "start_date", payload.Errors[0].Field)
	svc.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestQueryUsageInvalidTimeframe(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)
	svc.On("Query", mock.Anything, mock.Anything).Return(usagedomain.QueryResponse{}, aggregate.ErrInvalidTimeframe)

	rec := doRequest(s, http.MethodGet, "/api/usage?timeframe=yearly", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "timeframe", decodeError(t, rec).Errors[0].Field)
}

func TestUsageHistoryPagination(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)
	svc.On("History", mock.Anything, mock.MatchedBy(func(req usagedomain.HistoryRequest) bool {
		return req.Page == pagination.Page{Page: 2, Limit: 5} && req.Domain == "waste"
	})).Return(usagedomain.HistoryResponse{
		PageInfo: pagination.BuildPageInfo(pagination.Page{Page: 2, Limit: 5}, 12),
		Items:    []usagedomain.UsageEvent{{ID: 1}},
	}, nil)

	rec := doRequest(s, http.MethodGet, "/api/usage/history?page=2&limit=5&domain=waste", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 12.0, resp["total"])
	assert.Equal(t, 3.0, resp["total_pages"])
	svc.AssertExpectations(t)

	rec = doRequest(s, http.MethodGet, "/api/usage/history?page=two", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsageStats(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)
	svc.On("Stats", hasPrincipal("7"), usagedomain.StatsRequest{}).Return(usagedomain.StatsResponse{
		Domains:       []usagedomain.DomainStats{{Domain: "travel", Count: 1, TotalEmission: 1000}},
		TravelSavings: 700,
	}, nil)

	rec := doRequest(s, http.MethodGet, "/api/usage/stats", nil, map[string]string{HeaderUserID: "7"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp usagedomain.StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 700.0, resp.TravelSavings)
	svc.AssertExpectations(t)
}

func TestGetAndDeleteUsage(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)
	svc.On("Get", mock.Anything, usagedomain.GetRequest{ID: "99"}).Return(nil, usagedomain.ErrRecordNotFound)
	svc.On("Get", mock.Anything, usagedomain.GetRequest{ID: "bad"}).Return(nil, usagedomain.ErrInvalidID)
	svc.On("Delete", mock.Anything, usagedomain.GetRequest{ID: "42", Email: "a@example.com"}).Return(nil)

	rec := doRequest(s, http.MethodGet, "/api/usage/99", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/usage/bad", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodDelete, "/api/usage/42?email=a@example.com", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestUpdateUsageMetrics(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)
	svc.On("UpdateMetrics", mock.Anything, mock.MatchedBy(func(req usagedomain.UpdateMetricsRequest) bool {
		return req.ID == "42" && req.Email == "a@example.com" && req.Metrics["mode"] == "bike"
	})).Return(&usagedomain.UsageEvent{ID: 42, TotalEmission: 3}, nil)

	rec := doRequest(s, http.MethodPatch, "/api/usage/42/metrics", map[string]any{
		"email":   "a@example.com",
		"metrics": map[string]any{"mode": "bike", "distanceKm": 3, "co2Emissions": 0},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	svc.AssertExpectations(t)
}

func TestGetFactors(t *testing.T) {
	s := newTestServer(t, &mockUsageService{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/factors", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var table factor.Table
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	assert.Equal(t, factor.DefaultTable().Version, table.Version)
	assert.Equal(t, factor.DefaultIntensity, table.DefaultIntensity)
}

func TestPrincipalMiddlewareIgnoresMissingHeaders(t *testing.T) {
	svc := &mockUsageService{}
	s := newTestServer(t, svc, nil)
	svc.On("Stats", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := identity.PrincipalFromContext(ctx)
		return !ok
	}), usagedomain.StatsRequest{Email: "hint@example.com"}).Return(usagedomain.StatsResponse{}, nil)

	rec := doRequest(s, http.MethodGet, "/api/usage/stats?email=hint@example.com", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}
