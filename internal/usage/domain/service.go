package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/footprint/internal/aggregate"
	"github.com/smallbiznis/footprint/pkg/db/pagination"
)

// CreateRequest is a usage submission. Email is an unauthenticated hint that
// becomes the record's owner email whenever the principal carries no email,
// alongside a verified id if there is one.
type CreateRequest struct {
	Domain     string         `json:"domain"`
	Email      string         `json:"email"`
	Metrics    map[string]any `json:"metrics"`
	RecordedAt *time.Time     `json:"recorded_at"`
}

type QueryRequest struct {
	Email     string
	StartDate *time.Time
	EndDate   *time.Time
	Domain    string
	Source    string
	Region    string
	Timeframe string
}

type QueryResponse struct {
	Series []aggregate.Bucket   `json:"series"`
	Trend  aggregate.TrendDelta `json:"trend"`
}

type HistoryRequest struct {
	pagination.Page
	Email     string
	Domain    string
	StartDate *time.Time
	EndDate   *time.Time
}

type HistoryResponse struct {
	pagination.PageInfo
	Items []UsageEvent `json:"items"`
}

type StatsRequest struct {
	Email     string
	StartDate *time.Time
	EndDate   *time.Time
}

type DomainStats struct {
	Domain        string  `json:"domain"`
	Count         int64   `json:"count"`
	TotalEmission float64 `json:"total_emission"`
	RewardPoints  int64   `json:"reward_points"`
}

type StatsResponse struct {
	Domains       []DomainStats `json:"domains"`
	Count         int64         `json:"count"`
	TotalEmission float64       `json:"total_emission"`
	RewardPoints  int64         `json:"reward_points"`
	// TravelSavings is the emission avoided against driving the same
	// distance in a reference car, in grams.
	TravelSavings float64 `json:"travel_savings"`
}

type GetRequest struct {
	ID    string
	Email string
}

type UpdateMetricsRequest struct {
	ID      string
	Email   string
	Metrics map[string]any
}

type Service interface {
	Ingest(context.Context, CreateRequest) (*UsageEvent, error)
	Query(context.Context, QueryRequest) (QueryResponse, error)
	History(context.Context, HistoryRequest) (HistoryResponse, error)
	Stats(context.Context, StatsRequest) (StatsResponse, error)
	Get(context.Context, GetRequest) (*UsageEvent, error)
	Delete(context.Context, GetRequest) error
	UpdateMetrics(context.Context, UpdateMetricsRequest) (*UsageEvent, error)
}

var (
	ErrIdentityUnresolved = errors.New("identity_unresolved")
	ErrRecordNotFound     = errors.New("record_not_found")
	ErrStoreUnavailable   = errors.New("store_unavailable")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidDateRange   = errors.New("invalid_date_range")
)
