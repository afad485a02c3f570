package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/footprint/internal/identity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Criteria narrows a scoped read. Empty strings and nil bounds match everything.
type Criteria struct {
	Domain string
	Source string
	Region string
	From   *time.Time
	To     *time.Time
}

// SeriesRow is the projection of a usage event needed for aggregation.
type SeriesRow struct {
	RecordedAt    time.Time
	Emissions     datatypes.JSONType[map[string]float64]
	TotalEmission float64
}

// DomainTotals is one row of the per-domain grouped sum.
type DomainTotals struct {
	Domain        string
	Count         int64
	TotalEmission float64
	RewardPoints  int64
}

// Repository runs the usage queries the generic store cannot express.
// Every read is constrained by the identity filter.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *UsageEvent) error
	Series(ctx context.Context, db *gorm.DB, scope identity.Filter, c Criteria) ([]SeriesRow, error)
	DomainTotals(ctx context.Context, db *gorm.DB, scope identity.Filter, c Criteria) ([]DomainTotals, error)
	Metrics(ctx context.Context, db *gorm.DB, scope identity.Filter, c Criteria) ([]datatypes.JSONMap, error)
}
