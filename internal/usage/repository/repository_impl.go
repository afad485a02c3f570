package repository

import (
	"context"

	"github.com/smallbiznis/footprint/internal/identity"
	usagedomain "github.com/smallbiznis/footprint/internal/usage/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *usagedomain.UsageEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) Series(ctx context.Context, db *gorm.DB, scope identity.Filter, c usagedomain.Criteria) ([]usagedomain.SeriesRow, error) {
	var rows []usagedomain.SeriesRow
	err := scoped(ctx, db, scope, c).
		Select("recorded_at", "emissions", "total_emission").
		Order("recorded_at ASC").
		Order("id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) DomainTotals(ctx context.Context, db *gorm.DB, scope identity.Filter, c usagedomain.Criteria) ([]usagedomain.DomainTotals, error) {
	var rows []usagedomain.DomainTotals
	err := scoped(ctx, db, scope, c).
		Select(`domain,
			COUNT(*) AS count,
			COALESCE(SUM(total_emission), 0) AS total_emission,
			COALESCE(SUM(reward_points), 0) AS reward_points`).
		Group("domain").
		Order("domain ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) Metrics(ctx context.Context, db *gorm.DB, scope identity.Filter, c usagedomain.Criteria) ([]datatypes.JSONMap, error) {
	var rows []struct {
		Metrics datatypes.JSONMap
	}
	err := scoped(ctx, db, scope, c).
		Select("metrics").
		Order("recorded_at ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]datatypes.JSONMap, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Metrics)
	}
	return out, nil
}

// scoped starts a usage_events read constrained by the identity filter. An
// empty filter yields a statement that matches no rows.
func scoped(ctx context.Context, db *gorm.DB, scope identity.Filter, c usagedomain.Criteria) *gorm.DB {
	stmt := db.WithContext(ctx).
		Model(&usagedomain.UsageEvent{}).
		Scopes(scope.Scope())

	if c.Domain != "" {
		stmt = stmt.Where("domain = ?", c.Domain)
	}
	if c.Source != "" {
		stmt = stmt.Where("source = ?", usagedomain.NormalizeLabel(c.Source))
	}
	if c.Region != "" {
		stmt = stmt.Where("region = ?", usagedomain.NormalizeLabel(c.Region))
	}
	if c.From != nil {
		stmt = stmt.Where("recorded_at >= ?", c.From.UTC())
	}
	if c.To != nil {
		stmt = stmt.Where("recorded_at <= ?", c.To.UTC())
	}
	return stmt
}
