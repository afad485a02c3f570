package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/footprint/internal/aggregate"
	"github.com/smallbiznis/footprint/internal/clock"
	"github.com/smallbiznis/footprint/internal/emission/calculator"
	emissiondomain "github.com/smallbiznis/footprint/internal/emission/domain"
	"github.com/smallbiznis/footprint/internal/emission/factor"
	"github.com/smallbiznis/footprint/internal/emission/recommendation"
	"github.com/smallbiznis/footprint/internal/identity"
	obsmetrics "github.com/smallbiznis/footprint/internal/observability/metrics"
	usagedomain "github.com/smallbiznis/footprint/internal/usage/domain"
	pkgdb "github.com/smallbiznis/footprint/pkg/db"
	"github.com/smallbiznis/footprint/pkg/db/option"
	"github.com/smallbiznis/footprint/pkg/db/pagination"
	"github.com/smallbiznis/footprint/pkg/repository"
	"github.com/spf13/cast"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Factors     *factor.Registry
	Calculators *calculator.Set
	Recommender *recommendation.Engine
	Aggregator  *aggregate.Aggregator
	Resolver    *identity.Resolver
	Repo        usagedomain.Repository
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID       *snowflake.Node
	clock       clock.Clock
	factors     *factor.Registry
	calculators *calculator.Set
	recommender *recommendation.Engine
	aggregator  *aggregate.Aggregator
	resolver    *identity.Resolver
	repo        usagedomain.Repository
	usagerepo   repository.Repository[usagedomain.UsageEvent]
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("usage.service"),

		genID:       p.GenID,
		clock:       p.Clock,
		factors:     p.Factors,
		calculators: p.Calculators,
		recommender: p.Recommender,
		aggregator:  p.Aggregator,
		resolver:    p.Resolver,
		repo:        p.Repo,
		usagerepo:   repository.ProvideStore[usagedomain.UsageEvent](p.DB),
		obsMetrics:  p.ObsMetrics,
	}
}

// Ingest computes the emission of a submission and stores it once. Nothing
// is written when the metrics fail validation.
func (s *Service) Ingest(ctx context.Context, req usagedomain.CreateRequest) (*usagedomain.UsageEvent, error) {
	d, err := emissiondomain.ParseDomain(req.Domain)
	if err != nil {
		s.obsMetrics.RecordUsageRejected(ctx, req.Domain, "unknown_domain")
		return nil, err
	}

	owner, ok := s.resolver.Owner(identity.RequestFromContext(ctx, req.Email))
	if !ok {
		s.obsMetrics.RecordUsageRejected(ctx, string(d), "identity_unresolved")
		return nil, usagedomain.ErrIdentityUnresolved
	}

	table := s.factors.Table()
	s.obsMetrics.RecordFactorTableRead(ctx, table.Version)

	record, err := s.calculators.Calculate(d, emissiondomain.Metrics(req.Metrics), s.factors)
	if err != nil {
		s.obsMetrics.RecordUsageRejected(ctx, string(d), "invalid_metrics")
		return nil, err
	}

	recommendations := s.recommender.Generate(record)
	if recommendations == nil {
		recommendations = []emissiondomain.Recommendation{}
	}

	now := s.clock.Now().UTC()
	recordedAt := now
	if req.RecordedAt != nil && !req.RecordedAt.IsZero() {
		recordedAt = req.RecordedAt.UTC()
	}

	event := &usagedomain.UsageEvent{
		ID:              s.genID.Generate(),
		OwnerID:         owner.ID,
		OwnerEmail:      owner.Email,
		Domain:          string(d),
		Source:          usagedomain.NormalizeLabel(record.Source),
		Region:          usagedomain.NormalizeLabel(record.Region),
		Metrics:         datatypes.JSONMap(req.Metrics),
		Emissions:       datatypes.NewJSONType(record.Breakdown()),
		TotalEmission:   record.Total,
		RewardPoints:    record.RewardPoints,
		Recommendations: datatypes.NewJSONSlice(recommendations),
		RecordedAt:      recordedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, event); err != nil {
		s.obsMetrics.RecordUsageRejected(ctx, string(d), "store_unavailable")
		return nil, s.storeErr("insert usage event", err)
	}

	s.obsMetrics.RecordUsageIngest(ctx, event.Domain, event.Source, event.TotalEmission, event.RewardPoints)
	s.log.Debug("usage event stored",
		zap.String("usage_event_id", event.ID.String()),
		zap.String("domain", event.Domain),
		zap.String("factor_version", table.Version),
		zap.Float64("total_emission", event.TotalEmission),
		zap.Int("recommendations", len(event.Recommendations)),
	)
	return event, nil
}

// Query aggregates the caller's records into a chronological series and
// derives the trend between its last two buckets.
func (s *Service) Query(ctx context.Context, req usagedomain.QueryRequest) (usagedomain.QueryResponse, error) {
	tf, err := aggregate.ParseTimeframe(req.Timeframe)
	if err != nil {
		return usagedomain.QueryResponse{}, err
	}
	criteria, err := buildCriteria(req.Domain, req.Source, req.Region, req.StartDate, req.EndDate)
	if err != nil {
		return usagedomain.QueryResponse{}, err
	}

	empty := usagedomain.QueryResponse{Series: []aggregate.Bucket{}}
	filter := s.resolver.Resolve(identity.RequestFromContext(ctx, req.Email))
	if filter.Empty() {
		return empty, nil
	}

	rows, err := s.repo.Series(ctx, s.db, filter, criteria)
	if err != nil {
		return usagedomain.QueryResponse{}, s.storeErr("load usage series", err)
	}
	if len(rows) == 0 {
		return empty, nil
	}

	points := make([]aggregate.Point, 0, len(rows))
	for _, row := range rows {
		points = append(points, aggregate.Point{
			Timestamp:  row.RecordedAt,
			Categories: row.Emissions.Data(),
			Total:      row.TotalEmission,
		})
	}

	series := aggregate.Chronological(s.aggregator.Aggregate(points, tf))
	return usagedomain.QueryResponse{
		Series: series,
		Trend:  aggregate.Trend(series),
	}, nil
}

func (s *Service) History(ctx context.Context, req usagedomain.HistoryRequest) (usagedomain.HistoryResponse, error) {
	page := req.Page.Normalize()
	criteria, err := buildCriteria(req.Domain, "", "", req.StartDate, req.EndDate)
	if err != nil {
		return usagedomain.HistoryResponse{}, err
	}

	filter := s.resolver.Resolve(identity.RequestFromContext(ctx, req.Email))
	if filter.Empty() {
		return usagedomain.HistoryResponse{
			PageInfo: pagination.BuildPageInfo(page, 0),
			Items:    []usagedomain.UsageEvent{},
		}, nil
	}

	query := &usagedomain.UsageEvent{Domain: criteria.Domain}
	opts := []option.QueryOption{
		option.WithScope(filter.Scope()),
		option.WithTimeRange("recorded_at", criteria.From, criteria.To),
	}

	total, err := s.usagerepo.Count(ctx, query, opts...)
	if err != nil {
		return usagedomain.HistoryResponse{}, s.storeErr("count usage history", err)
	}

	items, err := s.usagerepo.Find(ctx, query, append(opts,
		option.WithOrder("recorded_at DESC"),
		option.WithOrder("id DESC"),
		option.ApplyPagination(page),
	)...)
	if err != nil {
		return usagedomain.HistoryResponse{}, s.storeErr("list usage history", err)
	}

	records := make([]usagedomain.UsageEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, *item)
	}

	return usagedomain.HistoryResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Items:    records,
	}, nil
}

// Stats sums the caller's records per domain and computes the travel
// savings against a reference car.
func (s *Service) Stats(ctx context.Context, req usagedomain.StatsRequest) (usagedomain.StatsResponse, error) {
	criteria, err := buildCriteria("", "", "", req.StartDate, req.EndDate)
	if err != nil {
		return usagedomain.StatsResponse{}, err
	}

	resp := usagedomain.StatsResponse{Domains: []usagedomain.DomainStats{}}
	filter := s.resolver.Resolve(identity.RequestFromContext(ctx, req.Email))
	if filter.Empty() {
		return resp, nil
	}

	totals, err := s.repo.DomainTotals(ctx, s.db, filter, criteria)
	if err != nil {
		return usagedomain.StatsResponse{}, s.storeErr("sum usage by domain", err)
	}
	for _, row := range totals {
		resp.Domains = append(resp.Domains, usagedomain.DomainStats(row))
		resp.Count += row.Count
		resp.TotalEmission += row.TotalEmission
		resp.RewardPoints += row.RewardPoints
	}

	criteria.Domain = string(emissiondomain.DomainTravel)
	legs, err := s.repo.Metrics(ctx, s.db, filter, criteria)
	if err != nil {
		return usagedomain.StatsResponse{}, s.storeErr("load travel metrics", err)
	}
	for _, leg := range legs {
		distance := cast.ToFloat64(leg["distanceKm"])
		emitted := cast.ToFloat64(leg["co2Emissions"])
		resp.TravelSavings += calculator.CarEquivalent(distance) - emitted
	}

	return resp, nil
}

func (s *Service) Get(ctx context.Context, req usagedomain.GetRequest) (*usagedomain.UsageEvent, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	return s.findOwned(ctx, id, req.Email)
}

// Delete removes a record the caller owns. A record owned by someone else
// is reported as not found.
func (s *Service) Delete(ctx context.Context, req usagedomain.GetRequest) error {
	id, err := parseID(req.ID)
	if err != nil {
		return err
	}
	filter := s.resolver.Resolve(identity.RequestFromContext(ctx, req.Email))
	if filter.Empty() {
		return usagedomain.ErrRecordNotFound
	}

	affected, err := s.usagerepo.Delete(ctx, &usagedomain.UsageEvent{ID: id}, option.WithScope(filter.Scope()))
	if err != nil {
		return s.storeErr("delete usage event", err)
	}
	if affected == 0 {
		return usagedomain.ErrRecordNotFound
	}

	s.log.Info("usage event deleted", zap.String("usage_event_id", id.String()))
	return nil
}

// UpdateMetrics replaces the stored source metrics. The new metrics must be
// valid for the record's domain, but the frozen emission is left as it was.
func (s *Service) UpdateMetrics(ctx context.Context, req usagedomain.UpdateMetricsRequest) (*usagedomain.UsageEvent, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	event, err := s.findOwned(ctx, id, req.Email)
	if err != nil {
		return nil, err
	}

	if _, err := s.calculators.Calculate(emissiondomain.Domain(event.Domain), emissiondomain.Metrics(req.Metrics), s.factors); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	_, err = s.usagerepo.Update(ctx, &usagedomain.UsageEvent{ID: event.ID}, map[string]any{
		"metrics":    datatypes.JSONMap(req.Metrics),
		"updated_at": now,
	})
	if err != nil {
		return nil, s.storeErr("update usage metrics", err)
	}

	event.Metrics = datatypes.JSONMap(req.Metrics)
	event.UpdatedAt = now
	return event, nil
}

func (s *Service) findOwned(ctx context.Context, id snowflake.ID, email string) (*usagedomain.UsageEvent, error) {
	filter := s.resolver.Resolve(identity.RequestFromContext(ctx, email))
	if filter.Empty() {
		return nil, usagedomain.ErrRecordNotFound
	}

	event, err := s.usagerepo.FindOne(ctx, &usagedomain.UsageEvent{ID: id}, option.WithScope(filter.Scope()))
	if err != nil {
		return nil, s.storeErr("find usage event", err)
	}
	if event == nil {
		return nil, usagedomain.ErrRecordNotFound
	}
	return event, nil
}

// storeErr logs a persistence failure and wraps it as ErrStoreUnavailable.
// Callers never retry: inserts are not idempotent.
func (s *Service) storeErr(op string, err error) error {
	s.log.Error("usage store failure",
		zap.String("op", op),
		zap.Bool("transient", pkgdb.IsUnavailableErr(err)),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %s: %w", usagedomain.ErrStoreUnavailable, op, err)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, usagedomain.ErrInvalidID
	}
	return id, nil
}

func buildCriteria(rawDomain, source, region string, from, to *time.Time) (usagedomain.Criteria, error) {
	c := usagedomain.Criteria{
		Source: usagedomain.NormalizeLabel(source),
		Region: usagedomain.NormalizeLabel(region),
		From:   from,
		To:     to,
	}
	if strings.TrimSpace(rawDomain) != "" {
		d, err := emissiondomain.ParseDomain(rawDomain)
		if err != nil {
			return usagedomain.Criteria{}, err
		}
		c.Domain = string(d)
	}
	if from != nil && to != nil && to.Before(*from) {
		return usagedomain.Criteria{}, usagedomain.ErrInvalidDateRange
	}
	return c, nil
}
