package repository

import (
	"context"
	"errors"
	"reflect"

	"github.com/smallbiznis/footprint/pkg/db/option"
	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (r *store[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var result []*T
	stmt := r.buildQuery(ctx, query, opts...)
	err := stmt.Find(&result).Error
	return result, err
}

// FindOne returns nil, nil when nothing matches.
func (r *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var result T
	stmt := r.buildQuery(ctx, query, opts...)
	err := stmt.Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	var count int64
	err := r.buildQuery(ctx, query, opts...).Count(&count).Error
	return count, err
}

func (r *store[T]) Create(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

func (r *store[T]) BatchCreate(ctx context.Context, resources []*T) error {
	if len(resources) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Create(resources).Error
}

// Update sets values on every row matching query and opts.
func (r *store[T]) Update(ctx context.Context, query *T, values map[string]any, opts ...option.QueryOption) (int64, error) {
	res := r.buildQuery(ctx, query, opts...).Updates(values)
	return res.RowsAffected, res.Error
}

// Delete removes every row matching query and opts. A zero-valued query
// with no options is refused rather than deleting the table.
func (r *store[T]) Delete(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	if len(opts) == 0 && isZero(query) {
		return 0, gorm.ErrMissingWhereClause
	}
	res := r.buildQuery(ctx, query, opts...).Delete(new(T))
	return res.RowsAffected, res.Error
}

func (r *store[T]) buildQuery(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	db := r.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		db = db.Where(filter)
	}

	for _, opt := range opts {
		db = opt.Apply(db)
	}

	return db
}

func isZero[T any](v *T) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).Elem().IsZero()
}
