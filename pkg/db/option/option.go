package option

import (
	"time"

	"github.com/smallbiznis/footprint/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption adjusts a gorm statement built by a repository.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type optionFunc func(db *gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// WithScope applies an arbitrary gorm scope.
func WithScope(scope func(*gorm.DB) *gorm.DB) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Scopes(scope) })
}

// WithTimeRange bounds column to [from, to]; nil bounds are open.
func WithTimeRange(column string, from, to *time.Time) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where(column+" >= ?", from.UTC())
		}
		if to != nil {
			db = db.Where(column+" <= ?", to.UTC())
		}
		return db
	})
}

// WithOrder appends an ORDER BY clause.
func WithOrder(order string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB { return db.Order(order) })
}

// ApplyPagination limits the statement to one page.
func ApplyPagination(p pagination.Page) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		p = p.Normalize()
		return db.Offset(p.Offset()).Limit(p.Limit)
	})
}
