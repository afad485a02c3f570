package calculator

import (
	"math"
	"strings"

	"github.com/smallbiznis/footprint/internal/emission/domain"
	"github.com/spf13/cast"
)

const (
	reasonRequired   = "is required"
	reasonNotNumber  = "must be a number"
	reasonNegative   = "must not be negative"
	reasonPercentage = "must be between 0 and 100"
	reasonNotObject  = "must be an object"
	reasonNotBool    = "must be a boolean"
	reasonNotString  = "must be a string"
)

// fields reads typed values out of a raw metrics map and collects every
// problem instead of stopping at the first one.
type fields struct {
	values domain.Metrics
	prefix string
	issues *[]domain.FieldIssue
}

func newFields(values domain.Metrics) *fields {
	return &fields{values: values, issues: &[]domain.FieldIssue{}}
}

func (f *fields) name(key string) string {
	if f.prefix == "" {
		return key
	}
	return f.prefix + "." + key
}

func (f *fields) reject(key, reason string) {
	*f.issues = append(*f.issues, domain.FieldIssue{Field: f.name(key), Reason: reason})
}

func (f *fields) lookup(key string) (any, bool) {
	v, ok := f.values[key]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return v, true
}

func (f *fields) has(key string) bool {
	_, ok := f.lookup(key)
	return ok
}

func (f *fields) requireString(key string) string {
	v, ok := f.lookup(key)
	if !ok {
		f.reject(key, reasonRequired)
		return ""
	}
	return f.toString(key, v)
}

func (f *fields) optionalString(key, def string) string {
	v, ok := f.lookup(key)
	if !ok {
		return def
	}
	return f.toString(key, v)
}

func (f *fields) toString(key string, v any) string {
	switch v.(type) {
	case map[string]any, []any, bool:
		f.reject(key, reasonNotString)
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		f.reject(key, reasonNotString)
		return ""
	}
	return strings.TrimSpace(s)
}

func (f *fields) requireNumber(key string) float64 {
	v, ok := f.lookup(key)
	if !ok {
		f.reject(key, reasonRequired)
		return 0
	}
	return f.toNumber(key, v)
}

func (f *fields) optionalNumber(key string) float64 {
	v, ok := f.lookup(key)
	if !ok {
		return 0
	}
	return f.toNumber(key, v)
}

func (f *fields) requirePercentage(key string) float64 {
	return f.percentage(key, f.requireNumber(key))
}

func (f *fields) optionalPercentage(key string) float64 {
	return f.percentage(key, f.optionalNumber(key))
}

func (f *fields) percentage(key string, v float64) float64 {
	if v > 100 {
		f.reject(key, reasonPercentage)
		return 0
	}
	return v
}

func (f *fields) toNumber(key string, v any) float64 {
	if _, isBool := v.(bool); isBool {
		f.reject(key, reasonNotNumber)
		return 0
	}
	if s, isString := v.(string); isString {
		v = strings.TrimSpace(s)
	}
	n, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		f.reject(key, reasonNotNumber)
		return 0
	}
	if n < 0 {
		f.reject(key, reasonNegative)
		return 0
	}
	return n
}

func (f *fields) optionalBool(key string) bool {
	v, ok := f.lookup(key)
	if !ok {
		return false
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		f.reject(key, reasonNotBool)
		return false
	}
	return b
}

// nested returns a reader over a sub-object and whether it was supplied.
func (f *fields) nested(key string) (*fields, bool) {
	v, ok := f.lookup(key)
	if !ok {
		return nil, false
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		f.reject(key, reasonNotObject)
		return nil, false
	}
	return &fields{values: m, prefix: f.name(key), issues: f.issues}, true
}

func (f *fields) err() error {
	if len(*f.issues) == 0 {
		return nil
	}
	return &domain.MetricsError{Issues: *f.issues}
}
