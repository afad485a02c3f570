package domain

import (
	"errors"
	"strings"
)

var (
	ErrInvalidMetrics = errors.New("invalid_metrics")
	ErrUnknownDomain  = errors.New("unknown_domain")
)

// FieldIssue describes one rejected metric field.
type FieldIssue struct {
	Field  string
	Reason string
}

// MetricsError lists every metric field that failed validation.
type MetricsError struct {
	Issues []FieldIssue
}

func (e *MetricsError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return ErrInvalidMetrics.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+" "+issue.Reason)
	}
	return ErrInvalidMetrics.Error() + ": " + strings.Join(parts, ", ")
}

func (e *MetricsError) Is(target error) bool {
	return target == ErrInvalidMetrics
}

// Fields returns the offending field names in reporting order.
func (e *MetricsError) Fields() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		out = append(out, issue.Field)
	}
	return out
}
