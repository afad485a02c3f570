package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

var errInvalidTime = errors.New("invalid_time")

// queryValue returns the first non-empty query parameter among names.
func queryValue(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.Query(name)); v != "" {
			return v
		}
	}
	return ""
}

// parseOptionalTime accepts RFC 3339 or a bare date. A bare end date covers
// the whole day.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, errInvalidTime
}

// parseDateRange reads start_date/end_date (or startDate/endDate).
func parseDateRange(c *gin.Context) (*time.Time, *time.Time, error) {
	start, err := parseOptionalTime(queryValue(c, "start_date", "startDate"), false)
	if err != nil {
		return nil, nil, newValidationError("start_date", "invalid_time", "expected RFC 3339 or YYYY-MM-DD")
	}
	end, err := parseOptionalTime(queryValue(c, "end_date", "endDate"), true)
	if err != nil {
		return nil, nil, newValidationError("end_date", "invalid_time", "expected RFC 3339 or YYYY-MM-DD")
	}
	return start, end, nil
}
