package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrInvalidTimeframe = errors.New("invalid_timeframe")

// Timeframe is the width of an aggregation bucket.
type Timeframe string

const (
	Hourly  Timeframe = "hourly"
	Daily   Timeframe = "daily"
	Weekly  Timeframe = "weekly"
	Monthly Timeframe = "monthly"
)

// ParseTimeframe defaults to Daily when raw is empty.
func ParseTimeframe(raw string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(raw))); tf {
	case "":
		return Daily, nil
	case Hourly, Daily, Weekly, Monthly:
		return tf, nil
	default:
		return "", ErrInvalidTimeframe
	}
}

// Point is one emission record as seen by the aggregator.
type Point struct {
	Timestamp  time.Time
	Categories map[string]float64
	Total      float64
}

// Bucket sums the points that share a period key.
type Bucket struct {
	Key         string             `json:"key"`
	PeriodStart time.Time          `json:"period_start"`
	Categories  map[string]float64 `json:"categories"`
	Total       float64            `json:"total"`
	Count       int                `json:"count"`
}

type Aggregator struct {
	log *zap.Logger
}

func NewAggregator(log *zap.Logger) *Aggregator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{log: log.Named("aggregate")}
}

// Aggregate groups points into buckets keyed by timeframe. Buckets come out
// in the order their key was first seen; points without a timestamp are skipped.
func (a *Aggregator) Aggregate(points []Point, tf Timeframe) []Bucket {
	index := map[string]int{}
	buckets := make([]Bucket, 0)
	skipped := 0

	for _, p := range points {
		if p.Timestamp.IsZero() {
			skipped++
			continue
		}
		key, start := BucketKey(p.Timestamp, tf)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{
				Key:         key,
				PeriodStart: start,
				Categories:  map[string]float64{},
			})
		}
		b := &buckets[i]
		for category, v := range p.Categories {
			b.Categories[category] += v
		}
		b.Total += p.Total
		b.Count++
	}

	if skipped > 0 {
		a.log.Warn("skipped records without timestamp",
			zap.Int("skipped", skipped),
			zap.String("timeframe", string(tf)),
		)
	}
	return buckets
}

// BucketKey returns the period key and period start (UTC) of t.
func BucketKey(t time.Time, tf Timeframe) (string, time.Time) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)

	switch tf {
	case Hourly:
		start := t.Truncate(time.Hour)
		return start.Format("2006-01-02T15:00"), start
	case Weekly:
		year, week := ISOWeek(t)
		weekday := int(day.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := day.AddDate(0, 0, 1-weekday)
		return fmt.Sprintf("%d-W%d", year, week), start
	case Monthly:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start.Format("2006-01"), start
	default:
		return day.Format("2006-01-02"), day
	}
}

// ISOWeek shifts t to the Thursday of its week; that Thursday's year is the
// ISO year and ceil(dayOfYear/7) is the week number.
func ISOWeek(t time.Time) (year, week int) {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	thursday := day.AddDate(0, 0, 4-weekday)
	return thursday.Year(), int(math.Ceil(float64(thursday.YearDay()) / 7))
}

// Chronological returns a copy of buckets ordered by period start.
func Chronological(buckets []Bucket) []Bucket {
	out := make([]Bucket, len(buckets))
	copy(out, buckets)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodStart.Before(out[j].PeriodStart)
	})
	return out
}
