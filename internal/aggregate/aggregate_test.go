package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func point(ts string, total float64, categories map[string]float64) Point {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return Point{Timestamp: t, Total: total, Categories: categories}
}

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		raw     string
		want    Timeframe
		wantErr bool
	}{
		{raw: "", want: Daily},
		{raw: "hourly", want: Hourly},
		{raw: " Weekly ", want: Weekly},
		{raw: "MONTHLY", want: Monthly},
		{raw: "yearly", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTimeframe(tt.raw)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidTimeframe)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestBucketKey(t *testing.T) {
	ts := time.Date(2024, 3, 6, 14, 37, 12, 0, time.UTC)

	tests := []struct {
		tf    Timeframe
		key   string
		start time.Time
	}{
		{tf: Hourly, key: "2024-03-06T14:00", start: time.Date(2024, 3, 6, 14, 0, 0, 0, time.UTC)},
		{tf: Daily, key: "2024-03-06", start: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)},
		{tf: Weekly, key: "2024-W10", start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)},
		{tf: Monthly, key: "2024-03", start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.tf), func(t *testing.T) {
			key, start := BucketKey(ts, tt.tf)
			assert.Equal(t, tt.key, key)
			assert.True(t, tt.start.Equal(start), "start %s != %s", start, tt.start)
		})
	}
}

func TestBucketKeyUsesUTC(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	ts := time.Date(2024, 3, 7, 2, 0, 0, 0, jakarta)

	key, _ := BucketKey(ts, Daily)
	assert.Equal(t, "2024-03-06", key)
}

func TestISOWeekMatchesCalendar(t *testing.T) {
	start := time.Date(2019, 12, 20, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3*366; i++ {
		day := start.AddDate(0, 0, i)
		wantYear, wantWeek := day.ISOWeek()
		year, week := ISOWeek(day)
		if year != wantYear || week != wantWeek {
			t.Fatalf("ISOWeek(%s) = %d-W%d, want %d-W%d", day.Format("2006-01-02"), year, week, wantYear, wantWeek)
		}
	}
}

func TestISOWeekYearBoundaries(t *testing.T) {
	key, _ := BucketKey(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), Weekly)
	assert.Equal(t, "2020-W53", key)

	key, _ = BucketKey(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC), Weekly)
	assert.Equal(t, "2025-W1", key)
}

func TestAggregateSameISOWeek(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	buckets := agg.Aggregate([]Point{
		point("2024-03-04T08:00:00Z", 2, map[string]float64{"compute": 2}),
		point("2024-03-10T23:59:00Z", 3, map[string]float64{"compute": 1, "network": 2}),
	}, Weekly)

	require.Len(t, buckets, 1)
	assert.Equal(t, "2024-W10", buckets[0].Key)
	assert.Equal(t, 2, buckets[0].Count)
	assert.InDelta(t, 5.0, buckets[0].Total, 1e-9)
	assert.InDelta(t, 3.0, buckets[0].Categories["compute"], 1e-9)
	assert.InDelta(t, 2.0, buckets[0].Categories["network"], 1e-9)
}

func TestAggregateKeepsFirstSeenOrder(t *testing.T) {
	agg := NewAggregator(nil)

	buckets := agg.Aggregate([]Point{
		point("2024-03-02T10:00:00Z", 1, nil),
		point("2024-03-01T10:00:00Z", 1, nil),
		point("2024-03-02T11:00:00Z", 1, nil),
	}, Daily)

	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-03-02", buckets[0].Key)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, "2024-03-01", buckets[1].Key)

	ordered := Chronological(buckets)
	assert.Equal(t, "2024-03-01", ordered[0].Key)
	assert.Equal(t, "2024-03-02", ordered[1].Key)
	assert.Equal(t, "2024-03-02", buckets[0].Key, "input must not be reordered")
}

func TestAggregateSkipsZeroTimestamps(t *testing.T) {
	agg := NewAggregator(zap.NewNop())

	buckets := agg.Aggregate([]Point{
		{Total: 99},
		point("2024-03-01T10:00:00Z", 1, nil),
	}, Monthly)

	require.Len(t, buckets, 1)
	assert.Equal(t, "2024-03", buckets[0].Key)
	assert.InDelta(t, 1.0, buckets[0].Total, 1e-9)
}

func TestAggregateEmpty(t *testing.T) {
	buckets := NewAggregator(zap.NewNop()).Aggregate(nil, Hourly)
	assert.NotNil(t, buckets)
	assert.Empty(t, buckets)
}

func TestTrend(t *testing.T) {
	delta := Trend([]Bucket{{Total: 100}, {Total: 150}})
	assert.Equal(t, TrendDelta{TotalKey: 50}, delta)

	delta = Trend([]Bucket{{Total: 0}, {Total: 50}})
	assert.Equal(t, TrendDelta{TotalKey: 0}, delta)

	assert.Nil(t, Trend(nil))
	assert.Nil(t, Trend([]Bucket{{Total: 10}}))
}

func TestTrendComparesLastTwoBuckets(t *testing.T) {
	delta := Trend([]Bucket{
		{Total: 1000, Categories: map[string]float64{"compute": 1000}},
		{Total: 20, Categories: map[string]float64{"compute": 10, "storage": 10}},
		{Total: 30, Categories: map[string]float64{"compute": 5, "network": 25}},
	})

	require.Len(t, delta, 4)
	assert.InDelta(t, -50.0, delta["compute"], 1e-9)
	assert.InDelta(t, -100.0, delta["storage"], 1e-9)
	assert.InDelta(t, 0.0, delta["network"], 1e-9)
	assert.InDelta(t, 50.0, delta[TotalKey], 1e-9)
}
