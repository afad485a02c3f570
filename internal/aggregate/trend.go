package aggregate

// TotalKey is the TrendDelta entry for the bucket total.
const TotalKey = "total"

// TrendDelta maps each category, plus TotalKey, to a percent change.
type TrendDelta map[string]float64

// Trend compares the last two buckets in the order given. It returns nil
// when there are fewer than two buckets.
func Trend(buckets []Bucket) TrendDelta {
	if len(buckets) < 2 {
		return nil
	}
	prev := buckets[len(buckets)-2]
	cur := buckets[len(buckets)-1]

	delta := TrendDelta{}
	for category := range prev.Categories {
		delta[category] = PercentChange(prev.Categories[category], cur.Categories[category])
	}
	for category := range cur.Categories {
		if _, ok := delta[category]; !ok {
			delta[category] = PercentChange(prev.Categories[category], cur.Categories[category])
		}
	}
	delta[TotalKey] = PercentChange(prev.Total, cur.Total)
	return delta
}

// PercentChange is (cur-prev)/prev*100, or 0 when prev is 0.
func PercentChange(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur - prev) / prev * 100
}
