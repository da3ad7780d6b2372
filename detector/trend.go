package detector

import (
	"time"

	"eldersentry/store"
)

// RegressionSlope fits y = a + b·x over x = 0..n−1 by ordinary least squares
// and returns b. Fewer than two points yield 0.
func RegressionSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	xMean := float64(n-1) / 2
	var yMean float64
	for _, y := range values {
		yMean += y
	}
	yMean /= float64(n)

	var num, den float64
	for i, y := range values {
		dx := float64(i) - xMean
		num += dx * (y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// ChannelTrend computes the OLS slope of a channel's daily event counts over
// the trailing `days` days. Returns (0, false) when fewer than minDays of
// calendar exist; missing days count as zero activity, which is exactly the
// signal the regression must see.
func ChannelTrend(s *store.Store, channel string, days, minDays int, now time.Time) (float64, bool, error) {
	counts, err := s.DailyChannelCounts(channel, days, now)
	if err != nil {
		return 0, false, err
	}
	if len(counts) < minDays {
		return 0, false, nil
	}
	values := make([]float64, len(counts))
	for i, c := range counts {
		values[i] = float64(c)
	}
	return RegressionSlope(values), true, nil
}

// AllTrends computes the slope per channel. Channels with insufficient data
// are omitted from the result.
func AllTrends(s *store.Store, channels []string, days, minDays int, now time.Time) (map[string]float64, error) {
	out := make(map[string]float64, len(channels))
	for _, ch := range channels {
		slope, ok, err := ChannelTrend(s, ch, days, minDays, now)
		if err != nil {
			return nil, err
		}
		if ok {
			out[ch] = slope
		}
	}
	return out, nil
}
