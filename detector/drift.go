package detector

import (
	"errors"
	"math"
	"time"

	"eldersentry/store"
)

// ErrShortBaseline indicates not enough history to compare weekly profiles.
var ErrShortBaseline = errors.New("detector: not enough history for drift")

// driftWindow constrains the warping band. A day profile is 96 slots; ±8
// slots (two hours) of flex absorbs shifted meal or wake times without
// letting morning match evening.
const driftWindow = 8

// WarpDistance measures how far apart two equal-grained activity profiles
// are, allowing limited temporal warping: a routine shifted by an hour is
// close, a routine with a missing morning is far. Dynamic-programming over
// two rolling rows, O(len(a)·len(b)) time, O(len(b)) memory. Cells outside
// the ±window band are impassable. Empty input yields 0.
func WarpDistance(a, b []float64, window int) float64 {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return 0
	}
	if window <= 0 {
		window = int(math.Max(float64(n), float64(m)))
	}

	inf := math.Inf(1)
	prev := make([]float64, m+1)
	curr := make([]float64, m+1)
	for j := 1; j <= m; j++ {
		prev[j] = inf
	}

	for i := 1; i <= n; i++ {
		curr[0] = inf
		for j := 1; j <= m; j++ {
			if d := i - j; d > window || -d > window {
				curr[j] = inf
				continue
			}
			cost := math.Abs(a[i-1] - b[j-1])
			best := prev[j] // insertion
			if curr[j-1] < best {
				best = curr[j-1] // deletion
			}
			if prev[j-1] < best {
				best = prev[j-1] // match
			}
			curr[j] = cost + best
		}
		prev, curr = curr, prev
	}
	return prev[m]
}

// WeeklyProfileDrift compares the mean slot-activity profile of the last
// seven days against the three weeks before that. The result is the warp
// distance between the two 96-slot profiles: 0 means the weekly rhythm is
// unchanged, larger values mean the shape of the day itself is drifting.
func WeeklyProfileDrift(s *store.Store, channels []string, now time.Time) (float64, error) {
	today := now.Format(store.DateLayout)
	weekAgo := now.AddDate(0, 0, -7).Format(store.DateLayout)
	monthAgo := now.AddDate(0, 0, -28).Format(store.DateLayout)

	recent, recentDays, err := s.MeanSlotProfile(weekAgo, today, channels)
	if err != nil {
		return 0, err
	}
	baseline, baselineDays, err := s.MeanSlotProfile(monthAgo, weekAgo, channels)
	if err != nil {
		return 0, err
	}
	if recentDays < 5 || baselineDays < 14 {
		return 0, ErrShortBaseline
	}
	return WarpDistance(recent, baseline, driftWindow), nil
}
