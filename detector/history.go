package detector

import (
	"math"

	"eldersentry/store"
)

// HistoryStats summarises the rolling baseline of normal days.
// Ready is false when fewer than minDays rows qualify; callers must then
// treat the NLL contribution as zero.
type HistoryStats struct {
	Ready   bool
	MeanNLL float64
	StdNLL  float64
	NDays   int
}

// NormalStats computes mean/std of nll_total over up to maxDays most recent
// normal, post-learning days, excluding excludeDate. A zero std (identical
// NLLs) is treated as 1 so the z-score stays defined.
func NormalStats(s *store.Store, maxDays, minDays int, excludeDate string) (HistoryStats, error) {
	nlls, err := s.NormalNLLHistory(maxDays, excludeDate)
	if err != nil {
		return HistoryStats{}, err
	}
	if len(nlls) < minDays {
		return HistoryStats{Ready: false, StdNLL: 1}, nil
	}

	var sum float64
	for _, v := range nlls {
		sum += v
	}
	mean := sum / float64(len(nlls))

	std := 1.0
	if len(nlls) > 1 {
		var ss float64
		for _, v := range nlls {
			d := v - mean
			ss += d * d
		}
		std = math.Sqrt(ss / float64(len(nlls)-1)) // sample std
	}
	if std == 0 {
		std = 1
	}

	return HistoryStats{Ready: true, MeanNLL: mean, StdNLL: std, NDays: len(nlls)}, nil
}
