package learner

import (
	"math"

	"eldersentry/store"
)

// Metrics holds everything the nightly pass derives from one day's grid
// measured against the pre-update model.
type Metrics struct {
	NLL      map[string]float64 // per-channel NLL
	NLLTotal float64

	ExpectedCount float64
	ObservedCount int
	CountZ        float64

	AwAccuracy     float64
	AwBalancedAcc  float64
	AwActiveRecall float64

	AvgCIWidth float64
}

// Calculate computes every daily metric for the given slot grid against the
// given (pre-update) model. awakeStart/awakeEnd are slot indices, typically
// hour*4. Pure: no clocks, no storage.
func Calculate(grid map[string][]int, model store.Model, awakeStart, awakeEnd int, channels []string) Metrics {
	m := Metrics{NLL: make(map[string]float64, len(channels))}

	// Per-channel NLL against the pre-update posteriors.
	for _, ch := range channels {
		var nll float64
		for s := 0; s < store.SlotsPerDay; s++ {
			nll += model[ch][s].NLL(grid[ch][s])
		}
		m.NLL[ch] = nll
		m.NLLTotal += nll
	}

	// Event-count deviation. Active cells are Bernoulli(p); the day total is
	// approximately normal with mean Σp and variance Σp(1−p).
	var expected, variance float64
	var observed int
	for _, ch := range channels {
		for s := 0; s < store.SlotsPerDay; s++ {
			p := model[ch][s].Mean()
			expected += p
			variance += p * (1 - p)
			observed += grid[ch][s]
		}
	}
	m.ExpectedCount = expected
	m.ObservedCount = observed
	if variance > 0 {
		m.CountZ = (float64(observed) - expected) / math.Sqrt(variance)
	}

	m.AwAccuracy, m.AwBalancedAcc, m.AwActiveRecall =
		awakeAccuracy(grid, model, awakeStart, awakeEnd, channels)

	// Average credible-interval width across every cell.
	var widthSum float64
	var cells int
	for _, ch := range channels {
		for s := 0; s < store.SlotsPerDay; s++ {
			widthSum += model[ch][s].CIWidth()
			cells++
		}
	}
	if cells > 0 {
		m.AvgCIWidth = widthSum / float64(cells)
	} else {
		m.AvgCIWidth = 1.0
	}

	return m
}

// awakeAccuracy scores the model as a binary predictor (active iff mean ≥ 0.5)
// over the awake slot window, across all channels.
func awakeAccuracy(grid map[string][]int, model store.Model, awakeStart, awakeEnd int, channels []string) (accuracy, balanced, recall float64) {
	var tp, tn, fp, fn int
	for _, ch := range channels {
		for s := awakeStart; s < awakeEnd; s++ {
			predicted := 0
			if model[ch][s].Mean() >= 0.5 {
				predicted = 1
			}
			actual := grid[ch][s]
			switch {
			case predicted == 1 && actual == 1:
				tp++
			case predicted == 0 && actual == 0:
				tn++
			case predicted == 1 && actual == 0:
				fp++
			default:
				fn++
			}
		}
	}

	total := tp + tn + fp + fn
	if total > 0 {
		accuracy = float64(tp+tn) / float64(total)
	}
	var sensitivity, specificity float64
	if tp+fn > 0 {
		sensitivity = float64(tp) / float64(tp+fn)
	}
	if tn+fp > 0 {
		specificity = float64(tn) / float64(tn+fp)
	}
	balanced = (sensitivity + specificity) / 2
	recall = sensitivity
	return accuracy, balanced, recall
}
