package beta

import (
	"errors"
	"math"
)

// Sentinel errors returned by the beta package.
var (
	// ErrBadParams indicates alpha or beta is not strictly positive.
	ErrBadParams = errors.New("beta: alpha and beta must be positive")

	// ErrBadLevel indicates an unsupported credible-interval level.
	ErrBadLevel = errors.New("beta: level must be one of 0.90, 0.95, 0.99")
)

// Probability clamp bounds used by NLL so that log never sees 0 or 1.
const (
	minProb = 0.001
	maxProb = 0.999
)

// zFor maps a supported confidence level to its two-sided normal quantile.
func zFor(level float64) (float64, error) {
	switch level {
	case 0.90:
		return 1.645, nil
	case 0.95:
		return 1.96, nil
	case 0.99:
		return 2.576, nil
	default:
		return 0, ErrBadLevel
	}
}

// Conditioner is the single capability the learner needs from a model cell:
// something that can be conditioned on a binary observation and yields a
// probability. Posterior is the canonical implementation.
type Conditioner interface {
	// Mean returns the current probability estimate in [0, 1].
	Mean() float64
	// Update returns a new Conditioner incorporating one binary observation.
	Update(observed int) Conditioner
}

// Posterior holds the parameters of a Beta(α, β) posterior.
//
// Alpha counts prior pseudo-successes plus observed active days;
// Beta counts prior pseudo-failures plus observed inactive days.
// The zero value is invalid; use New.
type Posterior struct {
	Alpha float64
	Beta  float64
}

// New returns a Posterior with the given parameters.
// Both must be strictly positive, otherwise ErrBadParams.
func New(alpha, beta float64) (Posterior, error) {
	if alpha <= 0 || beta <= 0 {
		return Posterior{}, ErrBadParams
	}
	return Posterior{Alpha: alpha, Beta: beta}, nil
}

// Mean returns the posterior mean E[p] = α / (α + β).
func (p Posterior) Mean() float64 {
	return p.Alpha / (p.Alpha + p.Beta)
}

// Variance returns the posterior variance αβ / ((α+β)²(α+β+1)).
func (p Posterior) Variance() float64 {
	n := p.Alpha + p.Beta
	return (p.Alpha * p.Beta) / (n * n * (n + 1))
}

// Std returns the posterior standard deviation.
func (p Posterior) Std() float64 {
	return math.Sqrt(p.Variance())
}

// CredibleInterval returns the two-sided credible interval [lo, hi] at the
// given level using the normal approximation:
//
//	lo = max(0, mean − z·σ)
//	hi = min(1, mean + z·σ)
//
// Supported levels: 0.90 (z=1.645), 0.95 (z=1.96), 0.99 (z=2.576).
// Any other level returns ErrBadLevel.
func (p Posterior) CredibleInterval(level float64) (lo, hi float64, err error) {
	z, err := zFor(level)
	if err != nil {
		return 0, 0, err
	}
	m, s := p.Mean(), p.Std()
	lo = math.Max(0, m-z*s)
	hi = math.Min(1, m+z*s)
	return lo, hi, nil
}

// CIWidth returns the width of the 90% credible interval.
// Width is strictly decreasing in α+β when the mean is held fixed.
func (p Posterior) CIWidth() float64 {
	lo, hi, _ := p.CredibleInterval(0.90)
	return hi - lo
}

// NLL returns the negative log-likelihood of a binary observation under the
// posterior mean, with the mean clamped to [0.001, 0.999] so the result is
// always finite and non-negative:
//
//	observed = 1 → −log p
//	observed = 0 → −log (1 − p)
func (p Posterior) NLL(observed int) float64 {
	prob := math.Min(maxProb, math.Max(minProb, p.Mean()))
	if observed == 1 {
		return -math.Log(prob)
	}
	return -math.Log(1 - prob)
}

// UpdatePosterior returns a new Posterior conditioned on one observation:
// α+1 for an active day, β+1 for an inactive one. The receiver is never
// mutated.
func (p Posterior) UpdatePosterior(observed int) Posterior {
	if observed == 1 {
		return Posterior{Alpha: p.Alpha + 1, Beta: p.Beta}
	}
	return Posterior{Alpha: p.Alpha, Beta: p.Beta + 1}
}

// Update implements Conditioner over UpdatePosterior.
func (p Posterior) Update(observed int) Conditioner {
	return p.UpdatePosterior(observed)
}
