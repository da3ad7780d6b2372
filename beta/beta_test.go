package beta_test

import (
	"math"
	"testing"

	"eldersentry/beta"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_RejectsNonPositiveParams verifies ErrBadParams on invalid input.
func TestNew_RejectsNonPositiveParams(t *testing.T) {
	_, err := beta.New(0, 1)
	assert.ErrorIs(t, err, beta.ErrBadParams, "alpha=0 must error")

	_, err = beta.New(1, -2)
	assert.ErrorIs(t, err, beta.ErrBadParams, "negative beta must error")
}

// TestPosterior_Moments checks mean and variance against hand-computed values.
func TestPosterior_Moments(t *testing.T) {
	p, err := beta.New(2, 6)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, p.Mean(), 1e-12, "mean = α/(α+β)")
	// variance = 2*6 / (8^2 * 9) = 12/576
	assert.InDelta(t, 12.0/576.0, p.Variance(), 1e-12, "variance formula")
	assert.InDelta(t, math.Sqrt(12.0/576.0), p.Std(), 1e-12, "std = sqrt(variance)")
}

// TestPosterior_UniformPrior checks the Beta(1,1) starting point.
func TestPosterior_UniformPrior(t *testing.T) {
	p := beta.Posterior{Alpha: 1, Beta: 1}
	assert.Equal(t, 0.5, p.Mean(), "uniform prior mean is 1/2")
	assert.InDelta(t, 1.0/12.0, p.Variance(), 1e-12, "uniform prior variance is 1/12")
}

// TestCredibleInterval_Levels verifies all three supported z values and that
// an unsupported level returns ErrBadLevel.
func TestCredibleInterval_Levels(t *testing.T) {
	p := beta.Posterior{Alpha: 5, Beta: 5}
	m, s := p.Mean(), p.Std()

	for level, z := range map[float64]float64{0.90: 1.645, 0.95: 1.96, 0.99: 2.576} {
		lo, hi, err := p.CredibleInterval(level)
		require.NoError(t, err)
		assert.InDelta(t, math.Max(0, m-z*s), lo, 1e-12)
		assert.InDelta(t, math.Min(1, m+z*s), hi, 1e-12)
	}

	_, _, err := p.CredibleInterval(0.5)
	assert.ErrorIs(t, err, beta.ErrBadLevel)
}

// TestCredibleInterval_ClampsToUnitRange ensures bounds never leave [0, 1].
func TestCredibleInterval_ClampsToUnitRange(t *testing.T) {
	p := beta.Posterior{Alpha: 1, Beta: 1} // wide posterior, σ ≈ 0.289
	lo, hi, err := p.CredibleInterval(0.99)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, lo, 0.0)
	assert.LessOrEqual(t, hi, 1.0)
}

// TestCIWidth_ShrinksWithEvidence: width strictly decreases in α+β at fixed mean.
func TestCIWidth_ShrinksWithEvidence(t *testing.T) {
	prev := math.Inf(1)
	for _, n := range []float64{2, 4, 8, 16, 32, 64} {
		p := beta.Posterior{Alpha: n / 2, Beta: n / 2} // mean fixed at 0.5
		w := p.CIWidth()
		assert.Less(t, w, prev, "width must strictly shrink as evidence grows (n=%v)", n)
		prev = w
	}
}

// TestNLL_Properties covers clamping, non-negativity and both branches.
func TestNLL_Properties(t *testing.T) {
	p := beta.Posterior{Alpha: 9, Beta: 1} // mean 0.9

	assert.InDelta(t, -math.Log(0.9), p.NLL(1), 1e-12, "active observation")
	assert.InDelta(t, -math.Log(0.1), p.NLL(0), 1e-12, "inactive observation")
	assert.GreaterOrEqual(t, p.NLL(1), 0.0)
	assert.GreaterOrEqual(t, p.NLL(0), 0.0)

	// Extreme posterior: clamp keeps NLL finite.
	extreme := beta.Posterior{Alpha: 1e9, Beta: 1}
	assert.InDelta(t, -math.Log(0.999), extreme.NLL(1), 1e-9, "mean clamped to 0.999")
	assert.InDelta(t, -math.Log(0.001), extreme.NLL(0), 1e-9, "1-mean clamped to 0.001")
}

// TestUpdate_IsImmutable verifies the update laws and that the receiver
// never changes.
func TestUpdate_IsImmutable(t *testing.T) {
	p := beta.Posterior{Alpha: 3, Beta: 4}

	up1 := p.UpdatePosterior(1)
	assert.Equal(t, beta.Posterior{Alpha: 4, Beta: 4}, up1, "update(1) increments alpha")

	up0 := p.UpdatePosterior(0)
	assert.Equal(t, beta.Posterior{Alpha: 3, Beta: 5}, up0, "update(0) increments beta")

	assert.Equal(t, beta.Posterior{Alpha: 3, Beta: 4}, p, "receiver must not mutate")
}

// TestUpdate_MassGrowsByOne: α+β increases by exactly 1 per observation.
func TestUpdate_MassGrowsByOne(t *testing.T) {
	p := beta.Posterior{Alpha: 1, Beta: 1}
	for day := 0; day < 30; day++ {
		before := p.Alpha + p.Beta
		p = p.UpdatePosterior(day % 2)
		assert.Equal(t, before+1, p.Alpha+p.Beta, "day %d", day)
	}
}

// TestConditioner_Capability exercises the Conditioner interface path.
func TestConditioner_Capability(t *testing.T) {
	var c beta.Conditioner = beta.Posterior{Alpha: 1, Beta: 1}
	c = c.Update(1)
	assert.InDelta(t, 2.0/3.0, c.Mean(), 1e-12, "Beta(2,1) mean after one active day")
}
