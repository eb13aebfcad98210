package combo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/boat-better/internal/models"
)

func uniformVector(n int) models.ProbabilityVector {
	p := make([]float64, n)
	for i := range p {
		p[i] = 1.0 / float64(n)
	}
	return models.ProbabilityVector{First: p, Second: p, Third: p}
}

func TestEnumerateExactaCount(t *testing.T) {
	out, err := Enumerate(uniformVector(6), models.MarketTypeExacta)
	require.NoError(t, err)
	assert.Len(t, out, 30) // 6*5 ordered pairs

	seen := make(map[models.Combo]bool)
	for _, r := range out {
		assert.NotEqual(t, r.Combo.First, r.Combo.Second)
		assert.False(t, seen[r.Combo], "duplicate combo %s", r.Combo)
		seen[r.Combo] = true
	}
}

func TestEnumerateTrifectaCount(t *testing.T) {
	out, err := Enumerate(uniformVector(6), models.MarketTypeTrifecta)
	require.NoError(t, err)
	assert.Len(t, out, 120) // 6*5*4 ordered triples

	for _, r := range out {
		c := r.Combo
		assert.Equal(t, 3, c.Arity())
		assert.NotEqual(t, c.First, c.Second)
		assert.NotEqual(t, c.First, c.Third)
		assert.NotEqual(t, c.Second, c.Third)
	}
}

func TestEnumerateJointProbability(t *testing.T) {
	v := models.ProbabilityVector{
		First:  []float64{0.5, 0.2, 0.1, 0.1, 0.05, 0.05},
		Second: []float64{0.1, 0.4, 0.2, 0.1, 0.1, 0.1},
		Third:  []float64{0.1, 0.1, 0.3, 0.2, 0.2, 0.1},
	}

	out, err := Enumerate(v, models.MarketTypeExacta)
	require.NoError(t, err)

	// 1-2 = P(1 wins) * P(2 second) = 0.5 * 0.4, the highest joint mass
	assert.Equal(t, models.Combo{First: 1, Second: 2}, out[0].Combo)
	assert.InDelta(t, 0.20, out[0].JointProbability, 1e-12)

	tri, err := Enumerate(v, models.MarketTypeTrifecta)
	require.NoError(t, err)
	assert.Equal(t, models.Combo{First: 1, Second: 2, Third: 3}, tri[0].Combo)
	assert.InDelta(t, 0.5*0.4*0.3, tri[0].JointProbability, 1e-12)
}

func TestEnumerateZeroVectorYieldsEmpty(t *testing.T) {
	v := models.ProbabilityVector{
		First:  make([]float64, 6),
		Second: make([]float64, 6),
		Third:  make([]float64, 6),
	}

	out, err := Enumerate(v, models.MarketTypeExacta)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEnumerateDeterministicOrdering(t *testing.T) {
	v := uniformVector(6) // all joint probabilities tie

	first, err := Enumerate(v, models.MarketTypeExacta)
	require.NoError(t, err)
	second, err := Enumerate(v, models.MarketTypeExacta)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// With equal probabilities the whole ranking is the lexical order.
	assert.Equal(t, models.Combo{First: 1, Second: 2}, first[0].Combo)
	assert.Equal(t, models.Combo{First: 1, Second: 3}, first[1].Combo)
	assert.Equal(t, models.Combo{First: 6, Second: 5}, first[len(first)-1].Combo)
}

func TestEnumerateProbabilityMassBound(t *testing.T) {
	v := models.ProbabilityVector{
		First:  []float64{0.5, 0.2, 0.1, 0.1, 0.05, 0.05},
		Second: []float64{0.1, 0.4, 0.2, 0.1, 0.1, 0.1},
		Third:  []float64{0.1, 0.1, 0.3, 0.2, 0.2, 0.1},
	}

	out, err := Enumerate(v, models.MarketTypeTrifecta)
	require.NoError(t, err)

	sum := 0.0
	for _, r := range out {
		assert.GreaterOrEqual(t, r.JointProbability, 0.0)
		sum += r.JointProbability
	}
	// Independence product over permutations cannot exceed 1.
	assert.LessOrEqual(t, sum, 1.0+1e-9)
}

func TestBestLane(t *testing.T) {
	v := models.ProbabilityVector{First: []float64{0.1, 0.4, 0.4, 0.05, 0.03, 0.02}}
	assert.Equal(t, 2, BestLane(v)) // lowest lane wins the tie

	assert.Equal(t, 0, BestLane(models.ProbabilityVector{}))

	win := WinProbabilities(v)
	assert.InDelta(t, 0.4, win[2], 1e-12)
	assert.Len(t, win, 6)
}
