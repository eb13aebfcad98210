// Package combo expands a race's per-position probability vector into
// ranked ordered finish combinations.
package combo

import (
	"fmt"
	"sort"

	"github.com/yourusername/boat-better/internal/models"
)

// Ranked is one ordered combination with its joint probability.
type Ranked struct {
	Combo            models.Combo
	JointProbability float64
}

// Enumerate expands the vector into every ordered combination of the
// market's arity with its joint probability, ranked by probability
// descending with lexical combo order breaking ties.
//
// The joint probability multiplies the independent per-position masses:
// P(i 1st) x P(j 2nd) [x P(k 3rd)]. No renormalization happens after a
// lane is consumed by an earlier position, so the output is a ranking
// signal, not a calibrated joint distribution.
//
// A zero vector (failed extraction upstream) yields an empty result
// rather than a grid of zero-probability entries.
func Enumerate(v models.ProbabilityVector, market models.MarketType) ([]Ranked, error) {
	n := v.Entrants()
	if n == 0 || v.IsZero() {
		return nil, nil
	}
	arity := market.Arity()
	if len(v.Second) != n || (arity == 3 && len(v.Third) != n) {
		return nil, fmt.Errorf("combo: position slices disagree on entrant count %d", n)
	}

	var out []Ranked
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if arity == 2 {
				out = append(out, Ranked{
					Combo:            models.Combo{First: i + 1, Second: j + 1},
					JointProbability: v.First[i] * v.Second[j],
				})
				continue
			}
			for k := 0; k < n; k++ {
				if k == i || k == j {
					continue
				}
				out = append(out, Ranked{
					Combo:            models.Combo{First: i + 1, Second: j + 1, Third: k + 1},
					JointProbability: v.First[i] * v.Second[j] * v.Third[k],
				})
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].JointProbability != out[b].JointProbability {
			return out[a].JointProbability > out[b].JointProbability
		}
		return out[a].Combo.Less(out[b].Combo)
	})

	return out, nil
}

// WinProbabilities collapses the vector into the per-lane probability of
// finishing 1st, keyed by lane number. Used for the "best lane" field in
// notifications and logs, not for admission.
func WinProbabilities(v models.ProbabilityVector) map[int]float64 {
	win := make(map[int]float64, v.Entrants())
	for i, p := range v.First {
		win[i+1] = p
	}
	return win
}

// BestLane returns the lane with the highest win probability, lowest
// lane winning ties. Returns 0 for an empty vector.
func BestLane(v models.ProbabilityVector) int {
	best, bestP := 0, -1.0
	for i, p := range v.First {
		if p > bestP {
			best, bestP = i+1, p
		}
	}
	return best
}
