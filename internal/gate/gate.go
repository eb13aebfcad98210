package gate

import (
	"math"
	"sort"

	"github.com/yourusername/boat-better/internal/combo"
	"github.com/yourusername/boat-better/internal/models"
)

// Stats breaks down what happened to the enumerated combinations so the
// caller can tell "no prices were available" apart from "nothing passed
// the probability floor" when a race admits nothing.
type Stats struct {
	Enumerated       int     `json:"enumerated"`
	PassedFloor      int     `json:"passed_floor"`
	Priced           int     `json:"priced"`
	PassedThreshold  int     `json:"passed_threshold"`
	MaxExpectedValue float64 `json:"max_expected_value"` // best EV seen before thresholding
	PolicyFound      bool    `json:"policy_found"`
}

// Result is the gate's verdict for one race/market.
type Result struct {
	Admitted []models.Candidate `json:"admitted"`
	Stats    Stats              `json:"stats"`
}

// Evaluate filters, prices, ranks and truncates the enumerated
// combinations for one race and market. A missing policy admits nothing;
// that is configuration, not an error.
func Evaluate(key models.RaceKey, market models.MarketType, ranked []combo.Ranked, prices map[models.Combo]float64, table *PolicyTable) Result {
	res := Result{Stats: Stats{Enumerated: len(ranked)}}

	policy, ok := table.Lookup(key.VenueID, market)
	if !ok {
		return res
	}
	res.Stats.PolicyFound = true

	survivors := make([]models.Candidate, 0, policy.MaxCandidates)
	for _, r := range ranked {
		if r.JointProbability < policy.MinProbability {
			continue
		}
		res.Stats.PassedFloor++

		price, priced := prices[r.Combo]
		if !priced || price <= 0 {
			continue
		}
		res.Stats.Priced++

		ev := r.JointProbability * math.Min(price, policy.PriceCap)
		if ev > res.Stats.MaxExpectedValue {
			res.Stats.MaxExpectedValue = ev
		}
		if ev < policy.MinExpectedValue {
			continue
		}
		res.Stats.PassedThreshold++

		survivors = append(survivors, models.Candidate{
			Key:              key,
			Market:           market,
			Combo:            r.Combo,
			JointProbability: r.JointProbability,
			Price:            price,
			HasPrice:         true,
			ExpectedValue:    ev,
		})
	}

	sort.SliceStable(survivors, func(a, b int) bool {
		if survivors[a].ExpectedValue != survivors[b].ExpectedValue {
			return survivors[a].ExpectedValue > survivors[b].ExpectedValue
		}
		if survivors[a].JointProbability != survivors[b].JointProbability {
			return survivors[a].JointProbability > survivors[b].JointProbability
		}
		return survivors[a].Combo.Less(survivors[b].Combo)
	})

	if len(survivors) > policy.MaxCandidates {
		survivors = survivors[:policy.MaxCandidates]
	}
	res.Admitted = survivors
	return res
}
