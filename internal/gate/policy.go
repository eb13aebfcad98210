// Package gate decides which enumerated combinations are worth wagering,
// by expected value against live prices under a per-venue policy.
package gate

import (
	"fmt"

	"github.com/yourusername/boat-better/internal/models"
)

// AdmissionPolicy bounds what the gate may admit for one venue/market.
type AdmissionPolicy struct {
	VenueID          int               `mapstructure:"venue_id" json:"venue_id"`
	Market           models.MarketType `mapstructure:"market" json:"market"`
	MinProbability   float64           `mapstructure:"min_probability" json:"min_probability"`
	MinExpectedValue float64           `mapstructure:"min_expected_value" json:"min_expected_value"`
	PriceCap         float64           `mapstructure:"price_cap" json:"price_cap"`
	MaxCandidates    int               `mapstructure:"max_candidates" json:"max_candidates"`
}

// policyKey indexes the table by (venue, market).
type policyKey struct {
	venueID int
	market  models.MarketType
}

// PolicyTable holds every admission policy, loaded once at startup.
// A venue/market pair without a policy is never admitted.
type PolicyTable struct {
	policies map[policyKey]AdmissionPolicy
}

// NewPolicyTable builds the lookup table, rejecting duplicates and
// obviously broken entries so misconfiguration surfaces at startup.
func NewPolicyTable(policies []AdmissionPolicy) (*PolicyTable, error) {
	table := &PolicyTable{policies: make(map[policyKey]AdmissionPolicy, len(policies))}
	for _, p := range policies {
		if p.Market != models.MarketTypeExacta && p.Market != models.MarketTypeTrifecta {
			return nil, fmt.Errorf("gate: policy for venue %d has unknown market %q", p.VenueID, p.Market)
		}
		if p.MaxCandidates <= 0 {
			return nil, fmt.Errorf("gate: policy for venue %d/%s has non-positive max_candidates", p.VenueID, p.Market)
		}
		if p.PriceCap <= 0 {
			return nil, fmt.Errorf("gate: policy for venue %d/%s has non-positive price_cap", p.VenueID, p.Market)
		}
		key := policyKey{venueID: p.VenueID, market: p.Market}
		if _, dup := table.policies[key]; dup {
			return nil, fmt.Errorf("gate: duplicate policy for venue %d/%s", p.VenueID, p.Market)
		}
		table.policies[key] = p
	}
	return table, nil
}

// Lookup returns the policy for a venue/market, if one is configured.
func (t *PolicyTable) Lookup(venueID int, market models.MarketType) (AdmissionPolicy, bool) {
	p, ok := t.policies[policyKey{venueID: venueID, market: market}]
	return p, ok
}

// Len returns the number of configured policies.
func (t *PolicyTable) Len() int {
	return len(t.policies)
}
