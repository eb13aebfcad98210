package models

import (
	"fmt"
	"time"
)

// DateLayout is the compact date format used in race keys and ledger rows.
const DateLayout = "20060102"

// DefaultEntrants is the standard field size for a race.
const DefaultEntrants = 6

// RaceKey uniquely identifies one scheduled race. It is used as the
// partition key for snapshots, prices, settlements and ledger rows.
type RaceKey struct {
	Date       string `json:"date"` // YYYYMMDD
	VenueID    int    `json:"venue_id"`
	RaceNumber int    `json:"race_number"`
}

// NewRaceKey builds a race key for the given calendar day.
func NewRaceKey(day time.Time, venueID, raceNumber int) RaceKey {
	return RaceKey{
		Date:       day.Format(DateLayout),
		VenueID:    venueID,
		RaceNumber: raceNumber,
	}
}

// String renders the key in the canonical "YYYYMMDD_VV_R" form.
func (k RaceKey) String() string {
	return fmt.Sprintf("%s_%02d_%d", k.Date, k.VenueID, k.RaceNumber)
}

// Day parses the key's date component.
func (k RaceKey) Day() (time.Time, error) {
	return time.Parse(DateLayout, k.Date)
}

// EntrantFeatures holds the per-entrant inputs the oracle consumes.
// Zero values are tolerated everywhere; a fully zeroed set marks a
// snapshot whose extraction failed upstream.
type EntrantFeatures struct {
	Lane           int     `json:"lane"`
	RacerID        int     `json:"racer_id"`
	WinRate        float64 `json:"win_rate"`
	MotorRate      float64 `json:"motor_rate"`
	ExhibitionTime float64 `json:"exhibition_time"`
	AvgStartTiming float64 `json:"avg_start_timing"`
	FalseStarts    int     `json:"false_starts"`
}

// RaceSnapshot is the typed output of the external extraction layer.
// Fields may be defaulted when the source page was incomplete.
type RaceSnapshot struct {
	Key       RaceKey           `json:"key"`
	Deadline  *time.Time        `json:"deadline,omitempty"` // admission deadline, nil if unknown
	WindSpeed float64           `json:"wind_speed"`
	Entrants  []EntrantFeatures `json:"entrants"`
}

// HasFeatures reports whether at least one entrant carries a non-zero
// feature vector. A snapshot without features must not be fed to the
// oracle as if it were informative.
func (s *RaceSnapshot) HasFeatures() bool {
	for _, e := range s.Entrants {
		if e.WinRate != 0 || e.MotorRate != 0 || e.ExhibitionTime != 0 || e.AvgStartTiming != 0 {
			return true
		}
	}
	return false
}

// ProbabilityVector is the oracle's output for one race: the probability
// mass of each entrant finishing 1st, 2nd and 3rd. The slices share the
// same length (the entrant count) and each sums to at most 1.0.
type ProbabilityVector struct {
	First  []float64 `json:"first"`
	Second []float64 `json:"second"`
	Third  []float64 `json:"third"`
}

// Entrants returns the entrant count the vector covers.
func (v ProbabilityVector) Entrants() int {
	return len(v.First)
}

// IsZero reports whether every position probability is zero, which is
// how a failed upstream extraction manifests.
func (v ProbabilityVector) IsZero() bool {
	for _, s := range [][]float64{v.First, v.Second, v.Third} {
		for _, p := range s {
			if p != 0 {
				return false
			}
		}
	}
	return true
}
