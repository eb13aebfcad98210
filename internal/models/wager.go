package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MarketType identifies the wager market a combination belongs to.
type MarketType string

const (
	MarketTypeExacta   MarketType = "EXACTA"   // ordered 1st/2nd pair
	MarketTypeTrifecta MarketType = "TRIFECTA" // ordered 1st/2nd/3rd triple
)

// Arity returns the combination length for the market.
func (m MarketType) Arity() int {
	if m == MarketTypeTrifecta {
		return 3
	}
	return 2
}

// Combo is an ordered finish combination of 2 or 3 entrant lanes.
// Third is zero for exacta combos. The zero value is not a valid combo.
type Combo struct {
	First  int `json:"first"`
	Second int `json:"second"`
	Third  int `json:"third,omitempty"`
}

// Arity returns the number of positions the combo covers.
func (c Combo) Arity() int {
	if c.Third > 0 {
		return 3
	}
	return 2
}

// String renders the combo in the conventional "1-2" / "1-2-3" form.
func (c Combo) String() string {
	if c.Third > 0 {
		return fmt.Sprintf("%d-%d-%d", c.First, c.Second, c.Third)
	}
	return fmt.Sprintf("%d-%d", c.First, c.Second)
}

// Less orders combos lexically, the tie-break order used throughout the
// pipeline so repeated runs produce identical output.
func (c Combo) Less(o Combo) bool {
	if c.First != o.First {
		return c.First < o.First
	}
	if c.Second != o.Second {
		return c.Second < o.Second
	}
	return c.Third < o.Third
}

// ParseCombo parses "1-2" or "1-2-3".
func ParseCombo(s string) (Combo, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 && len(parts) != 3 {
		return Combo{}, fmt.Errorf("%w: combo %q", ErrInvalidCombo, s)
	}
	var lanes [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 {
			return Combo{}, fmt.Errorf("%w: combo %q", ErrInvalidCombo, s)
		}
		lanes[i] = n
	}
	return Combo{First: lanes[0], Second: lanes[1], Third: lanes[2]}, nil
}

// Candidate is an evaluated combination inside one scan cycle. It lives
// only until it is discarded or promoted into a WagerRecord.
type Candidate struct {
	Key              RaceKey    `json:"key"`
	Market           MarketType `json:"market"`
	Combo            Combo      `json:"combo"`
	JointProbability float64    `json:"joint_probability"`
	Price            float64    `json:"price"`
	HasPrice         bool       `json:"has_price"`
	ExpectedValue    float64    `json:"expected_value"`
}

// WagerStatus is the lifecycle state of a ledger row.
type WagerStatus string

const (
	WagerStatusPending  WagerStatus = "PENDING"
	WagerStatusFinished WagerStatus = "FINISHED"
)

// WagerRecord is the persisted wager entity. At most one record exists
// per (race key, combo, market type); the ledger's composite primary key
// enforces that, not application code.
type WagerRecord struct {
	ID            string          `db:"wager_id" json:"wager_id"`
	Key           RaceKey         `json:"key"`
	Market        MarketType      `db:"market_type" json:"market_type"`
	Combo         Combo           `db:"combo" json:"combo"`
	Probability   float64         `db:"probability" json:"probability"`
	Price         float64         `db:"price" json:"price"`
	ExpectedValue float64         `db:"expected_value" json:"expected_value"`
	Stake         decimal.Decimal `db:"stake" json:"stake"`
	Status        WagerStatus     `db:"status" json:"status"`
	SettledCombo  *Combo          `db:"settled_combo" json:"settled_combo,omitempty"`
	Payout        decimal.Decimal `db:"payout" json:"payout"`
	Profit        decimal.Decimal `db:"profit" json:"profit"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	SettledAt     *time.Time      `db:"settled_at" json:"settled_at,omitempty"`
}

// WagerID derives the composite ledger key for a wager.
func WagerID(key RaceKey, combo Combo, market MarketType) string {
	return fmt.Sprintf("%s_%s_%s", key.String(), combo.String(), market)
}

// NewPendingWager builds the PENDING draft the gate hands to the ledger.
func NewPendingWager(c Candidate, stake decimal.Decimal, now time.Time) *WagerRecord {
	return &WagerRecord{
		ID:            WagerID(c.Key, c.Combo, c.Market),
		Key:           c.Key,
		Market:        c.Market,
		Combo:         c.Combo,
		Probability:   c.JointProbability,
		Price:         c.Price,
		ExpectedValue: c.ExpectedValue,
		Stake:         stake,
		Status:        WagerStatusPending,
		Payout:        decimal.Zero,
		Profit:        decimal.Zero,
		CreatedAt:     now.UTC(),
	}
}

// IsWin reports whether the settled combination matched the wagered one.
func (w *WagerRecord) IsWin() bool {
	return w.Status == WagerStatusFinished && w.SettledCombo != nil && *w.SettledCombo == w.Combo
}

// Settlement is the results source's view of one finished race: the
// winning combination and quoted payout per market type. Payouts are
// quoted per 100-unit ticket, the convention of the official feed.
type Settlement struct {
	Key     RaceKey                        `json:"key"`
	Winning map[MarketType]Combo           `json:"winning"`
	Payouts map[MarketType]decimal.Decimal `json:"payouts"`
}

// PayoutFor scales the quoted per-100 payout to the given stake.
func (s *Settlement) PayoutFor(market MarketType, stake decimal.Decimal) decimal.Decimal {
	quoted, ok := s.Payouts[market]
	if !ok {
		return decimal.Zero
	}
	return quoted.Mul(stake).Div(decimal.NewFromInt(100))
}
