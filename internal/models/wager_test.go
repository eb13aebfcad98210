package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWagerIDIsStable(t *testing.T) {
	key := RaceKey{Date: "20260831", VenueID: 24, RaceNumber: 11}
	id := WagerID(key, Combo{First: 1, Second: 3}, MarketTypeExacta)
	assert.Equal(t, "20260831_24_11_1-3_EXACTA", id)

	id = WagerID(key, Combo{First: 1, Second: 3, Third: 5}, MarketTypeTrifecta)
	assert.Equal(t, "20260831_24_11_1-3-5_TRIFECTA", id)
}

func TestParseCombo(t *testing.T) {
	c, err := ParseCombo("1-2")
	require.NoError(t, err)
	assert.Equal(t, Combo{First: 1, Second: 2}, c)
	assert.Equal(t, 2, c.Arity())

	c, err = ParseCombo("4-2-6")
	require.NoError(t, err)
	assert.Equal(t, Combo{First: 4, Second: 2, Third: 6}, c)
	assert.Equal(t, 3, c.Arity())

	for _, bad := range []string{"", "1", "1-2-3-4", "a-b", "0-2", "-1-2"} {
		_, err := ParseCombo(bad)
		assert.ErrorIs(t, err, ErrInvalidCombo, "input %q", bad)
	}
}

func TestComboLessIsLexical(t *testing.T) {
	assert.True(t, Combo{First: 1, Second: 2}.Less(Combo{First: 1, Second: 3}))
	assert.True(t, Combo{First: 1, Second: 6}.Less(Combo{First: 2, Second: 1}))
	assert.False(t, Combo{First: 2, Second: 1}.Less(Combo{First: 2, Second: 1}))
}

func TestNewPendingWager(t *testing.T) {
	now := time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC)
	w := NewPendingWager(Candidate{
		Key:              RaceKey{Date: "20260831", VenueID: 3, RaceNumber: 8},
		Market:           MarketTypeExacta,
		Combo:            Combo{First: 2, Second: 5},
		JointProbability: 0.12,
		Price:            11.0,
		ExpectedValue:    1.32,
	}, decimal.NewFromInt(1000), now)

	assert.Equal(t, WagerStatusPending, w.Status)
	assert.Equal(t, "20260831_03_8_2-5_EXACTA", w.ID)
	assert.True(t, w.Payout.IsZero())
	assert.False(t, w.IsWin(), "pending wagers are never wins")
}

func TestSettlementPayoutFor(t *testing.T) {
	s := &Settlement{
		Payouts: map[MarketType]decimal.Decimal{
			MarketTypeExacta: decimal.NewFromInt(980),
		},
	}

	// Quotes are per 100-unit ticket.
	got := s.PayoutFor(MarketTypeExacta, decimal.NewFromInt(1000))
	assert.True(t, got.Equal(decimal.NewFromInt(9800)))

	got = s.PayoutFor(MarketTypeTrifecta, decimal.NewFromInt(1000))
	assert.True(t, got.IsZero(), "missing market pays nothing")
}
