// Package notify delivers human-facing event messages. Delivery is
// best effort: a failed notification is logged and never blocks the
// pipeline that produced it.
package notify

import (
	"context"

	"github.com/yourusername/boat-better/internal/ledger"
	"github.com/yourusername/boat-better/internal/models"
)

// Report is a periodic profit-and-loss summary for one calendar day.
type Report struct {
	Date     string // YYYYMMDD
	Finished int
	Wins     int
	Pending  int
	Profit   string // formatted decimal
}

// Notifier receives pipeline events worth telling a human about.
type Notifier interface {
	// NotifyAdmissions announces newly admitted wagers for one race.
	NotifyAdmissions(ctx context.Context, key models.RaceKey, wagers []models.WagerRecord) error

	// NotifySettlement announces one settled wager together with the
	// day's running aggregates.
	NotifySettlement(ctx context.Context, wager models.WagerRecord, day ledger.DayStats) error

	// NotifyReport delivers a periodic summary.
	NotifyReport(ctx context.Context, report Report) error
}

// Multi fans events out to several notifiers. Each notifier gets every
// event even when an earlier one fails; the first error is returned.
type Multi struct {
	notifiers []Notifier
}

// NewMulti combines notifiers into one.
func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) NotifyAdmissions(ctx context.Context, key models.RaceKey, wagers []models.WagerRecord) error {
	var first error
	for _, n := range m.notifiers {
		if err := n.NotifyAdmissions(ctx, key, wagers); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Multi) NotifySettlement(ctx context.Context, wager models.WagerRecord, day ledger.DayStats) error {
	var first error
	for _, n := range m.notifiers {
		if err := n.NotifySettlement(ctx, wager, day); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Multi) NotifyReport(ctx context.Context, report Report) error {
	var first error
	for _, n := range m.notifiers {
		if err := n.NotifyReport(ctx, report); err != nil && first == nil {
			first = err
		}
	}
	return first
}
