// Package ledger is the durable, idempotent record of admitted wagers
// and their settlement. It is the only mutable state shared between the
// scan orchestrator and the reconciliation poller.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/boat-better/internal/models"
)

// AdmitResult is the outcome of a TryAdmit call.
type AdmitResult int

const (
	// Admitted means the draft was inserted as a new PENDING record.
	Admitted AdmitResult = iota
	// AlreadyExists means a record with the same (race, combo, market)
	// key was admitted earlier, by this run or a previous one. Normal,
	// not a fault.
	AlreadyExists
)

// SettleResult is the outcome of a Settle call.
type SettleResult int

const (
	// Settled means the record transitioned PENDING -> FINISHED.
	Settled SettleResult = iota
	// AlreadySettled means the record was FINISHED with the identical
	// outcome; the call was a no-op.
	AlreadySettled
)

// DayStats is a pure read-aggregate over FINISHED rows for one day.
type DayStats struct {
	Finished int
	Wins     int
	Pending  int
	Profit   decimal.Decimal
}

// WagerLedger is the store contract. Uniqueness of
// (raceKey, combo, marketType) is enforced by the store atomically;
// callers never check-then-insert.
type WagerLedger interface {
	// TryAdmit inserts a new PENDING record if none exists for the
	// draft's composite key. Safe under concurrent callers.
	TryAdmit(ctx context.Context, draft *models.WagerRecord) (AdmitResult, error)

	// ListPending returns a snapshot of all PENDING records. Records
	// admitted after the snapshot is taken are picked up next poll.
	ListPending(ctx context.Context) ([]*models.WagerRecord, error)

	// Settle transitions exactly one record from PENDING to FINISHED.
	// Settling a FINISHED record with the identical outcome is a no-op
	// success; a different outcome returns models.ErrSettlementConflict
	// and never overwrites.
	Settle(ctx context.Context, wagerID string, settledCombo models.Combo, payout, profit decimal.Decimal) (SettleResult, error)

	// Get looks up one record by wager ID.
	Get(ctx context.Context, wagerID string) (*models.WagerRecord, error)

	// DayStats aggregates FINISHED and PENDING rows for a YYYYMMDD day.
	DayStats(ctx context.Context, date string) (DayStats, error)

	// ProfitBetween sums profit over records settled in [from, to).
	ProfitBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)

	// FinishedByDate returns all FINISHED records for a YYYYMMDD day.
	FinishedByDate(ctx context.Context, date string) ([]*models.WagerRecord, error)

	// Ping verifies the store is reachable, for health checks.
	Ping(ctx context.Context) error

	// Close releases the underlying store.
	Close() error
}
