// Package datasource defines the external data collaborators the core
// pipeline consumes: race snapshots, market prices and settled results.
// The extraction layer behind these interfaces is a separate service;
// this package only speaks its structured API.
package datasource

import (
	"context"
	"errors"

	"github.com/yourusername/boat-better/internal/models"
)

// Sentinel conditions callers branch on with errors.Is. NotYetAvailable
// and NotYetSettled are normal scheduling states, not faults.
var (
	// ErrNotYetAvailable means the race is not published yet (or does
	// not exist on this date). Retry later; never logged as an error.
	ErrNotYetAvailable = errors.New("race not yet available")

	// ErrNotYetSettled means the race has not finished; results will
	// appear on a later poll.
	ErrNotYetSettled = errors.New("race not yet settled")

	// ErrTransient marks a network or upstream hiccup worth retrying
	// on the next cycle.
	ErrTransient = errors.New("transient source error")
)

// SnapshotSource supplies the typed race snapshot the extractor builds
// from the live event page.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, key models.RaceKey) (*models.RaceSnapshot, error)
}

// PriceSource supplies the currently quoted payout multiplier for each
// combination of one market. The map may be partial, or empty when the
// market is not quoting.
type PriceSource interface {
	FetchPrices(ctx context.Context, key models.RaceKey, market models.MarketType) (map[models.Combo]float64, error)
}

// ResultSource supplies settled results for finished races.
type ResultSource interface {
	FetchSettlement(ctx context.Context, key models.RaceKey) (*models.Settlement, error)
}

// SourceError carries enough context to diagnose one failed fetch.
type SourceError struct {
	Source string // source name
	Stage  string // "snapshot", "prices", "settlement"
	Key    models.RaceKey
	Err    error
}

func (e *SourceError) Error() string {
	return e.Source + ": " + e.Stage + " " + e.Key.String() + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError wraps err with fetch context.
func NewSourceError(source, stage string, key models.RaceKey, err error) *SourceError {
	return &SourceError{Source: source, Stage: stage, Key: key, Err: err}
}
