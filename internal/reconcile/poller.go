// Package reconcile settles pending wagers against published race
// results. It is the only writer that moves ledger rows to FINISHED.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/boat-better/internal/datasource"
	"github.com/yourusername/boat-better/internal/ledger"
	"github.com/yourusername/boat-better/internal/metrics"
	"github.com/yourusername/boat-better/internal/models"
	"github.com/yourusername/boat-better/internal/notify"
)

// Config holds reconciliation poller settings.
type Config struct {
	// ReportHours lists the local hours at which a daily summary is
	// sent. One summary per hour at most, even across many cycles.
	ReportHours []int
}

// Result counts what one reconciliation cycle did.
type Result struct {
	Pending    int // pending wagers at cycle start
	RacesAsked int // distinct races a settlement was fetched for
	Settled    int
	Wins       int
	NotReady   int // races without published results yet
	Conflicts  int // integrity conflicts surfaced by the ledger
	Errored    int // races whose fetch or settle failed
}

// Poller fetches settlements and applies them to the ledger.
type Poller struct {
	results       datasource.ResultSource
	store         ledger.WagerLedger
	notifier      notify.Notifier
	logger        *logrus.Logger
	reportHours   map[int]struct{}
	lastReportKey string
	now           func() time.Time
}

// NewPoller creates a reconciliation poller.
func NewPoller(cfg Config, results datasource.ResultSource, store ledger.WagerLedger, notifier notify.Notifier, logger *logrus.Logger) *Poller {
	hours := make(map[int]struct{}, len(cfg.ReportHours))
	for _, h := range cfg.ReportHours {
		hours[h] = struct{}{}
	}
	return &Poller{
		results:     results,
		store:       store,
		notifier:    notifier,
		logger:      logger,
		reportHours: hours,
		now:         time.Now,
	}
}

// RunCycle settles whatever races have published results. Races whose
// results are not out yet stay pending; a failure on one race never
// blocks the others.
func (p *Poller) RunCycle(ctx context.Context) (Result, error) {
	var res Result

	pending, err := p.store.ListPending(ctx)
	if err != nil {
		return res, err
	}
	res.Pending = len(pending)

	// One settlement fetch per race, shared by every wager on it.
	byRace := make(map[models.RaceKey][]*models.WagerRecord)
	for _, w := range pending {
		byRace[w.Key] = append(byRace[w.Key], w)
	}

	for key, wagers := range byRace {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.RacesAsked++

		settlement, err := p.results.FetchSettlement(ctx, key)
		if err != nil {
			switch {
			case errors.Is(err, datasource.ErrNotYetSettled), errors.Is(err, datasource.ErrNotYetAvailable):
				res.NotReady++
			default:
				p.logger.WithField("race", key.String()).WithError(err).Warn("Settlement fetch failed")
				metrics.ReconcileErrorsTotal.Inc()
				res.Errored++
			}
			continue
		}

		p.settleRace(ctx, settlement, wagers, &res)
	}

	p.updateGauges(ctx, res)
	p.maybeReport(ctx)

	p.logger.WithFields(logrus.Fields{
		"pending":   res.Pending,
		"settled":   res.Settled,
		"wins":      res.Wins,
		"not_ready": res.NotReady,
		"conflicts": res.Conflicts,
		"errored":   res.Errored,
	}).Info("Reconcile cycle complete")

	return res, nil
}

// settleRace applies one race's settlement to all its pending wagers.
func (p *Poller) settleRace(ctx context.Context, settlement *models.Settlement, wagers []*models.WagerRecord, res *Result) {
	for _, w := range wagers {
		winning, published := settlement.Winning[w.Market]
		if !published {
			// The race finished but this market's result is missing;
			// leave the wager pending for a later poll.
			res.NotReady++
			continue
		}

		payout := decimal.Zero
		if winning == w.Combo {
			payout = settlement.PayoutFor(w.Market, w.Stake)
		}
		profit := payout.Sub(w.Stake)

		outcome, err := p.store.Settle(ctx, w.ID, winning, payout, profit)
		if err != nil {
			if errors.Is(err, models.ErrSettlementConflict) {
				p.logger.WithField("wager_id", w.ID).WithError(err).Error("Settlement conflict, record left untouched")
				metrics.SettlementConflictsTotal.Inc()
				res.Conflicts++
			} else {
				p.logger.WithField("wager_id", w.ID).WithError(err).Warn("Settle failed")
				res.Errored++
			}
			continue
		}
		if outcome == ledger.AlreadySettled {
			continue
		}

		res.Settled++
		win := winning == w.Combo
		if win {
			res.Wins++
		}
		metrics.RecordWagerSettled(win)

		p.notifySettled(ctx, w.ID)
	}
}

// notifySettled re-reads the settled record and the day's aggregates so
// the notification reflects what the ledger actually holds.
func (p *Poller) notifySettled(ctx context.Context, wagerID string) {
	record, err := p.store.Get(ctx, wagerID)
	if err != nil {
		p.logger.WithField("wager_id", wagerID).WithError(err).Warn("Read-back after settle failed")
		return
	}
	day, err := p.store.DayStats(ctx, record.Key.Date)
	if err != nil {
		p.logger.WithError(err).Warn("Day stats read failed")
	}
	if err := p.notifier.NotifySettlement(ctx, *record, day); err != nil {
		p.logger.WithError(err).Warn("Settlement notification failed")
	}
}

func (p *Poller) updateGauges(ctx context.Context, res Result) {
	metrics.UpdatePendingWagers(float64(res.Pending - res.Settled))

	today := p.now().Format(models.DateLayout)
	if day, err := p.store.DayStats(ctx, today); err == nil {
		profit, _ := day.Profit.Float64()
		metrics.UpdateDailyProfit(profit)
	}
}

// maybeReport sends the daily summary when entering a report hour. The
// date_hour key dedupes across the many cycles inside one hour.
func (p *Poller) maybeReport(ctx context.Context) {
	now := p.now()
	if _, ok := p.reportHours[now.Hour()]; !ok {
		return
	}

	today := now.Format(models.DateLayout)
	key := today + "_" + now.Format("15")
	if key == p.lastReportKey {
		return
	}

	day, err := p.store.DayStats(ctx, today)
	if err != nil {
		p.logger.WithError(err).Warn("Day stats read failed")
		return
	}

	report := notify.Report{
		Date:     today,
		Finished: day.Finished,
		Wins:     day.Wins,
		Pending:  day.Pending,
		Profit:   day.Profit.StringFixed(0),
	}
	if err := p.notifier.NotifyReport(ctx, report); err != nil {
		p.logger.WithError(err).Warn("Report notification failed")
		return
	}
	p.lastReportKey = key
}
