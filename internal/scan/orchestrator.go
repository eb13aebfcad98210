// Package scan walks the day's race card, scores each open race and
// admits value wagers into the ledger. One RunCycle call is one pass
// over every venue and race number.
package scan

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/boat-better/internal/combo"
	"github.com/yourusername/boat-better/internal/datasource"
	"github.com/yourusername/boat-better/internal/gate"
	"github.com/yourusername/boat-better/internal/ledger"
	"github.com/yourusername/boat-better/internal/metrics"
	"github.com/yourusername/boat-better/internal/models"
	"github.com/yourusername/boat-better/internal/notify"
	"github.com/yourusername/boat-better/internal/oracle"
)

// Config holds scan orchestrator settings.
type Config struct {
	VenueIDs        []int
	RacesPerVenue   int
	Markets         []models.MarketType
	AdmissionWindow time.Duration // how far before the deadline a race becomes scannable
	Workers         int
	CycleBudget     time.Duration // wall-clock cap for one cycle, 0 for none
	Stake           decimal.Decimal
	SkipCacheTTL    time.Duration
}

// DefaultConfig covers the standard card: 24 venues, 12 races each,
// both markets, races entering the last hour before their deadline.
func DefaultConfig() Config {
	venues := make([]int, 24)
	for i := range venues {
		venues[i] = i + 1
	}
	return Config{
		VenueIDs:        venues,
		RacesPerVenue:   12,
		Markets:         []models.MarketType{models.MarketTypeExacta, models.MarketTypeTrifecta},
		AdmissionWindow: 60 * time.Minute,
		Workers:         8,
		CycleBudget:     170 * time.Second,
		Stake:           decimal.NewFromInt(1000),
		SkipCacheTTL:    12 * time.Hour,
	}
}

// Result counts what one cycle did, for logging and cycle-level tests.
type Result struct {
	CycleID     string
	Scanned     int // races fully evaluated
	Admitted    int // wagers newly inserted
	Duplicates  int // admissions that already existed
	TooEarly    int // races outside the admission window
	Finished    int // races whose deadline had passed
	Unavailable int // races the source has no data for
	Errored     int // races that failed mid-scan
	OverBudget  int // races never started because the cycle budget ran out
	Duration    time.Duration
}

// raceOutcome is one worker's verdict for one race.
type raceOutcome struct {
	scanned     bool
	admitted    int
	duplicates  int
	tooEarly    bool
	finished    bool
	unavailable bool
	overBudget  bool
	err         error
}

// cacheStatser is satisfied by the cached oracle client.
type cacheStatser interface {
	CacheStats() (hits, misses uint64, ratio float64)
}

// Orchestrator wires the sources, oracle, gate and ledger together.
type Orchestrator struct {
	cfg       Config
	snapshots datasource.SnapshotSource
	prices    datasource.PriceSource
	predictor oracle.Predictor
	policies  *gate.PolicyTable
	store     ledger.WagerLedger
	notifier  notify.Notifier
	skip      *cache.Cache // races proven finished or absent, keyed by RaceKey.String()
	logger    *logrus.Logger
	now       func() time.Time
}

// NewOrchestrator creates a scan orchestrator.
func NewOrchestrator(
	cfg Config,
	snapshots datasource.SnapshotSource,
	prices datasource.PriceSource,
	predictor oracle.Predictor,
	policies *gate.PolicyTable,
	store ledger.WagerLedger,
	notifier notify.Notifier,
	logger *logrus.Logger,
) *Orchestrator {
	ttl := cfg.SkipCacheTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Orchestrator{
		cfg:       cfg,
		snapshots: snapshots,
		prices:    prices,
		predictor: predictor,
		policies:  policies,
		store:     store,
		notifier:  notifier,
		skip:      cache.New(ttl, ttl),
		logger:    logger,
		now:       time.Now,
	}
}

// RunCycle performs one pass over the whole card. A per-race failure is
// counted and logged, never fatal to the cycle; the returned error only
// reports the context ending before dispatch completed.
func (o *Orchestrator) RunCycle(ctx context.Context) (Result, error) {
	start := o.now()
	res := Result{CycleID: uuid.NewString()}

	// The budget only gates the start of new races. A race already in
	// flight when it expires is allowed to finish on the caller's ctx.
	dispatchCtx := ctx
	if o.cfg.CycleBudget > 0 {
		var cancel context.CancelFunc
		dispatchCtx, cancel = context.WithTimeout(ctx, o.cfg.CycleBudget)
		defer cancel()
	}

	log := o.logger.WithField("cycle_id", res.CycleID)

	day := start.Format(models.DateLayout)
	keys := make([]models.RaceKey, 0, len(o.cfg.VenueIDs)*o.cfg.RacesPerVenue)
	for _, venue := range o.cfg.VenueIDs {
		for race := 1; race <= o.cfg.RacesPerVenue; race++ {
			key := models.RaceKey{Date: day, VenueID: venue, RaceNumber: race}
			if _, skipped := o.skip.Get(key.String()); skipped {
				continue
			}
			keys = append(keys, key)
		}
	}

	workers := o.cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	workCh := make(chan models.RaceKey, len(keys))
	resultCh := make(chan raceOutcome, len(keys))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range workCh {
				if ctx.Err() != nil {
					resultCh <- raceOutcome{err: ctx.Err()}
					continue
				}
				if dispatchCtx.Err() != nil {
					resultCh <- raceOutcome{overBudget: true}
					continue
				}
				resultCh <- o.scanRace(ctx, key, log)
			}
		}()
	}

	for _, key := range keys {
		workCh <- key
	}
	close(workCh)
	wg.Wait()
	close(resultCh)

	for out := range resultCh {
		switch {
		case out.err != nil:
			res.Errored++
		case out.finished:
			res.Finished++
		case out.tooEarly:
			res.TooEarly++
		case out.unavailable:
			res.Unavailable++
		case out.overBudget:
			res.OverBudget++
		case out.scanned:
			res.Scanned++
		}
		res.Admitted += out.admitted
		res.Duplicates += out.duplicates
	}

	res.Duration = o.now().Sub(start)
	metrics.RecordScanCycle(res.Duration.Seconds())
	if cs, ok := o.predictor.(cacheStatser); ok {
		_, _, ratio := cs.CacheStats()
		metrics.UpdateOracleCacheHitRatio(ratio)
	}

	log.WithFields(logrus.Fields{
		"scanned":     res.Scanned,
		"admitted":    res.Admitted,
		"duplicates":  res.Duplicates,
		"too_early":   res.TooEarly,
		"finished":    res.Finished,
		"unavailable": res.Unavailable,
		"errored":     res.Errored,
		"over_budget": res.OverBudget,
		"duration":    res.Duration,
	}).Info("Scan cycle complete")

	return res, ctx.Err()
}

// scanRace evaluates one race end to end: snapshot, window check,
// prediction, then gate and ledger per market.
func (o *Orchestrator) scanRace(ctx context.Context, key models.RaceKey, log *logrus.Entry) raceOutcome {
	raceLog := log.WithField("race", key.String())

	snap, err := o.snapshots.FetchSnapshot(ctx, key)
	if err != nil {
		if errors.Is(err, datasource.ErrNotYetAvailable) {
			// The card has no such race today. Remember that so later
			// cycles stop asking.
			o.skip.SetDefault(key.String(), struct{}{})
			return raceOutcome{unavailable: true}
		}
		raceLog.WithError(err).Warn("Snapshot fetch failed")
		metrics.RaceScanErrorsTotal.Inc()
		return raceOutcome{err: err}
	}

	if snap.Deadline != nil {
		now := o.now()
		if snap.Deadline.Before(now) {
			o.skip.SetDefault(key.String(), struct{}{})
			return raceOutcome{finished: true}
		}
		if snap.Deadline.Sub(now) > o.cfg.AdmissionWindow {
			// Not cached: the race becomes eligible on a later cycle.
			return raceOutcome{tooEarly: true}
		}
	}

	if !snap.HasFeatures() {
		raceLog.Debug("Snapshot carries no entrant features yet")
		return raceOutcome{unavailable: true}
	}

	vector, err := o.predictor.Predict(ctx, snap)
	if err != nil {
		raceLog.WithError(err).Warn("Prediction failed")
		metrics.RaceScanErrorsTotal.Inc()
		return raceOutcome{err: err}
	}
	best := combo.BestLane(vector)
	raceLog.WithFields(logrus.Fields{
		"best_lane":     best,
		"best_win_prob": combo.WinProbabilities(vector)[best],
	}).Debug("Race scored")

	out := raceOutcome{scanned: true}
	var admitted []models.WagerRecord

	for _, market := range o.cfg.Markets {
		ranked, err := combo.Enumerate(vector, market)
		if err != nil {
			raceLog.WithError(err).WithField("market", market).Warn("Enumeration failed")
			metrics.RaceScanErrorsTotal.Inc()
			return raceOutcome{err: err}
		}

		prices, err := o.prices.FetchPrices(ctx, key, market)
		if err != nil && !errors.Is(err, datasource.ErrNotYetAvailable) {
			raceLog.WithError(err).WithField("market", market).Warn("Price fetch failed")
			metrics.RaceScanErrorsTotal.Inc()
			return raceOutcome{err: err}
		}

		verdict := gate.Evaluate(key, market, ranked, prices, o.policies)
		if len(verdict.Admitted) == 0 {
			raceLog.WithFields(logrus.Fields{
				"market":  market,
				"priced":  verdict.Stats.Priced,
				"floor":   verdict.Stats.PassedFloor,
				"best_ev": fmt.Sprintf("%.3f", verdict.Stats.MaxExpectedValue),
			}).Debug("Nothing admitted")
			continue
		}

		for _, cand := range verdict.Admitted {
			draft := models.NewPendingWager(cand, o.cfg.Stake, o.now())
			admit, err := o.store.TryAdmit(ctx, draft)
			if err != nil {
				raceLog.WithError(err).WithField("wager_id", draft.ID).Error("Ledger admit failed")
				metrics.RaceScanErrorsTotal.Inc()
				return raceOutcome{err: err}
			}
			switch admit {
			case ledger.Admitted:
				out.admitted++
				metrics.RecordWagerAdmitted(cand.ExpectedValue)
				admitted = append(admitted, *draft)
			case ledger.AlreadyExists:
				out.duplicates++
			}
		}
	}

	metrics.RacesScannedTotal.Inc()

	if len(admitted) > 0 {
		raceLog.WithField("admitted", len(admitted)).Info("Wagers admitted")
		if err := o.notifier.NotifyAdmissions(ctx, key, admitted); err != nil {
			raceLog.WithError(err).Warn("Admission notification failed")
		}
	}

	return out
}
