package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/boat-better/internal/datasource"
	"github.com/yourusername/boat-better/internal/gate"
	"github.com/yourusername/boat-better/internal/ledger"
	"github.com/yourusername/boat-better/internal/metrics"
	"github.com/yourusername/boat-better/internal/models"
	"github.com/yourusername/boat-better/internal/notify"
	"github.com/yourusername/boat-better/internal/oracle"
)

// fakeSources serves a small fixed card out of memory.
type fakeSources struct {
	mu        sync.Mutex
	snapshots map[models.RaceKey]*models.RaceSnapshot
	prices    map[models.RaceKey]map[models.MarketType]map[models.Combo]float64
	fetches   int
}

func (f *fakeSources) FetchSnapshot(_ context.Context, key models.RaceKey) (*models.RaceSnapshot, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()

	snap, ok := f.snapshots[key]
	if !ok {
		return nil, datasource.NewSourceError("fake", "snapshot", key, datasource.ErrNotYetAvailable)
	}
	return snap, nil
}

func (f *fakeSources) FetchPrices(_ context.Context, key models.RaceKey, market models.MarketType) (map[models.Combo]float64, error) {
	byMarket, ok := f.prices[key]
	if !ok {
		return nil, datasource.NewSourceError("fake", "prices", key, datasource.ErrNotYetAvailable)
	}
	return byMarket[market], nil
}

// fakePredictor returns the same vector for every race.
type fakePredictor struct {
	vector models.ProbabilityVector
	err    error
}

func (f *fakePredictor) Predict(_ context.Context, _ *models.RaceSnapshot) (models.ProbabilityVector, error) {
	if f.err != nil {
		return models.ProbabilityVector{}, f.err
	}
	return f.vector, nil
}

func featuredSnapshot(key models.RaceKey, deadline time.Time) *models.RaceSnapshot {
	return &models.RaceSnapshot{
		Key:      key,
		Deadline: &deadline,
		Entrants: []models.EntrantFeatures{
			{Lane: 1, WinRate: 6.0},
			{Lane: 2, WinRate: 5.0},
			{Lane: 3, WinRate: 4.0},
		},
	}
}

func testPolicies(t *testing.T) *gate.PolicyTable {
	t.Helper()
	var policies []gate.AdmissionPolicy
	for venue := 1; venue <= 24; venue++ {
		policies = append(policies, gate.AdmissionPolicy{
			VenueID:          venue,
			Market:           models.MarketTypeExacta,
			MinProbability:   0.05,
			MinExpectedValue: 1.0,
			PriceCap:         30.0,
			MaxCandidates:    2,
		})
	}
	table, err := gate.NewPolicyTable(policies)
	require.NoError(t, err)
	return table
}

func newTestOrchestrator(t *testing.T, cfg Config, sources *fakeSources, predictor oracle.Predictor) (*Orchestrator, ledger.WagerLedger) {
	t.Helper()

	store, err := ledger.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	o := NewOrchestrator(cfg, sources, sources, predictor, testPolicies(t), store, notify.NewMulti(), logger)
	return o, store
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.VenueIDs = []int{1, 2}
	cfg.RacesPerVenue = 2
	cfg.Markets = []models.MarketType{models.MarketTypeExacta}
	cfg.Workers = 2
	cfg.CycleBudget = 10 * time.Second
	cfg.Stake = decimal.NewFromInt(1000)
	return cfg
}

func TestRunCycleAdmitsValueWagers(t *testing.T) {
	day := time.Now().Format(models.DateLayout)
	key := models.RaceKey{Date: day, VenueID: 1, RaceNumber: 1}

	sources := &fakeSources{
		snapshots: map[models.RaceKey]*models.RaceSnapshot{
			key: featuredSnapshot(key, time.Now().Add(30*time.Minute)),
		},
		prices: map[models.RaceKey]map[models.MarketType]map[models.Combo]float64{
			key: {models.MarketTypeExacta: {
				{First: 1, Second: 2}: 6.0, // 0.5*0.4*6.0 = 1.2, passes
				{First: 2, Second: 1}: 2.0, // 0.3*0.45*2.0 = 0.27, fails
			}},
		},
	}
	predictor := &fakePredictor{vector: models.ProbabilityVector{
		First:  []float64{0.5, 0.3, 0.2},
		Second: []float64{0.45, 0.4, 0.15},
		Third:  []float64{0.05, 0.3, 0.65},
	}}

	o, store := newTestOrchestrator(t, smallConfig(), sources, predictor)

	res, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Admitted)
	assert.Equal(t, 3, res.Unavailable)

	pending, err := store.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.Combo{First: 1, Second: 2}, pending[0].Combo)
	assert.True(t, pending[0].Stake.Equal(decimal.NewFromInt(1000)))
}

func TestRunCycleIsIdempotentAcrossCycles(t *testing.T) {
	day := time.Now().Format(models.DateLayout)
	key := models.RaceKey{Date: day, VenueID: 1, RaceNumber: 1}

	sources := &fakeSources{
		snapshots: map[models.RaceKey]*models.RaceSnapshot{
			key: featuredSnapshot(key, time.Now().Add(30*time.Minute)),
		},
		prices: map[models.RaceKey]map[models.MarketType]map[models.Combo]float64{
			key: {models.MarketTypeExacta: {{First: 1, Second: 2}: 6.0}},
		},
	}
	predictor := &fakePredictor{vector: models.ProbabilityVector{
		First:  []float64{0.5, 0.3, 0.2},
		Second: []float64{0.45, 0.4, 0.15},
		Third:  []float64{0.05, 0.3, 0.65},
	}}

	o, store := newTestOrchestrator(t, smallConfig(), sources, predictor)

	first, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Admitted)

	second, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Admitted)
	assert.Equal(t, 1, second.Duplicates)

	pending, err := store.ListPending(context.Background())
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRunCycleNegativeCacheSuppressesRefetch(t *testing.T) {
	sources := &fakeSources{snapshots: map[models.RaceKey]*models.RaceSnapshot{}}
	predictor := &fakePredictor{}

	o, _ := newTestOrchestrator(t, smallConfig(), sources, predictor)

	res, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Unavailable)
	assert.Equal(t, 4, sources.fetches)

	// Absent races were cached; the next cycle asks for none of them.
	res, err = o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Unavailable)
	assert.Equal(t, 4, sources.fetches)
}

func TestRunCycleAdmissionWindow(t *testing.T) {
	day := time.Now().Format(models.DateLayout)
	early := models.RaceKey{Date: day, VenueID: 1, RaceNumber: 1}
	done := models.RaceKey{Date: day, VenueID: 1, RaceNumber: 2}

	sources := &fakeSources{
		snapshots: map[models.RaceKey]*models.RaceSnapshot{
			early: featuredSnapshot(early, time.Now().Add(3*time.Hour)),
			done:  featuredSnapshot(done, time.Now().Add(-10*time.Minute)),
		},
	}

	cfg := smallConfig()
	cfg.VenueIDs = []int{1}
	o, _ := newTestOrchestrator(t, cfg, sources, &fakePredictor{})

	res, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TooEarly)
	assert.Equal(t, 1, res.Finished)
	assert.Equal(t, 0, res.Scanned)

	// The finished race is cached, the too-early one is retried.
	fetches := sources.fetches
	res, err = o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.TooEarly)
	assert.Equal(t, 0, res.Finished)
	assert.Equal(t, fetches+1, sources.fetches)
}

func TestRunCycleIsolatesRaceErrors(t *testing.T) {
	day := time.Now().Format(models.DateLayout)
	bad := models.RaceKey{Date: day, VenueID: 1, RaceNumber: 1}
	good := models.RaceKey{Date: day, VenueID: 1, RaceNumber: 2}

	sources := &fakeSources{
		snapshots: map[models.RaceKey]*models.RaceSnapshot{
			bad:  featuredSnapshot(bad, time.Now().Add(30*time.Minute)),
			good: featuredSnapshot(good, time.Now().Add(30*time.Minute)),
		},
		prices: map[models.RaceKey]map[models.MarketType]map[models.Combo]float64{
			good: {models.MarketTypeExacta: {{First: 1, Second: 2}: 6.0}},
		},
	}

	// The bad race has no price entry at all, which surfaces as a
	// not-yet-available price fetch, not an error; make the predictor
	// the failure instead for one race via a featureless snapshot.
	sources.snapshots[bad].Entrants = []models.EntrantFeatures{{Lane: 1}, {Lane: 2}, {Lane: 3}}

	predictor := &fakePredictor{vector: models.ProbabilityVector{
		First:  []float64{0.5, 0.3, 0.2},
		Second: []float64{0.45, 0.4, 0.15},
		Third:  []float64{0.05, 0.3, 0.65},
	}}

	cfg := smallConfig()
	cfg.VenueIDs = []int{1}
	o, _ := newTestOrchestrator(t, cfg, sources, predictor)

	res, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Admitted)
	assert.Equal(t, 1, res.Unavailable) // featureless snapshot skipped, not fatal
}

// slowSources delays each snapshot fetch so a cycle budget can expire
// while a race is in flight.
type slowSources struct {
	fakeSources
	delay time.Duration
}

func (s *slowSources) FetchSnapshot(ctx context.Context, key models.RaceKey) (*models.RaceSnapshot, error) {
	time.Sleep(s.delay)
	return s.fakeSources.FetchSnapshot(ctx, key)
}

func TestRunCycleBudgetStopsDispatchOnly(t *testing.T) {
	day := time.Now().Format(models.DateLayout)
	key1 := models.RaceKey{Date: day, VenueID: 1, RaceNumber: 1}
	key2 := models.RaceKey{Date: day, VenueID: 1, RaceNumber: 2}

	sources := &slowSources{
		delay: 100 * time.Millisecond,
		fakeSources: fakeSources{
			snapshots: map[models.RaceKey]*models.RaceSnapshot{
				key1: featuredSnapshot(key1, time.Now().Add(30*time.Minute)),
				key2: featuredSnapshot(key2, time.Now().Add(30*time.Minute)),
			},
			prices: map[models.RaceKey]map[models.MarketType]map[models.Combo]float64{
				key1: {models.MarketTypeExacta: {{First: 1, Second: 2}: 6.0}},
				key2: {models.MarketTypeExacta: {{First: 1, Second: 2}: 6.0}},
			},
		},
	}

	cfg := smallConfig()
	cfg.VenueIDs = []int{1}
	cfg.Workers = 1
	cfg.CycleBudget = 25 * time.Millisecond // expires while race 1 is in flight

	o, _ := newTestOrchestrator(t, cfg, &sources.fakeSources, &fakePredictor{
		vector: models.ProbabilityVector{
			First:  []float64{0.5, 0.3, 0.2},
			Second: []float64{0.4, 0.45, 0.15},
		},
	})
	o.snapshots = sources

	res, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	// The in-flight race finishes and admits; the queued race is never
	// started and is not an error.
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 1, res.Admitted)
	assert.Equal(t, 1, res.OverBudget)
	assert.Equal(t, 0, res.Errored)

	// Nothing was cached, so the next cycle picks race 2 up.
	o.cfg.CycleBudget = 10 * time.Second
	res2, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res2.Scanned)
	assert.Equal(t, 1, res2.Admitted) // race 1's wager already exists
	assert.Equal(t, 1, res2.Duplicates)
	assert.Equal(t, 0, res2.OverBudget)
}

func TestRunCycleUpdatesOracleCacheGauge(t *testing.T) {
	day := time.Now().Format(models.DateLayout)
	key := models.RaceKey{Date: day, VenueID: 1, RaceNumber: 1}

	sources := &fakeSources{
		snapshots: map[models.RaceKey]*models.RaceSnapshot{
			key: featuredSnapshot(key, time.Now().Add(30*time.Minute)),
		},
		prices: map[models.RaceKey]map[models.MarketType]map[models.Combo]float64{
			key: {models.MarketTypeExacta: {{First: 1, Second: 2}: 6.0}},
		},
	}

	cfg := smallConfig()
	cfg.VenueIDs = []int{1}
	cfg.RacesPerVenue = 1

	cached := oracle.NewCachedPredictor(&fakePredictor{
		vector: models.ProbabilityVector{
			First:  []float64{0.5, 0.3, 0.2},
			Second: []float64{0.4, 0.45, 0.15},
		},
	}, time.Minute, logrus.New())
	o, _ := newTestOrchestrator(t, cfg, sources, cached)

	// First cycle misses the cache, the second hits it.
	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.OracleCacheHitRatio), 1e-9)

	_, err = o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, testutil.ToFloat64(metrics.OracleCacheHitRatio), 1e-9)
}
