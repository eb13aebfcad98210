// Package oracle provides caching for probability predictions.
package oracle

import (
	"context"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/boat-better/internal/models"
)

// PredictionCache provides in-memory caching for oracle predictions.
// Predictions for one race are stable within a scan cycle, so repeated
// market evaluations of the same race reuse a single oracle call.
type PredictionCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	mu        sync.RWMutex
	hitCount  uint64
	missCount uint64
}

// NewPredictionCache creates a new prediction cache.
func NewPredictionCache(ttl time.Duration) *PredictionCache {
	return &PredictionCache{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// Get retrieves a cached prediction, reporting whether one was found.
func (pc *PredictionCache) Get(key models.RaceKey) (models.ProbabilityVector, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if result, found := pc.cache.Get(key.String()); found {
		if vector, ok := result.(models.ProbabilityVector); ok {
			pc.hitCount++
			return vector, true
		}
	}
	pc.missCount++
	return models.ProbabilityVector{}, false
}

// Set stores a prediction in the cache.
func (pc *PredictionCache) Set(key models.RaceKey, vector models.ProbabilityVector) {
	pc.cache.Set(key.String(), vector, pc.ttl)
}

// Stats returns cache hit statistics.
func (pc *PredictionCache) Stats() (hits, misses uint64, ratio float64) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	hits = pc.hitCount
	misses = pc.missCount
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// Clear flushes the cache.
func (pc *PredictionCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.cache.Flush()
	pc.hitCount = 0
	pc.missCount = 0
}

// CachedPredictor wraps a Predictor with prediction caching.
type CachedPredictor struct {
	predictor Predictor
	cache     *PredictionCache
	logger    *logrus.Logger
}

// NewCachedPredictor creates a caching wrapper around a predictor.
func NewCachedPredictor(predictor Predictor, ttl time.Duration, logger *logrus.Logger) *CachedPredictor {
	return &CachedPredictor{
		predictor: predictor,
		cache:     NewPredictionCache(ttl),
		logger:    logger,
	}
}

// Predict returns the cached prediction for the race, calling through
// on a miss. Errors are never cached.
func (cp *CachedPredictor) Predict(ctx context.Context, snapshot *models.RaceSnapshot) (models.ProbabilityVector, error) {
	if vector, found := cp.cache.Get(snapshot.Key); found {
		return vector, nil
	}

	vector, err := cp.predictor.Predict(ctx, snapshot)
	if err != nil {
		return models.ProbabilityVector{}, err
	}

	cp.cache.Set(snapshot.Key, vector)
	return vector, nil
}

// CacheStats exposes the underlying cache statistics.
func (cp *CachedPredictor) CacheStats() (hits, misses uint64, ratio float64) {
	return cp.cache.Stats()
}
