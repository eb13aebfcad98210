package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/boat-better/internal/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func testSnapshot() *models.RaceSnapshot {
	return &models.RaceSnapshot{
		Key:       models.RaceKey{Date: "20260831", VenueID: 5, RaceNumber: 3},
		WindSpeed: 2.0,
		Entrants: []models.EntrantFeatures{
			{Lane: 1, RacerID: 100, WinRate: 6.5, MotorRate: 45.0},
			{Lane: 2, RacerID: 200, WinRate: 5.0, MotorRate: 40.0},
			{Lane: 3, RacerID: 300, WinRate: 4.5, MotorRate: 35.0},
		},
	}
}

func TestPredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/predict", r.URL.Path)

		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "20260831_05_3", req.RaceID)
		require.Len(t, req.Entrants, 3)

		fmt.Fprint(w, `{"first": [0.5, 0.3, 0.2], "second": [0.3, 0.4, 0.3], "third": [0.2, 0.3, 0.5]}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{BaseURL: srv.URL, RequestTimeout: time.Second}, testLogger())

	vector, err := client.Predict(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.3, 0.2}, vector.First)
	assert.Equal(t, 3, vector.Entrants())
}

func TestPredictRejectsFeaturelessSnapshot(t *testing.T) {
	client := NewHTTPClient(ClientConfig{BaseURL: "http://127.0.0.1:0"}, testLogger())

	snap := testSnapshot()
	for i := range snap.Entrants {
		snap.Entrants[i] = models.EntrantFeatures{Lane: i + 1}
	}

	_, err := client.Predict(context.Background(), snap)
	assert.ErrorIs(t, err, ErrInsufficientFeatures)
}

func TestPredictInvalidResponse(t *testing.T) {
	cases := map[string]string{
		"length mismatch":      `{"first": [0.5], "second": [0.3, 0.4, 0.3], "third": [0.2, 0.3, 0.5]}`,
		"probability over one": `{"first": [1.5, 0.3, 0.2], "second": [0.3, 0.4, 0.3], "third": [0.2, 0.3, 0.5]}`,
		"not json":             `oops`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			client := NewHTTPClient(ClientConfig{BaseURL: srv.URL}, testLogger())
			_, err := client.Predict(context.Background(), testSnapshot())
			assert.ErrorIs(t, err, ErrInvalidPrediction)
		})
	}
}

func TestPredictServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{BaseURL: srv.URL}, testLogger())
	_, err := client.Predict(context.Background(), testSnapshot())
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestCachedPredictorReusesCalls(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		fmt.Fprint(w, `{"first": [0.5, 0.3, 0.2], "second": [0.3, 0.4, 0.3], "third": [0.2, 0.3, 0.5]}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{BaseURL: srv.URL}, testLogger())
	cached := NewCachedPredictor(client, time.Minute, testLogger())

	snap := testSnapshot()
	for i := 0; i < 3; i++ {
		vector, err := cached.Predict(context.Background(), snap)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0.3, 0.2}, vector.First)
	}

	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))

	hits, misses, ratio := cached.CacheStats()
	assert.EqualValues(t, 2, hits)
	assert.EqualValues(t, 1, misses)
	assert.InDelta(t, 2.0/3.0, ratio, 1e-9)
}

func TestCachedPredictorDoesNotCacheErrors(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"first": [0.5, 0.3, 0.2], "second": [0.3, 0.4, 0.3], "third": [0.2, 0.3, 0.5]}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(ClientConfig{BaseURL: srv.URL}, testLogger())
	cached := NewCachedPredictor(client, time.Minute, testLogger())

	_, err := cached.Predict(context.Background(), testSnapshot())
	require.Error(t, err)

	vector, err := cached.Predict(context.Background(), testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, 3, vector.Entrants())
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls))
}
