package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/boat-better/internal/models"
)

// Predictor produces finish-position probabilities for a race snapshot.
type Predictor interface {
	Predict(ctx context.Context, snapshot *models.RaceSnapshot) (models.ProbabilityVector, error)
}

// ClientConfig holds configuration for the oracle HTTP client.
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

// HTTPClient calls the probability service over HTTP.
type HTTPClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	logger  *logrus.Logger
}

// NewHTTPClient creates a new HTTP client for the probability service.
func NewHTTPClient(cfg ClientConfig, logger *logrus.Logger) *HTTPClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// predictRequest is the service's scoring payload.
type predictRequest struct {
	RaceID    string                   `json:"race_id"`
	WindSpeed float64                  `json:"wind_speed"`
	Entrants  []models.EntrantFeatures `json:"entrants"`
}

// predictResponse is the service's scoring response.
type predictResponse struct {
	First  []float64 `json:"first"`
	Second []float64 `json:"second"`
	Third  []float64 `json:"third"`
}

// Predict scores one race snapshot.
func (c *HTTPClient) Predict(ctx context.Context, snapshot *models.RaceSnapshot) (models.ProbabilityVector, error) {
	start := time.Now()

	if !snapshot.HasFeatures() {
		return models.ProbabilityVector{}, fmt.Errorf("%w: race %s", ErrInsufficientFeatures, snapshot.Key)
	}

	reqBody := predictRequest{
		RaceID:    snapshot.Key.String(),
		WindSpeed: snapshot.WindSpeed,
		Entrants:  snapshot.Entrants,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return models.ProbabilityVector{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/predict", bytes.NewBuffer(jsonData))
	if err != nil {
		return models.ProbabilityVector{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.ProbabilityVector{}, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.ProbabilityVector{}, fmt.Errorf("%w: status %d: %s", ErrOracleUnavailable, resp.StatusCode, string(body))
	}

	var predResp predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&predResp); err != nil {
		return models.ProbabilityVector{}, fmt.Errorf("%w: %v", ErrInvalidPrediction, err)
	}

	vector := models.ProbabilityVector{
		First:  predResp.First,
		Second: predResp.Second,
		Third:  predResp.Third,
	}
	if err := validateVector(vector, len(snapshot.Entrants)); err != nil {
		return models.ProbabilityVector{}, err
	}

	c.logger.WithFields(logrus.Fields{
		"race":     snapshot.Key.String(),
		"entrants": len(snapshot.Entrants),
		"duration": time.Since(start),
	}).Debug("Prediction received")

	return vector, nil
}

func validateVector(v models.ProbabilityVector, entrants int) error {
	if len(v.First) != entrants || len(v.Second) != entrants || len(v.Third) != entrants {
		return fmt.Errorf("%w: got %d/%d/%d probabilities for %d entrants",
			ErrInvalidPrediction, len(v.First), len(v.Second), len(v.Third), entrants)
	}
	for _, slice := range [][]float64{v.First, v.Second, v.Third} {
		for _, p := range slice {
			if p < 0 || p > 1 {
				return fmt.Errorf("%w: probability %v out of range", ErrInvalidPrediction, p)
			}
		}
	}
	return nil
}
